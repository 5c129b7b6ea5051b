package models

// Category is reference data items are grouped by.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is a place items and movements point at.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NamedRequest is the request body for creating a category or location.
type NamedRequest struct {
	Name string `json:"name"`
}
