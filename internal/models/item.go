package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemStatus is where a tracked item currently is.
type ItemStatus string

const (
	StatusInStock    ItemStatus = "in_stock"
	StatusCheckedOut ItemStatus = "checked_out"
	StatusInService  ItemStatus = "in_service"
	StatusRented     ItemStatus = "rented"
)

// ItemStatuses lists every status in display order.
var ItemStatuses = []ItemStatus{StatusInStock, StatusCheckedOut, StatusInService, StatusRented}

var statusLabels = map[ItemStatus]string{
	StatusInStock:    "Depoda",
	StatusCheckedOut: "Dışarıda",
	StatusInService:  "Serviste",
	StatusRented:     "Kiralandı",
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display label used on reports and tables.
func (s ItemStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseItemStatus accepts either the wire value or the display label.
func ParseItemStatus(s string) (ItemStatus, error) {
	s = strings.TrimSpace(s)
	if st := ItemStatus(strings.ToLower(s)); st.Valid() {
		return st, nil
	}
	for st, label := range statusLabels {
		if strings.EqualFold(label, s) {
			return st, nil
		}
	}
	// "Otelde" appears as a checked-out synonym in older data.
	if strings.EqualFold(s, "Otelde") {
		return StatusCheckedOut, nil
	}
	return "", fmt.Errorf("unknown item status %q", s)
}

// Item is a trackable physical asset.
type Item struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Brand        string     `json:"brand,omitempty"`
	Model        string     `json:"model,omitempty"`
	CategoryID   string     `json:"category_id,omitempty"`
	CategoryName string     `json:"category_name,omitempty"`
	Status       ItemStatus `json:"status"`
	LocationID   string     `json:"location_id,omitempty"`
	LocationName string     `json:"location_name,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Barcode      string     `json:"barcode"`
	Description  string     `json:"description,omitempty"`
	Quantity     int        `json:"quantity"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateItemRequest represents the request body for creating a new item
type CreateItemRequest struct {
	Name         string     `json:"name"`
	Brand        string     `json:"brand,omitempty"`
	Model        string     `json:"model,omitempty"`
	CategoryID   string     `json:"category_id,omitempty"`
	Status       ItemStatus `json:"status,omitempty"`
	LocationID   string     `json:"location_id,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Barcode      string     `json:"barcode,omitempty"`
	Description  string     `json:"description,omitempty"`
	Quantity     int        `json:"quantity"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
}

// Normalize fills defaults that the store would otherwise reject.
func (r *CreateItemRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Barcode = strings.TrimSpace(r.Barcode)
	if r.Status == "" {
		r.Status = StatusInStock
	}
}

// Validate checks a create request after Normalize.
func (r *CreateItemRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	return nil
}

// ItemPatch is a partial update; nil fields are left untouched.
type ItemPatch struct {
	Name         *string     `json:"name,omitempty"`
	Brand        *string     `json:"brand,omitempty"`
	Model        *string     `json:"model,omitempty"`
	CategoryID   *string     `json:"category_id,omitempty"`
	Status       *ItemStatus `json:"status,omitempty"`
	LocationID   *string     `json:"location_id,omitempty"`
	SerialNumber *string     `json:"serial_number,omitempty"`
	Barcode      *string     `json:"barcode,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Quantity     *int        `json:"quantity,omitempty"`
	PhotoURL     *string     `json:"photo_url,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Brand == nil && p.Model == nil && p.CategoryID == nil &&
		p.Status == nil && p.LocationID == nil && p.SerialNumber == nil && p.Barcode == nil &&
		p.Description == nil && p.Quantity == nil && p.PhotoURL == nil
}

// Validate rejects empty patches and values the store would not accept.
func (p ItemPatch) Validate() error {
	if p.IsEmpty() {
		return errors.New("no fields to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if p.Barcode != nil && strings.TrimSpace(*p.Barcode) == "" {
		return errors.New("barcode cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", *p.Status)
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	return nil
}

// Apply merges the patch into it. Joined display names are not touched.
func (p ItemPatch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Brand != nil {
		it.Brand = *p.Brand
	}
	if p.Model != nil {
		it.Model = *p.Model
	}
	if p.CategoryID != nil {
		it.CategoryID = *p.CategoryID
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.LocationID != nil {
		it.LocationID = *p.LocationID
	}
	if p.SerialNumber != nil {
		it.SerialNumber = *p.SerialNumber
	}
	if p.Barcode != nil {
		it.Barcode = strings.TrimSpace(*p.Barcode)
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.PhotoURL != nil {
		it.PhotoURL = *p.PhotoURL
	}
}
