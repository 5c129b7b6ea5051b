package inventory

import (
	"cmp"
	"strings"
	"time"

	"envanter/internal/listing"
	"envanter/internal/models"
)

// ItemQuery filters and orders the cached items. Zero fields do not filter.
// Sort uses the list convention: comma-separated keys, '-' for descending.
type ItemQuery struct {
	Search     string
	Status     models.ItemStatus
	CategoryID string
	LocationID string
	Sort       string
}

// MovementQuery filters and orders the cached movements. To is inclusive of
// its whole day when it falls on midnight. The default sort is newest first.
type MovementQuery struct {
	Search     string
	Type       models.MovementType
	ItemID     string
	LocationID string
	From       *time.Time
	To         *time.Time
	Sort       string
}

var itemSorts = map[string]listing.Compare[models.Item]{
	"name":       func(a, b models.Item) int { return compareFold(a.Name, b.Name) },
	"brand":      func(a, b models.Item) int { return compareFold(a.Brand, b.Brand) },
	"model":      func(a, b models.Item) int { return compareFold(a.Model, b.Model) },
	"barcode":    func(a, b models.Item) int { return cmp.Compare(a.Barcode, b.Barcode) },
	"status":     func(a, b models.Item) int { return cmp.Compare(a.Status, b.Status) },
	"quantity":   func(a, b models.Item) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"category":   func(a, b models.Item) int { return compareFold(a.CategoryName, b.CategoryName) },
	"location":   func(a, b models.Item) int { return compareFold(a.LocationName, b.LocationName) },
	"created_at": func(a, b models.Item) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b models.Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

var movementSorts = map[string]listing.Compare[models.Movement]{
	"date":     func(a, b models.Movement) int { return a.Date.Compare(b.Date) },
	"item":     func(a, b models.Movement) int { return compareFold(a.ItemName, b.ItemName) },
	"type":     func(a, b models.Movement) int { return cmp.Compare(a.Type, b.Type) },
	"quantity": func(a, b models.Movement) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"location": func(a, b models.Movement) int { return compareFold(a.LocationName, b.LocationName) },
	"actor":    func(a, b models.Movement) int { return compareFold(a.ActorName, b.ActorName) },
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// FindItems returns the items matching q. Search matches name, brand, model,
// serial number and barcode.
func (c *Cache) FindItems(q ItemQuery) []models.Item {
	search := strings.TrimSpace(q.Search)
	out := []models.Item{}
	for _, it := range c.Items() {
		if q.Status != "" && it.Status != q.Status {
			continue
		}
		if q.CategoryID != "" && it.CategoryID != q.CategoryID {
			continue
		}
		if q.LocationID != "" && it.LocationID != q.LocationID {
			continue
		}
		if search != "" && !anyContains(search, it.Name, it.Brand, it.Model, it.SerialNumber, it.Barcode) {
			continue
		}
		out = append(out, it)
	}
	listing.SortSlice(out, listing.ParseSort(q.Sort, nil), itemSorts)
	return out
}

// FindMovements returns the movements matching q. Search matches the item
// name and the description.
func (c *Cache) FindMovements(q MovementQuery) []models.Movement {
	search := strings.TrimSpace(q.Search)
	var to time.Time
	if q.To != nil {
		to = *q.To
		if to.Equal(truncateDay(to)) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
	}

	out := []models.Movement{}
	for _, m := range c.Movements() {
		if q.Type != "" && m.Type != q.Type {
			continue
		}
		if q.ItemID != "" && m.ItemID != q.ItemID {
			continue
		}
		if q.LocationID != "" && m.LocationID != q.LocationID {
			continue
		}
		if q.From != nil && m.Date.Before(*q.From) {
			continue
		}
		if q.To != nil && m.Date.After(to) {
			continue
		}
		if search != "" && !anyContains(search, m.ItemName, m.Description) {
			continue
		}
		out = append(out, m)
	}

	sortParam := q.Sort
	if sortParam == "" {
		sortParam = "-date"
	}
	listing.SortSlice(out, listing.ParseSort(sortParam, nil), movementSorts)
	return out
}

func anyContains(substr string, fields ...string) bool {
	for _, f := range fields {
		if listing.ContainsFold(f, substr) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
