package inventory

import (
	"sort"
	"time"

	"envanter/internal/models"
)

// DefaultLowStockThreshold is the quantity below which an item counts as
// running low.
const DefaultLowStockThreshold = 5

// CategoryStock is the item count and summed quantity of one category.
// Items without a category are grouped under an empty CategoryID.
type CategoryStock struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Items        int    `json:"items"`
	Quantity     int    `json:"quantity"`
}

// StatusCount is the number of items in one status.
type StatusCount struct {
	Status models.ItemStatus `json:"status"`
	Label  string            `json:"label"`
	Count  int               `json:"count"`
}

// DailyTotal sums the movement quantities of one calendar day.
type DailyTotal struct {
	Date time.Time `json:"date"`
	In   int       `json:"in"`
	Out  int       `json:"out"`
}

// Summary is the headline numbers of the reports page.
type Summary struct {
	Items      int `json:"items"`
	TotalStock int `json:"total_stock"`
	CheckedOut int `json:"checked_out"`
	LowStock   int `json:"low_stock"`
}

// StockByCategory lists every category, including empty ones, in the
// cached category order.
func (c *Cache) StockByCategory() []CategoryStock {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := make(map[string]int, len(c.categories))
	out := make([]CategoryStock, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		idx[cat.ID] = len(out)
		out = append(out, CategoryStock{CategoryID: cat.ID, CategoryName: cat.Name})
	}
	for _, it := range c.items {
		i, ok := idx[it.CategoryID]
		if !ok {
			i = len(out)
			idx[it.CategoryID] = i
			out = append(out, CategoryStock{CategoryID: it.CategoryID, CategoryName: it.CategoryName})
		}
		out[i].Items++
		out[i].Quantity += it.Quantity
	}
	return out
}

// CountByStatus counts items per status, every status listed.
func (c *Cache) CountByStatus() []StatusCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[models.ItemStatus]int, len(models.ItemStatuses))
	for _, it := range c.items {
		counts[it.Status]++
	}
	out := make([]StatusCount, 0, len(models.ItemStatuses))
	for _, st := range models.ItemStatuses {
		out = append(out, StatusCount{Status: st, Label: st.Label(), Count: counts[st]})
	}
	return out
}

// DailyTotals returns in/out sums for each of the last days calendar days
// ending with now's day, oldest first. Days are taken in now's location.
func (c *Cache) DailyTotals(days int, now time.Time) []DailyTotal {
	if days <= 0 {
		return []DailyTotal{}
	}
	loc := now.Location()
	start := truncateDay(now).AddDate(0, 0, -(days - 1))

	out := make([]DailyTotal, days)
	idx := make(map[string]int, days)
	for i := range out {
		out[i].Date = start.AddDate(0, 0, i)
		idx[out[i].Date.Format(time.DateOnly)] = i
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.movements {
		i, ok := idx[m.Date.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		if m.Type == models.MovementIn {
			out[i].In += m.Quantity
		} else {
			out[i].Out += m.Quantity
		}
	}
	return out
}

// LowStock returns items with quantity below threshold, lowest first.
func (c *Cache) LowStock(threshold int) []models.Item {
	out := []models.Item{}
	for _, it := range c.Items() {
		if it.Quantity < threshold {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out
}

// Summarize computes the report headline numbers.
func (c *Cache) Summarize(lowStockThreshold int) Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Summary
	for _, it := range c.items {
		s.Items++
		s.TotalStock += it.Quantity
		if it.Status == models.StatusCheckedOut {
			s.CheckedOut++
		}
		if it.Quantity < lowStockThreshold {
			s.LowStock++
		}
	}
	return s
}
