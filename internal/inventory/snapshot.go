package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"envanter/internal/localstore"
	"envanter/internal/models"
)

type snapshot struct {
	Items      []models.Item     `json:"items"`
	Movements  []models.Movement `json:"movements"`
	Categories []models.Category `json:"categories"`
	Locations  []models.Location `json:"locations"`
	SavedAt    time.Time         `json:"saved_at"`
}

// join fills the display names that point across collections.
func (s *snapshot) join() {
	cats := make(map[string]string, len(s.Categories))
	for _, c := range s.Categories {
		cats[c.ID] = c.Name
	}
	locs := make(map[string]string, len(s.Locations))
	for _, l := range s.Locations {
		locs[l.ID] = l.Name
	}
	names := make(map[string]string, len(s.Items))
	for i := range s.Items {
		it := &s.Items[i]
		if n, ok := cats[it.CategoryID]; ok {
			it.CategoryName = n
		}
		if n, ok := locs[it.LocationID]; ok {
			it.LocationName = n
		}
		names[it.ID] = it.Name
	}
	for i := range s.Movements {
		m := &s.Movements[i]
		if n, ok := names[m.ItemID]; ok {
			m.ItemName = n
		}
		if n, ok := locs[m.LocationID]; ok {
			m.LocationName = n
		}
	}
}

func (c *Cache) saveSnapshot(ctx context.Context, s snapshot) {
	if c.snapshots == nil {
		return
	}
	buf, err := json.Marshal(s)
	if err != nil {
		c.logger.Warn("encode inventory snapshot", "error", err)
		return
	}
	if err := c.snapshots.Set(ctx, localstore.KeyInventorySnapshot, string(buf)); err != nil {
		c.logger.Warn("save inventory snapshot", "error", err)
	}
}

// Restore loads the last saved snapshot, for display while offline. It
// reports false when no snapshot exists. LoadAll replaces whatever Restore
// put in place.
func (c *Cache) Restore(ctx context.Context) (bool, error) {
	const op = "inventory.Restore"

	if c.snapshots == nil {
		return false, nil
	}
	raw, ok, err := c.snapshots.Get(ctx, localstore.KeyInventorySnapshot)
	if err != nil {
		return false, c.fail(op, err)
	}
	if !ok {
		return false, nil
	}
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return false, c.fail(op, fmt.Errorf("decode snapshot: %w", err))
	}

	c.mu.Lock()
	c.items, c.movements = nonNil(s.Items), nonNil(s.Movements)
	c.categories, c.locations = nonNil(s.Categories), nonNil(s.Locations)
	c.loadedAt = s.SavedAt
	c.mu.Unlock()
	return true, nil
}

