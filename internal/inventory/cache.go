// Package inventory mirrors the remote item, movement, category and
// location tables for a client.
//
// Consistency: the local mirror is authoritative until the next LoadAll.
// Mutations go to the remote store first and only the record the store
// returns is merged, upserted by id so nothing is ever listed twice. Item
// quantities are owned by the store: a movement insert returns the item's new
// quantity and the cache copies it, never adjusting it itself.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"envanter/internal/apperr"
	"envanter/internal/models"
	"envanter/internal/remote"
)

// SnapshotStorage persists the last full load. *localstore.Store implements it.
type SnapshotStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Cache is the client-side reflection of the remote tables. The lock owns
// local state; remote calls never run under it.
type Cache struct {
	store     remote.Store
	snapshots SnapshotStorage
	actor     func() string
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	items      []models.Item
	movements  []models.Movement
	categories []models.Category
	locations  []models.Location
	loadedAt   time.Time
}

// Option configures a Cache.
type Option func(*Cache)

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithSnapshots saves every successful LoadAll to s and enables Restore.
func WithSnapshots(s SnapshotStorage) Option {
	return func(c *Cache) { c.snapshots = s }
}

// WithActor names the user recorded on new items and movements, typically
// the identity holder's UserID.
func WithActor(fn func() string) Option {
	return func(c *Cache) { c.actor = fn }
}

// New returns an empty cache over st.
func New(st remote.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  st,
		actor:  func() string { return "" },
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fail logs a failed operation and returns it as an *apperr.Error for op.
func (c *Cache) fail(op string, err error) error {
	err = apperr.WithOp(op, err)
	c.logger.Warn("inventory operation failed", "op", op, "kind", apperr.KindOf(err), "error", err)
	return err
}

// LoadAll fetches every table concurrently and replaces the local
// collections. On failure nothing changes.
func (c *Cache) LoadAll(ctx context.Context) error {
	const op = "inventory.LoadAll"

	var (
		items      []models.Item
		movements  []models.Movement
		categories []models.Category
		locations  []models.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = c.store.ListItems(gctx)
		return err
	})
	g.Go(func() (err error) {
		movements, err = c.store.ListMovements(gctx, models.MovementFilter{})
		return err
	})
	g.Go(func() (err error) {
		categories, err = c.store.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		locations, err = c.store.ListLocations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.fail(op, err)
	}

	snap := snapshot{
		Items:      nonNil(items),
		Movements:  nonNil(movements),
		Categories: nonNil(categories),
		Locations:  nonNil(locations),
		SavedAt:    c.now().UTC(),
	}
	snap.join()

	// The cache mutates its slices in place under c.mu; snap keeps its own
	// arrays for saveSnapshot, which runs unlocked.
	c.mu.Lock()
	c.items, c.movements = slices.Clone(snap.Items), slices.Clone(snap.Movements)
	c.categories, c.locations = slices.Clone(snap.Categories), slices.Clone(snap.Locations)
	c.loadedAt = snap.SavedAt
	c.mu.Unlock()

	c.logger.Debug("inventory loaded", "items", len(items), "movements", len(movements),
		"categories", len(categories), "locations", len(locations))
	c.saveSnapshot(ctx, snap)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// LoadedAt is when the collections were last replaced wholesale.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Cache) categoryName(id string) string {
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat.Name
		}
	}
	return ""
}

func (c *Cache) locationName(id string) string {
	for _, l := range c.locations {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

// mergeItemLocked upserts it by id, filling joined names the store left out.
func (c *Cache) mergeItemLocked(it models.Item) models.Item {
	if it.CategoryName == "" && it.CategoryID != "" {
		it.CategoryName = c.categoryName(it.CategoryID)
	}
	if it.LocationName == "" && it.LocationID != "" {
		it.LocationName = c.locationName(it.LocationID)
	}
	for i := range c.items {
		if c.items[i].ID == it.ID {
			c.items[i] = it
			return it
		}
	}
	c.items = append(c.items, it)
	return it
}

// AddItem creates an item. An empty barcode gets a generated one.
func (c *Cache) AddItem(ctx context.Context, req models.CreateItemRequest) (models.Item, error) {
	const op = "inventory.AddItem"

	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.Item{}, c.fail(op, apperr.Validation(op, err))
	}
	if req.Barcode == "" {
		req.Barcode = models.GenerateBarcode()
	}
	if req.CreatedBy == "" {
		req.CreatedBy = c.actor()
	}

	it, err := c.store.InsertItem(ctx, req)
	if err != nil {
		return models.Item{}, c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergeItemLocked(*it), nil
}

// AddItems creates copies separate items of quantity one each, every one
// with a fresh barcode and, when a serial number is given, the serial
// suffixed -1 .. -n. Copies created before a failure stay mirrored.
func (c *Cache) AddItems(ctx context.Context, req models.CreateItemRequest, copies int) ([]models.Item, error) {
	const op = "inventory.AddItems"

	if copies < 1 {
		return nil, c.fail(op, apperr.Validation(op, errors.New("copies must be at least 1")))
	}
	if copies == 1 {
		it, err := c.AddItem(ctx, req)
		if err != nil {
			return nil, apperr.WithOp(op, err)
		}
		return []models.Item{it}, nil
	}

	out := make([]models.Item, 0, copies)
	for i := 1; i <= copies; i++ {
		r := req
		r.Quantity = 1
		r.Barcode = ""
		if req.SerialNumber != "" {
			r.SerialNumber = fmt.Sprintf("%s-%d", req.SerialNumber, i)
		}
		it, err := c.AddItem(ctx, r)
		if err != nil {
			return out, apperr.WithOp(op, err)
		}
		out = append(out, it)
	}
	return out, nil
}

// UpdateItem applies patch to the item.
func (c *Cache) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (models.Item, error) {
	const op = "inventory.UpdateItem"

	if err := patch.Validate(); err != nil {
		return models.Item{}, c.fail(op, apperr.Validation(op, err))
	}
	it, err := c.store.UpdateItem(ctx, id, patch)
	if err != nil {
		return models.Item{}, c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	merged := c.mergeItemLocked(*it)
	// Movement rows carry the item name for display.
	for i := range c.movements {
		if c.movements[i].ItemID == id {
			c.movements[i].ItemName = merged.Name
		}
	}
	return merged, nil
}

// RemoveItem deletes the item. The store removes its movements in the same
// transaction; the cache drops them too.
func (c *Cache) RemoveItem(ctx context.Context, id string) error {
	const op = "inventory.RemoveItem"

	n, err := c.store.DeleteItem(ctx, id)
	if err != nil {
		return c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = deleteFunc(c.items, func(it models.Item) bool { return it.ID == id })
	c.movements = deleteFunc(c.movements, func(m models.Movement) bool { return m.ItemID == id })
	c.logger.Debug("item removed", "item_id", id, "movements_removed", n)
	return nil
}

// AddMovement records a stock movement. The store adjusts the item's
// quantity; the cache takes the quantity the store reports.
func (c *Cache) AddMovement(ctx context.Context, req models.CreateMovementRequest) (models.Movement, error) {
	const op = "inventory.AddMovement"

	req.ItemID = strings.TrimSpace(req.ItemID)
	if err := req.Validate(); err != nil {
		return models.Movement{}, c.fail(op, apperr.Validation(op, err))
	}
	if req.Actor == "" {
		req.Actor = c.actor()
	}

	res, err := c.store.InsertMovement(ctx, req)
	if err != nil {
		return models.Movement{}, c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m := res.Movement
	for i := range c.items {
		if c.items[i].ID == m.ItemID {
			c.items[i].Quantity = res.ItemQuantity
			if m.ItemName == "" {
				m.ItemName = c.items[i].Name
			}
			break
		}
	}
	if m.LocationName == "" && m.LocationID != "" {
		m.LocationName = c.locationName(m.LocationID)
	}
	for i := range c.movements {
		if c.movements[i].ID == m.ID {
			c.movements[i] = m
			return m, nil
		}
	}
	c.movements = append(c.movements, m)
	return m, nil
}

// RemoveMovement deletes a movement record. The item's quantity is not
// rolled back.
func (c *Cache) RemoveMovement(ctx context.Context, id string) error {
	const op = "inventory.RemoveMovement"

	if err := c.store.DeleteMovement(ctx, id); err != nil {
		return c.fail(op, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movements = deleteFunc(c.movements, func(m models.Movement) bool { return m.ID == id })
	return nil
}

func cleanName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(op, errors.New("name is required"))
	}
	return name, nil
}

func (c *Cache) AddCategory(ctx context.Context, name string) (models.Category, error) {
	const op = "inventory.AddCategory"

	name, err := cleanName(op, name)
	if err != nil {
		return models.Category{}, c.fail(op, err)
	}
	cat, err := c.store.InsertCategory(ctx, name)
	if err != nil {
		return models.Category{}, c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.categories {
		if c.categories[i].ID == cat.ID {
			c.categories[i] = *cat
			return *cat, nil
		}
	}
	c.categories = append(c.categories, *cat)
	return *cat, nil
}

// RemoveCategory deletes a category. The store refuses one that items still
// reference.
func (c *Cache) RemoveCategory(ctx context.Context, id string) error {
	const op = "inventory.RemoveCategory"

	if err := c.store.DeleteCategory(ctx, id); err != nil {
		return c.fail(op, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = deleteFunc(c.categories, func(cat models.Category) bool { return cat.ID == id })
	return nil
}

func (c *Cache) AddLocation(ctx context.Context, name string) (models.Location, error) {
	const op = "inventory.AddLocation"

	name, err := cleanName(op, name)
	if err != nil {
		return models.Location{}, c.fail(op, err)
	}
	loc, err := c.store.InsertLocation(ctx, name)
	if err != nil {
		return models.Location{}, c.fail(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.locations {
		if c.locations[i].ID == loc.ID {
			c.locations[i] = *loc
			return *loc, nil
		}
	}
	c.locations = append(c.locations, *loc)
	return *loc, nil
}

// RemoveLocation deletes a location. The store refuses one that items still
// reference; movements that pointed at it keep their rows without a location.
func (c *Cache) RemoveLocation(ctx context.Context, id string) error {
	const op = "inventory.RemoveLocation"

	if err := c.store.DeleteLocation(ctx, id); err != nil {
		return c.fail(op, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations = deleteFunc(c.locations, func(l models.Location) bool { return l.ID == id })
	for i := range c.movements {
		if c.movements[i].LocationID == id {
			c.movements[i].LocationID, c.movements[i].LocationName = "", ""
		}
	}
	return nil
}

// deleteFunc removes matching elements into a fresh slice so copies handed
// out earlier are never mutated.
func deleteFunc[T any](s []T, del func(T) bool) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if !del(v) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Cache) Items() []models.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Item(nil), c.items...)
}

func (c *Cache) Movements() []models.Movement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Movement(nil), c.movements...)
}

func (c *Cache) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Category(nil), c.categories...)
}

func (c *Cache) Locations() []models.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Location(nil), c.locations...)
}

// Item returns the cached item with id.
func (c *Cache) Item(id string) (models.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return models.Item{}, false
}

// ItemByBarcode finds an item by its exact barcode, as read by a scanner.
func (c *Cache) ItemByBarcode(code string) (models.Item, bool) {
	code = strings.TrimSpace(code)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.Barcode == code {
			return it, true
		}
	}
	return models.Item{}, false
}
