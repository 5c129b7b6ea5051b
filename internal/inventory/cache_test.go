package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal/apperr"
	"envanter/internal/auth"
	"envanter/internal/events"
	"envanter/internal/localstore"
	"envanter/internal/models"
	"envanter/internal/remote"
	"envanter/internal/store"
)

func newRemote(t *testing.T) *remote.Local {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))
	hub := events.NewHub(nil)
	t.Cleanup(hub.Close)
	jm := auth.NewJWTManager("inventory-test-secret-long-enough-hs256", "envanter", "envanter", time.Hour)
	return remote.NewLocal(st, auth.NewService(st, jm, hub, nil), hub)
}

func loaded(t *testing.T, opts ...Option) (*Cache, *remote.Local) {
	t.Helper()
	r := newRemote(t)
	c := New(r, opts...)
	require.NoError(t, c.LoadAll(context.Background()))
	return c, r
}

// flaky fails selected calls of a working store.
type flaky struct {
	remote.Store
	insertItem    error
	listMovements error
	deleteItem    error
}

func (f *flaky) InsertItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	if f.insertItem != nil {
		return nil, f.insertItem
	}
	return f.Store.InsertItem(ctx, req)
}

func (f *flaky) ListMovements(ctx context.Context, mf models.MovementFilter) ([]models.Movement, error) {
	if f.listMovements != nil {
		return nil, f.listMovements
	}
	return f.Store.ListMovements(ctx, mf)
}

func (f *flaky) DeleteItem(ctx context.Context, id string) (int, error) {
	if f.deleteItem != nil {
		return 0, f.deleteItem
	}
	return f.Store.DeleteItem(ctx, id)
}

type memStorage struct {
	mu sync.Mutex
	kv map[string]string
}

func (m *memStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = map[string]string{}
	}
	m.kv[key] = value
	return nil
}

func countBarcode(items []models.Item, code string) int {
	n := 0
	for _, it := range items {
		if it.Barcode == code {
			n++
		}
	}
	return n
}

func TestLoadAllJoinsNames(t *testing.T) {
	c, _ := loaded(t)

	assert.Len(t, c.Items(), 6)
	assert.Len(t, c.Movements(), 5)
	assert.Len(t, c.Categories(), 7)
	assert.Len(t, c.Locations(), 4)
	assert.False(t, c.LoadedAt().IsZero())

	it, ok := c.ItemByBarcode("MIKSHUSM58-001")
	require.True(t, ok)
	assert.Equal(t, "Mikrofonlar", it.CategoryName)
	assert.Equal(t, "Merkez", it.LocationName)
	assert.Equal(t, 5, it.Quantity)

	for _, m := range c.Movements() {
		assert.NotEmpty(t, m.ItemName)
		assert.NotEmpty(t, m.LocationName)
	}
}

func TestLoadAllIsIdempotent(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	items, moves, cats, locs := c.Items(), c.Movements(), c.Categories(), c.Locations()
	require.NoError(t, c.LoadAll(ctx))
	assert.Equal(t, items, c.Items())
	assert.Equal(t, moves, c.Movements())
	assert.Equal(t, cats, c.Categories())
	assert.Equal(t, locs, c.Locations())
}

func TestAddItemAppearsOnce(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Kablo Makarası", Barcode: "KBL-100"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, it.Status)
	assert.Equal(t, 1, countBarcode(c.Items(), "KBL-100"))

	require.NoError(t, c.LoadAll(ctx))
	assert.Equal(t, 1, countBarcode(c.Items(), "KBL-100"))
	assert.Len(t, c.Items(), 7)
}

func TestAddItemGeneratesBarcode(t *testing.T) {
	c, _ := loaded(t, WithActor(func() string { return "user-1" }))

	it, err := c.AddItem(context.Background(), models.CreateItemRequest{Name: "Stand"})
	require.NoError(t, err)
	assert.Regexp(t, `^INV\d{14}$`, it.Barcode)
	assert.Equal(t, "user-1", it.CreatedBy)
}

func TestAddItemValidation(t *testing.T) {
	c, _ := loaded(t)
	before := c.Items()

	_, err := c.AddItem(context.Background(), models.CreateItemRequest{Name: " ", Quantity: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = c.AddItem(context.Background(), models.CreateItemRequest{Name: "X", Quantity: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, before, c.Items())
}

func TestAddItemDuplicateBarcode(t *testing.T) {
	c, _ := loaded(t)
	before := c.Items()

	_, err := c.AddItem(context.Background(), models.CreateItemRequest{Name: "Kopya", Barcode: "MIKSHUSM58-001"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, apperr.MsgConflict, apperr.Message(err))
	assert.Equal(t, before, c.Items())
}

func TestAddItems(t *testing.T) {
	c, _ := loaded(t)

	items, err := c.AddItems(context.Background(), models.CreateItemRequest{Name: "Telsiz", SerialNumber: "TLS", Quantity: 3}, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	seen := map[string]bool{}
	for i, it := range items {
		assert.Equal(t, 1, it.Quantity)
		assert.Equal(t, "TLS-"+string(rune('1'+i)), it.SerialNumber)
		assert.False(t, seen[it.Barcode], "barcodes must differ")
		seen[it.Barcode] = true
	}
	assert.Len(t, c.Items(), 9)

	_, err = c.AddItems(context.Background(), models.CreateItemRequest{Name: "Telsiz"}, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdateItem(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	mic, ok := c.ItemByBarcode("MIKSHUSM58-001")
	require.True(t, ok)

	name := "Kablosuz Mikrofon"
	status := models.StatusRented
	it, err := c.UpdateItem(ctx, mic.ID, models.ItemPatch{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, name, it.Name)
	assert.Equal(t, "Mikrofonlar", it.CategoryName)

	got, _ := c.Item(mic.ID)
	assert.Equal(t, models.StatusRented, got.Status)
	for _, m := range c.FindMovements(MovementQuery{ItemID: mic.ID}) {
		assert.Equal(t, name, m.ItemName)
	}
	assert.Len(t, c.Items(), 6)

	_, err = c.UpdateItem(ctx, mic.ID, models.ItemPatch{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = c.UpdateItem(ctx, "missing", models.ItemPatch{Name: &name})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAddThenRemoveItem(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Mikrofon", Barcode: "PS0001"})
	require.NoError(t, err)
	_, err = c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 4})
	require.NoError(t, err)

	require.NoError(t, c.RemoveItem(ctx, it.ID))

	check := func() {
		assert.Equal(t, 0, countBarcode(c.Items(), "PS0001"))
		for _, m := range c.Movements() {
			assert.NotEqual(t, it.ID, m.ItemID)
		}
	}
	check()
	require.NoError(t, c.LoadAll(ctx))
	check()
}

func TestMovementsAdjustQuantityOnce(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Hoparlör Standı", Quantity: 0})
	require.NoError(t, err)

	_, err = c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 5})
	require.NoError(t, err)
	got, _ := c.Item(it.ID)
	assert.Equal(t, 5, got.Quantity)

	m, err := c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementOut, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Hoparlör Standı", m.ItemName)

	got, _ = c.Item(it.ID)
	assert.Equal(t, 3, got.Quantity)

	// The store agrees: the quantity was applied once, remotely.
	require.NoError(t, c.LoadAll(ctx))
	got, _ = c.Item(it.ID)
	assert.Equal(t, 3, got.Quantity)
	assert.Len(t, c.FindMovements(MovementQuery{ItemID: it.ID}), 2)
}

func TestAddMovementInsufficientStock(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	mixer, ok := c.ItemByBarcode("MIKBEHX32-005")
	require.True(t, ok)
	require.Equal(t, 0, mixer.Quantity)
	moves := c.Movements()

	_, err := c.AddMovement(ctx, models.CreateMovementRequest{ItemID: mixer.ID, Type: models.MovementOut, Quantity: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientStock))
	assert.Equal(t, apperr.MsgInsufficientStock, apperr.Message(err))
	assert.Equal(t, moves, c.Movements())

	_, err = c.AddMovement(ctx, models.CreateMovementRequest{ItemID: "missing", Type: models.MovementIn, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = c.AddMovement(ctx, models.CreateMovementRequest{ItemID: mixer.ID, Type: "sideways", Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRemoveMovementKeepsQuantity(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Kablo"})
	require.NoError(t, err)
	m, err := c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 7})
	require.NoError(t, err)

	require.NoError(t, c.RemoveMovement(ctx, m.ID))
	assert.Empty(t, c.FindMovements(MovementQuery{ItemID: it.ID}))
	got, _ := c.Item(it.ID)
	assert.Equal(t, 7, got.Quantity)

	assert.True(t, apperr.IsKind(c.RemoveMovement(ctx, m.ID), apperr.KindNotFound))
}

func TestConcurrentMovements(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Adaptör"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, c.LoadAll(ctx))
	got, _ := c.Item(it.ID)
	assert.Equal(t, 20, got.Quantity)
	assert.Len(t, c.FindMovements(MovementQuery{ItemID: it.ID}), 20)
}

func TestCategoriesAndLocations(t *testing.T) {
	c, _ := loaded(t)
	ctx := context.Background()

	cat, err := c.AddCategory(ctx, "  Sahne  ")
	require.NoError(t, err)
	assert.Equal(t, "Sahne", cat.Name)
	assert.Len(t, c.Categories(), 8)

	_, err = c.AddCategory(ctx, "Sahne")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	_, err = c.AddCategory(ctx, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	loc, err := c.AddLocation(ctx, "Depo 2")
	require.NoError(t, err)

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Platform", CategoryID: cat.ID, LocationID: loc.ID})
	require.NoError(t, err)
	assert.Equal(t, "Sahne", it.CategoryName)
	assert.Equal(t, "Depo 2", it.LocationName)

	err = c.RemoveCategory(ctx, cat.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Len(t, c.Categories(), 8)

	require.NoError(t, c.RemoveItem(ctx, it.ID))
	require.NoError(t, c.RemoveCategory(ctx, cat.ID))
	require.NoError(t, c.RemoveLocation(ctx, loc.ID))
	assert.Len(t, c.Categories(), 7)
	assert.Len(t, c.Locations(), 4)
}

func TestFailuresLeaveStateUnchanged(t *testing.T) {
	r := newRemote(t)
	f := &flaky{Store: r}
	c := New(f)
	ctx := context.Background()
	require.NoError(t, c.LoadAll(ctx))

	items, moves := c.Items(), c.Movements()
	boom := apperr.Transport("remote.InsertItem", errors.New("connection reset"))

	f.insertItem = boom
	_, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Yeni"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.Equal(t, items, c.Items())

	f.deleteItem = boom
	assert.Error(t, c.RemoveItem(ctx, items[0].ID))
	assert.Equal(t, items, c.Items())
	assert.Equal(t, moves, c.Movements())

	f.listMovements = errors.New("timeout")
	err = c.LoadAll(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.Equal(t, items, c.Items())
	assert.Equal(t, moves, c.Movements())
}

func TestSnapshotRestore(t *testing.T) {
	storage := &memStorage{}
	c, r := loaded(t, WithSnapshots(storage))

	offline := New(r, WithSnapshots(storage))
	ok, err := offline.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(c.Items()), len(offline.Items()))
	assert.Equal(t, c.Movements()[0].ItemName, offline.Movements()[0].ItemName)

	empty := New(r, WithSnapshots(&memStorage{}))
	ok, err = empty.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotWhileMutating(t *testing.T) {
	c, _ := loaded(t, WithSnapshots(&memStorage{}))
	ctx := context.Background()

	it, err := c.AddItem(ctx, models.CreateItemRequest{Name: "Sehpa"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(3)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.LoadAll(ctx))
		}()
		go func() {
			defer wg.Done()
			_, err := c.AddMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 1})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			desc := fmt.Sprintf("tur %d", i)
			_, err := c.UpdateItem(ctx, it.ID, models.ItemPatch{Description: &desc})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, c.LoadAll(ctx))
	got, ok := c.Item(it.ID)
	require.True(t, ok)
	assert.Equal(t, 50, got.Quantity)
}

func TestSnapshotInLocalstore(t *testing.T) {
	ls, err := localstore.Open(localstore.InMemory)
	require.NoError(t, err)
	defer ls.Close()

	_, r := loaded(t, WithSnapshots(ls))
	offline := New(r, WithSnapshots(ls))
	ok, err := offline.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, offline.Items(), 6)
}
