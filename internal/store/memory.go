package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"envanter/internal/listing"
	"envanter/internal/models"
)

// Memory is an in-process Store. All methods are safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]*models.Item
	itemOrder  []string
	movements  map[string]*models.Movement
	moveOrder  []string
	categories map[string]models.Category
	locations  map[string]models.Location
	users      map[string]*models.User
	sessions   map[string]SessionRecord

	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:      make(map[string]*models.Item),
		movements:  make(map[string]*models.Movement),
		categories: make(map[string]models.Category),
		locations:  make(map[string]models.Location),
		users:      make(map[string]*models.User),
		sessions:   make(map[string]SessionRecord),
		now:        time.Now,
	}
}

var itemCompare = map[string]listing.Compare[models.Item]{
	"id":         func(a, b models.Item) int { return strings.Compare(a.ID, b.ID) },
	"name":       func(a, b models.Item) int { return strings.Compare(a.Name, b.Name) },
	"brand":      func(a, b models.Item) int { return strings.Compare(a.Brand, b.Brand) },
	"barcode":    func(a, b models.Item) int { return strings.Compare(a.Barcode, b.Barcode) },
	"status":     func(a, b models.Item) int { return strings.Compare(string(a.Status), string(b.Status)) },
	"quantity":   func(a, b models.Item) int { return a.Quantity - b.Quantity },
	"category":   func(a, b models.Item) int { return strings.Compare(a.CategoryName, b.CategoryName) },
	"location":   func(a, b models.Item) int { return strings.Compare(a.LocationName, b.LocationName) },
	"created_at": func(a, b models.Item) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b models.Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

var movementCompare = map[string]listing.Compare[models.Movement]{
	"id":       func(a, b models.Movement) int { return strings.Compare(a.ID, b.ID) },
	"date":     func(a, b models.Movement) int { return a.Date.Compare(b.Date) },
	"type":     func(a, b models.Movement) int { return strings.Compare(string(a.Type), string(b.Type)) },
	"quantity": func(a, b models.Movement) int { return a.Quantity - b.Quantity },
	"item":     func(a, b models.Movement) int { return strings.Compare(a.ItemName, b.ItemName) },
}

// joinItem returns a copy of it with display names filled in. Callers hold mu.
func (m *Memory) joinItem(it *models.Item) models.Item {
	out := *it
	out.CategoryName = ""
	out.LocationName = ""
	if c, ok := m.categories[it.CategoryID]; ok {
		out.CategoryName = c.Name
	}
	if l, ok := m.locations[it.LocationID]; ok {
		out.LocationName = l.Name
	}
	return out
}

func (m *Memory) joinMovement(mv *models.Movement) models.Movement {
	out := *mv
	out.ItemName = ""
	out.LocationName = ""
	out.ActorName = ""
	if it, ok := m.items[mv.ItemID]; ok {
		out.ItemName = it.Name
	}
	if l, ok := m.locations[mv.LocationID]; ok {
		out.LocationName = l.Name
	}
	if u, ok := m.users[mv.Actor]; ok {
		out.ActorName = u.Profile().DisplayName()
	}
	return out
}

func (m *Memory) ListItems(_ context.Context, p listing.Params) ([]models.Item, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]models.Item, 0, len(m.itemOrder))
	for _, id := range m.itemOrder {
		it := m.joinItem(m.items[id])
		if p.Q != "" && !listing.ContainsFold(it.Name, p.Q) && !listing.ContainsFold(it.Barcode, p.Q) &&
			!listing.ContainsFold(it.SerialNumber, p.Q) {
			continue
		}
		rows = append(rows, it)
	}
	listing.SortSlice(rows, listing.ParseSort(p.Sort, nil), itemCompare)
	return listing.Page(rows, p), len(rows), nil
}

func (m *Memory) GetItem(_ context.Context, id string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.joinItem(it)
	return &out, nil
}

// checkRefs verifies optional category and location references. Callers hold mu.
func (m *Memory) checkRefs(categoryID, locationID string) error {
	if categoryID != "" {
		if _, ok := m.categories[categoryID]; !ok {
			return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
		}
	}
	if locationID != "" {
		if _, ok := m.locations[locationID]; !ok {
			return fmt.Errorf("location %s: %w", locationID, ErrNotFound)
		}
	}
	return nil
}

func (m *Memory) barcodeTaken(barcode, exceptID string) bool {
	for id, it := range m.items {
		if id != exceptID && it.Barcode == barcode {
			return true
		}
	}
	return false
}

func (m *Memory) CreateItem(_ context.Context, req models.CreateItemRequest) (*models.Item, error) {
	req.Normalize()
	if req.Barcode == "" {
		req.Barcode = models.GenerateBarcode()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRefs(req.CategoryID, req.LocationID); err != nil {
		return nil, err
	}
	if m.barcodeTaken(req.Barcode, "") {
		return nil, fmt.Errorf("barcode %s: %w", req.Barcode, ErrConflict)
	}

	now := m.now()
	it := &models.Item{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Brand:        req.Brand,
		Model:        req.Model,
		CategoryID:   req.CategoryID,
		Status:       req.Status,
		LocationID:   req.LocationID,
		SerialNumber: req.SerialNumber,
		Barcode:      req.Barcode,
		Description:  req.Description,
		Quantity:     req.Quantity,
		PhotoURL:     req.PhotoURL,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.items[it.ID] = it
	m.itemOrder = append(m.itemOrder, it.ID)

	out := m.joinItem(it)
	return &out, nil
}

func (m *Memory) UpdateItem(_ context.Context, id string, patch models.ItemPatch) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *it
	patch.Apply(&next)
	if err := m.checkRefs(next.CategoryID, next.LocationID); err != nil {
		return nil, err
	}
	if next.Barcode != it.Barcode && m.barcodeTaken(next.Barcode, id) {
		return nil, fmt.Errorf("barcode %s: %w", next.Barcode, ErrConflict)
	}
	next.UpdatedAt = m.now()
	*it = next

	out := m.joinItem(it)
	return &out, nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return 0, ErrNotFound
	}
	removed := 0
	order := m.moveOrder[:0]
	for _, mid := range m.moveOrder {
		if m.movements[mid].ItemID == id {
			delete(m.movements, mid)
			removed++
			continue
		}
		order = append(order, mid)
	}
	m.moveOrder = order

	delete(m.items, id)
	m.itemOrder = removeID(m.itemOrder, id)
	return removed, nil
}

func (m *Memory) ListMovements(_ context.Context, f models.MovementFilter, p listing.Params) ([]models.Movement, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var itemSet map[string]bool
	if len(f.ItemIDs) > 0 {
		itemSet = make(map[string]bool, len(f.ItemIDs))
		for _, id := range f.ItemIDs {
			itemSet[id] = true
		}
	}

	rows := make([]models.Movement, 0, len(m.moveOrder))
	for _, id := range m.moveOrder {
		mv := m.movements[id]
		if itemSet != nil && !itemSet[mv.ItemID] {
			continue
		}
		if f.Type != "" && mv.Type != f.Type {
			continue
		}
		if f.From != nil && mv.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && mv.Date.After(*f.To) {
			continue
		}
		joined := m.joinMovement(mv)
		if p.Q != "" && !listing.ContainsFold(joined.ItemName, p.Q) && !listing.ContainsFold(joined.Description, p.Q) {
			continue
		}
		rows = append(rows, joined)
	}
	sortParam := p.Sort
	if sortParam == "" {
		sortParam = "date"
	}
	listing.SortSlice(rows, listing.ParseSort(sortParam, nil), movementCompare)
	return listing.Page(rows, p), len(rows), nil
}

func (m *Memory) CreateMovement(_ context.Context, req models.CreateMovementRequest) (*models.MovementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[req.ItemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", req.ItemID, ErrNotFound)
	}
	if err := m.checkRefs("", req.LocationID); err != nil {
		return nil, err
	}
	if req.Actor != "" {
		if _, ok := m.users[req.Actor]; !ok {
			return nil, fmt.Errorf("actor %s: %w", req.Actor, ErrNotFound)
		}
	}

	qty := it.Quantity + req.Type.Delta(req.Quantity)
	if qty < 0 {
		return nil, fmt.Errorf("item %s has %d, need %d: %w", it.ID, it.Quantity, req.Quantity, ErrInsufficientStock)
	}

	date := m.now()
	if req.Date != nil {
		date = *req.Date
	}
	mv := &models.Movement{
		ID:          uuid.NewString(),
		ItemID:      req.ItemID,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Date:        date,
		Description: req.Description,
		LocationID:  req.LocationID,
		Actor:       req.Actor,
	}
	m.movements[mv.ID] = mv
	m.moveOrder = append(m.moveOrder, mv.ID)
	it.Quantity = qty
	it.UpdatedAt = m.now()

	return &models.MovementResult{Movement: m.joinMovement(mv), ItemQuantity: qty}, nil
}

func (m *Memory) DeleteMovement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.movements[id]; !ok {
		return ErrNotFound
	}
	delete(m.movements, id)
	m.moveOrder = removeID(m.moveOrder, id)
	return nil
}

func (m *Memory) ListCategories(_ context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateCategory(_ context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if c.Name == name {
			return nil, fmt.Errorf("category %q: %w", name, ErrConflict)
		}
	}
	c := models.Category{ID: uuid.NewString(), Name: name}
	m.categories[c.ID] = c
	return &c, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return ErrNotFound
	}
	for _, it := range m.items {
		if it.CategoryID == id {
			return fmt.Errorf("category %s is used by item %s: %w", id, it.ID, ErrConflict)
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *Memory) ListLocations(_ context.Context) ([]models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateLocation(_ context.Context, name string) (*models.Location, error) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.locations {
		if l.Name == name {
			return nil, fmt.Errorf("location %q: %w", name, ErrConflict)
		}
	}
	l := models.Location{ID: uuid.NewString(), Name: name}
	m.locations[l.ID] = l
	return &l, nil
}

func (m *Memory) DeleteLocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locations[id]; !ok {
		return ErrNotFound
	}
	for _, it := range m.items {
		if it.LocationID == id {
			return fmt.Errorf("location %s is used by item %s: %w", id, it.ID, ErrConflict)
		}
	}
	for _, mv := range m.movements {
		if mv.LocationID == id {
			mv.LocationID = ""
		}
	}
	delete(m.locations, id)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username != "" && u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, u models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, fmt.Errorf("email %s: %w", u.Email, ErrConflict)
		}
		if u.Username != "" && existing.Username == u.Username {
			return nil, fmt.Errorf("username %s: %w", u.Username, ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now()
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now
	stored := u
	m.users[u.ID] = &stored
	return &u, nil
}

func (m *Memory) TouchLastLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	u.LastLoginAt = &now
	return nil
}

func (m *Memory) CreateSession(_ context.Context, s SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[s.UserID]; !ok {
		return fmt.Errorf("user %s: %w", s.UserID, ErrNotFound)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) RevokeSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.RevokedAt == nil {
		now := m.now()
		s.RevokedAt = &now
		m.sessions[id] = s
	}
	return nil
}

func (m *Memory) PurgeExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if !s.Active(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (m *Memory) ImportItems(_ context.Context, reqs []models.CreateItemRequest) (ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range reqs {
		reqs[i].Normalize()
		if reqs[i].Barcode == "" {
			reqs[i].Barcode = models.GenerateBarcode()
		}
		if err := m.checkRefs(reqs[i].CategoryID, reqs[i].LocationID); err != nil {
			return ImportResult{}, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	var res ImportResult
	now := m.now()
	for _, req := range reqs {
		var existing *models.Item
		for _, it := range m.items {
			if it.Barcode == req.Barcode {
				existing = it
				break
			}
		}
		if existing != nil {
			existing.Name = req.Name
			existing.Brand = req.Brand
			existing.Model = req.Model
			existing.CategoryID = req.CategoryID
			existing.Status = req.Status
			existing.LocationID = req.LocationID
			existing.SerialNumber = req.SerialNumber
			existing.Description = req.Description
			existing.UpdatedAt = now
			res.Updated++
			continue
		}
		it := &models.Item{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Brand:        req.Brand,
			Model:        req.Model,
			CategoryID:   req.CategoryID,
			Status:       req.Status,
			LocationID:   req.LocationID,
			SerialNumber: req.SerialNumber,
			Barcode:      req.Barcode,
			Description:  req.Description,
			Quantity:     req.Quantity,
			PhotoURL:     req.PhotoURL,
			CreatedBy:    req.CreatedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		m.items[it.ID] = it
		m.itemOrder = append(m.itemOrder, it.ID)
		res.Created++
	}
	return res, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, patch models.UserPatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.FullName != nil {
		name := *patch.FullName
		u.FullName = &name
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = m.now()
	out := *u
	return &out, nil
}
