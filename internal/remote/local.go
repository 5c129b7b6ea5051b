package remote

import (
	"context"

	"envanter/internal/apperr"
	"envanter/internal/auth"
	"envanter/internal/events"
	"envanter/internal/listing"
	"envanter/internal/models"
	"envanter/internal/store"
)

// Local serves Store and Auth from an in-process store, auth service and
// event hub. Used by the offline demo mode of the CLI and by tests.
type Local struct {
	store  store.Store
	auth   *auth.Service
	events *events.Hub
}

var (
	_ Store = (*Local)(nil)
	_ Auth  = (*Local)(nil)
)

// NewLocal wires a Local. svc must publish to hub for Subscribe to see events.
func NewLocal(st store.Store, svc *auth.Service, hub *events.Hub) *Local {
	return &Local{store: st, auth: svc, events: hub}
}

func (l *Local) ListItems(ctx context.Context) ([]models.Item, error) {
	items, _, err := l.store.ListItems(ctx, listing.All)
	return items, MapError("remote.ListItems", err)
}

func (l *Local) InsertItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("remote.InsertItem", err)
	}
	it, err := l.store.CreateItem(ctx, req)
	return it, MapError("remote.InsertItem", err)
}

func (l *Local) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error) {
	if err := patch.Validate(); err != nil {
		return nil, apperr.Validation("remote.UpdateItem", err)
	}
	it, err := l.store.UpdateItem(ctx, id, patch)
	return it, MapError("remote.UpdateItem", err)
}

func (l *Local) DeleteItem(ctx context.Context, id string) (int, error) {
	n, err := l.store.DeleteItem(ctx, id)
	return n, MapError("remote.DeleteItem", err)
}

func (l *Local) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.Movement, error) {
	moves, _, err := l.store.ListMovements(ctx, f, listing.All)
	return moves, MapError("remote.ListMovements", err)
}

func (l *Local) InsertMovement(ctx context.Context, req models.CreateMovementRequest) (*models.MovementResult, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("remote.InsertMovement", err)
	}
	res, err := l.store.CreateMovement(ctx, req)
	return res, MapError("remote.InsertMovement", err)
}

func (l *Local) DeleteMovement(ctx context.Context, id string) error {
	return MapError("remote.DeleteMovement", l.store.DeleteMovement(ctx, id))
}

func (l *Local) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := l.store.ListCategories(ctx)
	return cats, MapError("remote.ListCategories", err)
}

func (l *Local) InsertCategory(ctx context.Context, name string) (*models.Category, error) {
	c, err := l.store.CreateCategory(ctx, name)
	return c, MapError("remote.InsertCategory", err)
}

func (l *Local) DeleteCategory(ctx context.Context, id string) error {
	return MapError("remote.DeleteCategory", l.store.DeleteCategory(ctx, id))
}

func (l *Local) ListLocations(ctx context.Context) ([]models.Location, error) {
	locs, err := l.store.ListLocations(ctx)
	return locs, MapError("remote.ListLocations", err)
}

func (l *Local) InsertLocation(ctx context.Context, name string) (*models.Location, error) {
	loc, err := l.store.CreateLocation(ctx, name)
	return loc, MapError("remote.InsertLocation", err)
}

func (l *Local) DeleteLocation(ctx context.Context, id string) error {
	return MapError("remote.DeleteLocation", l.store.DeleteLocation(ctx, id))
}

func (l *Local) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	u, err := l.store.GetUser(ctx, id)
	if err != nil {
		return nil, MapError("remote.GetProfile", err)
	}
	p := u.Profile()
	return &p, nil
}

func (l *Local) LookupEmail(ctx context.Context, username string) (string, error) {
	email, err := l.auth.LookupEmail(ctx, username)
	return email, MapError("remote.LookupEmail", err)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	sess, err := l.auth.SignIn(ctx, email, password)
	return sess, MapError("remote.SignIn", err)
}

func (l *Local) SignOut(ctx context.Context, token string) error {
	claims, err := l.auth.Authenticate(ctx, token)
	if err != nil {
		return MapError("remote.SignOut", err)
	}
	return MapError("remote.SignOut", l.auth.SignOut(ctx, claims))
}

func (l *Local) GetUser(ctx context.Context, token string) (*models.SessionUser, error) {
	claims, err := l.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, MapError("remote.GetUser", err)
	}
	u, err := l.auth.User(ctx, claims.UserID)
	if err != nil {
		return nil, MapError("remote.GetUser", err)
	}
	return &models.SessionUser{ID: u.ID, Email: u.Email}, nil
}

func (l *Local) Subscribe(ctx context.Context, token string) (<-chan models.AuthEvent, error) {
	claims, err := l.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, MapError("remote.Subscribe", err)
	}
	sub := l.events.Subscribe(claims.UserID, claims.ID)
	out := make(chan models.AuthEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
