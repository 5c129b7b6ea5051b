// Package store is the relational row store behind the HTTP API. Postgres is
// the production implementation; Memory backs tests, demos and offline use.
package store

import (
	"context"
	"errors"
	"time"

	"envanter/internal/listing"
	"envanter/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// SessionRecord tracks an issued access token so it can be revoked.
type SessionRecord struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *SessionRecord) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Store is the row-level API. Items listed or returned carry joined category
// and location names; movements carry item, location and actor names.
//
// CreateMovement owns the quantity invariant: it records the movement and
// adjusts the item's quantity in one step, and rejects an Out that would take
// the quantity below zero with ErrInsufficientStock.
type Store interface {
	ListItems(ctx context.Context, p listing.Params) ([]models.Item, int, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error)
	// DeleteItem removes the item and every movement referencing it and
	// returns how many movements went with it.
	DeleteItem(ctx context.Context, id string) (int, error)

	ListMovements(ctx context.Context, f models.MovementFilter, p listing.Params) ([]models.Movement, int, error)
	CreateMovement(ctx context.Context, req models.CreateMovementRequest) (*models.MovementResult, error)
	DeleteMovement(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListLocations(ctx context.Context) ([]models.Location, error)
	CreateLocation(ctx context.Context, name string) (*models.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string) error

	CreateSession(ctx context.Context, s SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	RevokeSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error)

	// ImportItems upserts items by barcode in one transaction. Quantities of
	// existing items are left alone; they only change through movements.
	ImportItems(ctx context.Context, reqs []models.CreateItemRequest) (ImportResult, error)

	Ping(ctx context.Context) error
	Close() error
}

// ImportResult counts what ImportItems did.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// SessionBinder is implemented by stores that scope a request's queries to
// the calling user (row-level security). The returned release func must be
// called when the request ends.
type SessionBinder interface {
	BindUser(ctx context.Context, userID string) (context.Context, func(), error)
}

var itemSortKeys = map[string]string{
	"id":         "p.id",
	"name":       "p.name",
	"brand":      "p.brand",
	"barcode":    "p.barcode",
	"status":     "p.status",
	"quantity":   "p.quantity",
	"category":   "c.name",
	"location":   "l.name",
	"created_at": "p.created_at",
	"updated_at": "p.updated_at",
}

var movementSortKeys = map[string]string{
	"id":       "m.id",
	"date":     "m.date",
	"type":     "m.type",
	"quantity": "m.quantity",
	"item":     "p.name",
}
