// Package remote defines the collaborators the client packages consume: a
// row store with a small RPC surface, and an auth service with a change
// stream. httpclient implements them over HTTP; Local implements them
// in-process on top of the server packages.
package remote

import (
	"context"
	"errors"

	"envanter/internal/apperr"
	"envanter/internal/auth"
	"envanter/internal/models"
	"envanter/internal/store"
)

// Store is the remote row store. Every error it returns is an *apperr.Error.
type Store interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	InsertItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error)
	// DeleteItem removes the item and its movements and reports how many
	// movements went with it.
	DeleteItem(ctx context.Context, id string) (int, error)

	ListMovements(ctx context.Context, f models.MovementFilter) ([]models.Movement, error)
	// InsertMovement records the movement and adjusts the item's quantity;
	// the result carries the quantity after the adjustment.
	InsertMovement(ctx context.Context, req models.CreateMovementRequest) (*models.MovementResult, error)
	DeleteMovement(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	InsertCategory(ctx context.Context, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListLocations(ctx context.Context) ([]models.Location, error)
	InsertLocation(ctx context.Context, name string) (*models.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	// LookupEmail is the lookup_email RPC: username to sign-in email.
	LookupEmail(ctx context.Context, username string) (string, error)
}

// Auth is the remote auth service.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (*models.SessionUser, error)
	// Subscribe streams auth events for the token's session. The channel is
	// closed when ctx is done or the stream ends.
	Subscribe(ctx context.Context, token string) (<-chan models.AuthEvent, error)
}

// MapError classifies a server-side error for the client boundary op.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return apperr.WithOp(op, err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperr.New(apperr.KindCredentials, op, err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.KindNotFound, op, err)
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.New(apperr.KindInsufficientStock, op, err)
	case errors.Is(err, store.ErrConflict):
		return apperr.New(apperr.KindConflict, op, err)
	}
	return apperr.Transport(op, err)
}
