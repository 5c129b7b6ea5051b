package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// Valid reports whether t is In or Out.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut
}

// Label returns the display label.
func (t MovementType) Label() string {
	switch t {
	case MovementIn:
		return "Giriş"
	case MovementOut:
		return "Çıkış"
	}
	return string(t)
}

// Delta is the signed quantity change a movement of type t applies.
func (t MovementType) Delta(quantity int) int {
	if t == MovementOut {
		return -quantity
	}
	return quantity
}

// ParseMovementType accepts "in"/"out" or the display labels.
func ParseMovementType(s string) (MovementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "giriş", "giris":
		return MovementIn, nil
	case "out", "çıkış", "cikis":
		return MovementOut, nil
	}
	return "", fmt.Errorf("unknown movement type %q", s)
}

// Movement is a logged quantity change against an item. Immutable once created.
type Movement struct {
	ID           string       `json:"id"`
	ItemID       string       `json:"item_id"`
	ItemName     string       `json:"item_name,omitempty"`
	Type         MovementType `json:"type"`
	Quantity     int          `json:"quantity"`
	Date         time.Time    `json:"date"`
	Description  string       `json:"description,omitempty"`
	LocationID   string       `json:"location_id,omitempty"`
	LocationName string       `json:"location_name,omitempty"`
	Actor        string       `json:"actor,omitempty"`
	ActorName    string       `json:"actor_name,omitempty"`
}

// CreateMovementRequest represents the request body for recording a movement
type CreateMovementRequest struct {
	ItemID      string       `json:"item_id"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	Date        *time.Time   `json:"date,omitempty"`
	Description string       `json:"description,omitempty"`
	LocationID  string       `json:"location_id,omitempty"`
	Actor       string       `json:"actor,omitempty"`
}

// Validate checks the request shape. Item existence is checked by the store.
func (r *CreateMovementRequest) Validate() error {
	if strings.TrimSpace(r.ItemID) == "" {
		return errors.New("item_id is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid movement type %q", r.Type)
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	return nil
}

// MovementResult is what the store returns after recording a movement:
// the movement and the item's quantity after the adjustment.
type MovementResult struct {
	Movement     Movement `json:"movement"`
	ItemQuantity int      `json:"item_quantity"`
}

// MovementFilter narrows movement listings. Zero values mean no filter.
type MovementFilter struct {
	ItemIDs []string
	Type    MovementType
	From    *time.Time
	To      *time.Time
}
