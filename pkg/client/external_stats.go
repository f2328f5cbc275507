package client

import (
	"context"

	"github.com/google/uuid"
)

// ExternalStats is the boundary to the third-party fishing plugin whose own
// statistics store is consulted for collection-derived scores: per-item
// catch counts (progress leaderboards, "category"-type scores) and the
// plugin-wide total catch count.
//
// Implementations must be safe for concurrent use; the ranking engine calls
// them from its worker pool.
type ExternalStats interface {
	// ItemAmount returns how many of the given item the player has ever
	// caught according to the external store.
	ItemAmount(ctx context.Context, playerID uuid.UUID, itemID string) (int, error)

	// TotalCaught returns the player's total catch count across all items.
	TotalCaught(ctx context.Context, playerID uuid.UUID) (int, error)
}

// Unavailable is an ExternalStats implementation for deployments without the
// third-party plugin. Every lookup reports zero, so collection-derived
// leaderboards simply come out empty ("contributes nothing" semantics).
type Unavailable struct{}

// ItemAmount always returns 0.
func (Unavailable) ItemAmount(ctx context.Context, playerID uuid.UUID, itemID string) (int, error) {
	return 0, nil
}

// TotalCaught always returns 0.
func (Unavailable) TotalCaught(ctx context.Context, playerID uuid.UUID) (int, error) {
	return 0, nil
}

// NewUnavailable creates the no-op external stats source.
func NewUnavailable() Unavailable {
	return Unavailable{}
}
