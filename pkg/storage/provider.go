package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

// NameResolver supplies a best-effort display name for a player that has no
// persisted record yet (e.g. from the game server's profile cache). May
// return "" when no name is known.
type NameResolver func(playerID uuid.UUID) string

// RecordProvider persists player statistics records, one record per player.
// This interface abstracts the storage backend so the tiered store works the
// same over YAML files and PostgreSQL.
type RecordProvider interface {
	// Load reads the persisted record for a player. A missing record is not
	// an error: a freshly synthesized empty record is returned instead, with
	// a best-effort display name.
	Load(ctx context.Context, playerID uuid.UUID) (*domain.PlayerRecord, error)

	// Save persists the full record, replacing any previous version.
	Save(ctx context.Context, record *domain.PlayerRecord) error

	// Delete removes the persisted record. Deleting a missing record is a
	// no-op.
	Delete(ctx context.Context, playerID uuid.UUID) error

	// ListIDs enumerates every player with a persisted record.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}
