package storage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Enumerator yields the full known player population: everyone with a
// persisted record plus everyone currently active. Leaderboard computations
// walk this set.
type Enumerator struct {
	provider RecordProvider
	store    *TieredStore
	logger   *slog.Logger
}

// NewEnumerator creates a population enumerator over the given provider and
// tiered store.
func NewEnumerator(provider RecordProvider, store *TieredStore, logger *slog.Logger) *Enumerator {
	return &Enumerator{
		provider: provider,
		store:    store,
		logger:   logger,
	}
}

// AllPlayerIDs returns the union of persisted and active player IDs,
// deduplicated. A provider listing failure is logged and the enumeration
// proceeds with the active set alone, so a broken disk degrades leaderboards
// instead of emptying them.
func (e *Enumerator) AllPlayerIDs(ctx context.Context) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})

	persisted, err := e.provider.ListIDs(ctx)
	if err != nil {
		e.logger.Error("Failed to list persisted player records", "error", err)
	}
	for _, id := range persisted {
		seen[id] = struct{}{}
	}
	for _, id := range e.store.ActiveIDs() {
		seen[id] = struct{}{}
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}
