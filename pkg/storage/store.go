package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

// InvalidateFunc is called after every successful record mutation so the
// ranking engine can drop cache entries the mutated player may appear in.
type InvalidateFunc func(playerID uuid.UUID)

// TieredStore serves player records from three tiers of very different cost:
// an active tier for currently connected players (mutated in place, persisted
// only by the periodic flush), a transient tier for recently-touched inactive
// players (persisted synchronously on every mutation, prunable at will), and
// the record provider on disk.
//
// A record lives in exactly one tier at a time; activation and deactivation
// move ownership rather than copying. All public methods are safe for
// concurrent use. Records handed out to callers are clones, so readers never
// observe a record mid-mutation.
type TieredStore struct {
	provider       RecordProvider
	transientLimit int
	logger         *slog.Logger

	mu        sync.RWMutex
	active    map[uuid.UUID]*domain.PlayerRecord
	transient map[uuid.UUID]*domain.PlayerRecord

	onMutate InvalidateFunc
}

// NewTieredStore creates a tiered store over the given provider.
func NewTieredStore(provider RecordProvider, transientLimit int, logger *slog.Logger) *TieredStore {
	return &TieredStore{
		provider:       provider,
		transientLimit: transientLimit,
		logger:         logger,
		active:         make(map[uuid.UUID]*domain.PlayerRecord),
		transient:      make(map[uuid.UUID]*domain.PlayerRecord),
	}
}

// SetInvalidateHook installs the per-player invalidation callback.
// Must be called during wiring, before concurrent use begins.
func (s *TieredStore) SetInvalidateHook(fn InvalidateFunc) {
	s.onMutate = fn
}

func (s *TieredStore) notify(playerID uuid.UUID) {
	if s.onMutate != nil {
		s.onMutate(playerID)
	}
}

// Get returns a snapshot of the record from the active tier if present, else
// the transient tier, else (nil, false). Callers that need a guaranteed
// record fall back to LoadRecord.
func (s *TieredStore) Get(playerID uuid.UUID) (*domain.PlayerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, ok := s.active[playerID]; ok {
		return record.Clone(), true
	}
	if record, ok := s.transient[playerID]; ok {
		return record.Clone(), true
	}
	return nil, false
}

// LoadRecord returns a snapshot of the record governing the player, reading
// from the provider when neither tier holds it. A provider read caches the
// result in the transient tier; if a tier copy appeared during the read (a
// load race), the freshly loaded record is discarded in its favor.
func (s *TieredStore) LoadRecord(ctx context.Context, playerID uuid.UUID) (*domain.PlayerRecord, error) {
	if record, ok := s.Get(playerID); ok {
		return record, nil
	}

	loaded, err := s.provider.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.active[playerID]; ok {
		return record.Clone(), nil
	}
	if record, ok := s.transient[playerID]; ok {
		return record.Clone(), nil
	}
	s.transient[playerID] = loaded
	return loaded.Clone(), nil
}

// Mutate applies fn to the record currently governing the player.
//
// If the player is active, the mutation is applied in place and persistence
// is deferred to the next periodic flush, keeping the hot gameplay path free
// of I/O. Otherwise the record comes from the transient tier or a provider
// read, and is persisted synchronously before Mutate returns; a failed save
// is returned to the caller but the in-memory mutation is kept for a later
// retry. Every successful mutation fires the invalidation hook.
func (s *TieredStore) Mutate(ctx context.Context, playerID uuid.UUID, fn func(*domain.PlayerRecord)) error {
	s.mu.Lock()
	if record, ok := s.active[playerID]; ok {
		fn(record)
		s.mu.Unlock()
		s.notify(playerID)
		return nil
	}
	if record, ok := s.transient[playerID]; ok {
		fn(record)
		snapshot := record.Clone()
		s.mu.Unlock()
		s.notify(playerID)
		return s.provider.Save(ctx, snapshot)
	}
	s.mu.Unlock()

	loaded, err := s.provider.Load(ctx, playerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	// A tier copy may have appeared during the provider read; the freshly
	// loaded record is discarded in that case.
	if record, ok := s.active[playerID]; ok {
		fn(record)
		s.mu.Unlock()
		s.notify(playerID)
		return nil
	}
	record, ok := s.transient[playerID]
	if !ok {
		record = loaded
		s.transient[playerID] = record
	}
	fn(record)
	snapshot := record.Clone()
	s.mu.Unlock()
	s.notify(playerID)
	return s.provider.Save(ctx, snapshot)
}

// MutateActive applies fn only if the player is currently active, silently
// doing nothing otherwise. This is the highest-frequency gameplay path; the
// caller already tolerates eventual persistence.
func (s *TieredStore) MutateActive(playerID uuid.UUID, fn func(*domain.PlayerRecord)) bool {
	s.mu.Lock()
	record, ok := s.active[playerID]
	if ok {
		fn(record)
	}
	s.mu.Unlock()

	if ok {
		s.notify(playerID)
	}
	return ok
}

// Activate moves the player's record into the active tier: out of the
// transient tier when cached there, otherwise from a provider read. The
// record is tagged with the live display name.
func (s *TieredStore) Activate(ctx context.Context, playerID uuid.UUID, name string) error {
	s.mu.Lock()
	if record, ok := s.transient[playerID]; ok {
		delete(s.transient, playerID)
		record.Name = name
		s.active[playerID] = record
		s.mu.Unlock()
		return nil
	}
	if record, ok := s.active[playerID]; ok {
		record.Name = name
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	loaded, err := s.provider.Load(ctx, playerID)
	if err != nil {
		s.logger.Error("Failed to load record on activation, starting empty",
			"player_id", playerID, "error", err)
		loaded = domain.NewPlayerRecord(playerID, name)
	}
	loaded.Name = name

	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.transient[playerID]; ok {
		delete(s.transient, playerID)
		record.Name = name
		s.active[playerID] = record
		return nil
	}
	if _, ok := s.active[playerID]; ok {
		return nil
	}
	s.active[playerID] = loaded
	return nil
}

// Deactivate removes the player's record from the active tier and persists
// it synchronously. The record is not kept in memory afterwards.
func (s *TieredStore) Deactivate(ctx context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	record, ok := s.active[playerID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.active, playerID)
	snapshot := record.Clone()
	s.mu.Unlock()

	if err := s.provider.Save(ctx, snapshot); err != nil {
		s.logger.Error("Failed to save record on deactivation",
			"player_id", playerID, "error", err)
		return err
	}
	return nil
}

// RemovePlayer drops the player's record from every tier and deletes the
// persisted copy (admin operation).
func (s *TieredStore) RemovePlayer(ctx context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	delete(s.active, playerID)
	delete(s.transient, playerID)
	s.mu.Unlock()

	if err := s.provider.Delete(ctx, playerID); err != nil {
		return err
	}
	s.notify(playerID)
	return nil
}

// SaveAll persists every record currently held in memory (both tiers).
// Used by the periodic flush and on shutdown. Returns the number of records
// saved and the first save error encountered; remaining saves still run.
func (s *TieredStore) SaveAll(ctx context.Context) (int, error) {
	s.mu.RLock()
	snapshots := make([]*domain.PlayerRecord, 0, len(s.active)+len(s.transient))
	for _, record := range s.active {
		snapshots = append(snapshots, record.Clone())
	}
	for _, record := range s.transient {
		snapshots = append(snapshots, record.Clone())
	}
	s.mu.RUnlock()

	var firstErr error
	saved := 0
	for _, snapshot := range snapshots {
		if err := s.provider.Save(ctx, snapshot); err != nil {
			s.logger.Error("Failed to save player record",
				"player_id", snapshot.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved++
	}
	return saved, firstErr
}

// PruneTransient clears the transient tier wholesale once it exceeds the
// configured limit. Records are durable on disk, so pruning never loses
// data, only forces a future re-load.
func (s *TieredStore) PruneTransient() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.transient) <= s.transientLimit {
		return
	}
	s.logger.Info("Pruning transient tier", "records", len(s.transient))
	s.transient = make(map[uuid.UUID]*domain.PlayerRecord)
}

// ClearTransient drops the transient tier unconditionally.
func (s *TieredStore) ClearTransient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transient = make(map[uuid.UUID]*domain.PlayerRecord)
}

// ActiveIDs returns the IDs of every currently active player.
func (s *TieredStore) ActiveIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// CategoryTotal computes the player's aggregate for a type/category pair,
// falling back to a provider read when neither tier holds the record.
func (s *TieredStore) CategoryTotal(ctx context.Context, playerID uuid.UUID, statType, category string) (int, error) {
	record, err := s.LoadRecord(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return record.CategoryTotal(statType, category), nil
}

// TypeTotal computes the player's total across all categories of a type.
func (s *TieredStore) TypeTotal(ctx context.Context, playerID uuid.UUID, statType string) (int, error) {
	record, err := s.LoadRecord(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return record.TypeTotal(statType), nil
}

// DisplayName resolves the player's display name from whichever tier or
// persisted record knows it. Returns ("", false) when no name can be
// resolved; such players are skipped by leaderboard computations.
func (s *TieredStore) DisplayName(ctx context.Context, playerID uuid.UUID) (string, bool) {
	record, err := s.LoadRecord(ctx, playerID)
	if err != nil || record.Name == "" {
		return "", false
	}
	return record.Name, true
}
