// Package service wires the tiered player store, the server-wide aggregate
// store and the ranking engine behind the operations the gameplay and
// command collaborators call.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CesarCosmico/fishing-stats/pkg/config"
	"github.com/CesarCosmico/fishing-stats/pkg/domain"
	"github.com/CesarCosmico/fishing-stats/pkg/errors"
	"github.com/CesarCosmico/fishing-stats/pkg/globalstats"
	"github.com/CesarCosmico/fishing-stats/pkg/ranking"
	"github.com/CesarCosmico/fishing-stats/pkg/storage"
)

// shutdownGrace bounds the wait for in-flight leaderboard work on Close.
const shutdownGrace = 10 * time.Second

// Service is the statistics orchestrator. It owns the background auto-save
// and leaderboard-recache cycles and keeps the three stores consistent:
// every mutation flows to the player record (when one is involved), the
// server-wide aggregates, and the ranking caches' invalidation in one call.
type Service struct {
	cfg         *config.Config
	store       *storage.TieredStore
	global      *globalstats.Store
	ranking     *ranking.Engine
	collections Reloadable
	logger      *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Reloadable is the piece of configuration-derived state rebuilt on Reload.
type Reloadable interface {
	Reload(cfg *config.Config)
}

// New creates the service and wires the cross-component hooks: player
// mutations invalidate the mutated player's leaderboards, and a finished
// full recalculation releases the transient record tier it warmed up.
func New(
	cfg *config.Config,
	store *storage.TieredStore,
	global *globalstats.Store,
	engine *ranking.Engine,
	collections Reloadable,
	logger *slog.Logger,
) *Service {
	s := &Service{
		cfg:         cfg,
		store:       store,
		global:      global,
		ranking:     engine,
		collections: collections,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}

	store.SetInvalidateHook(func(playerID uuid.UUID) {
		engine.InvalidatePlayer(context.Background(), playerID)
	})
	engine.SetOnRecalculated(store.ClearTransient)

	return s
}

// Start launches the periodic auto-save and leaderboard-recache cycles.
func (s *Service) Start() {
	s.wg.Add(2)
	go s.autoSaveLoop()
	go s.recacheLoop()
	s.logger.Info("Statistics service started",
		"auto_save", s.cfg.Storage.AutoSave.Interval(),
		"recache", s.cfg.Ranking.RecacheInterval(),
	)
}

// Track records a gameplay event: the active player's record is mutated
// lazily (no-op if the player is not active), the server-wide aggregates
// grow, and the touched category's leaderboards are invalidated. This is
// the hot path; it never performs I/O.
func (s *Service) Track(playerID uuid.UUID, c domain.StatContext) {
	if playerID != uuid.Nil {
		s.store.MutateActive(playerID, func(r *domain.PlayerRecord) {
			r.AddStats(c)
		})
	}
	s.global.Increment(c)
	s.ranking.InvalidateCategory(c.Type, c.Category)
}

func validateContext(c domain.StatContext) error {
	if c.Type == "" {
		return errors.ErrInvalidInput("type", "must not be empty")
	}
	if c.Category == "" {
		return errors.ErrInvalidInput("category", "must not be empty")
	}
	if c.Amount < 1 {
		return errors.ErrInvalidInput("amount", "must be at least 1")
	}
	return nil
}

// AddStats applies an increment through the full persistence path. With a
// nil player ID only the server-wide aggregates grow (global-only events,
// e.g. a server milestone).
func (s *Service) AddStats(ctx context.Context, playerID uuid.UUID, c domain.StatContext) error {
	if err := validateContext(c); err != nil {
		return err
	}
	if playerID != uuid.Nil {
		err := s.store.Mutate(ctx, playerID, func(r *domain.PlayerRecord) {
			r.AddStats(c)
		})
		if err != nil {
			return err
		}
	}
	s.global.Increment(c)
	s.ranking.InvalidateCategory(c.Type, c.Category)
	return nil
}

// RemoveStats applies a decrement and returns how much was actually removed:
// the requested amount clamped to the currently stored count, so counters
// never go negative and the caller learns the real effect. With a nil player
// ID the clamp is against the server-wide aggregate instead.
func (s *Service) RemoveStats(ctx context.Context, playerID uuid.UUID, c domain.StatContext) (int, error) {
	if err := validateContext(c); err != nil {
		return 0, err
	}
	if playerID == uuid.Nil {
		current := s.global.CategoryTotal(c.Type, c.Category)
		if c.HasItem() {
			current = s.global.CategoryItems(c.Type, c.Category)[c.Item]
		}
		removed := min(current, c.Amount)
		if removed > 0 {
			s.global.Decrement(c.WithAmount(removed))
			s.ranking.InvalidateCategory(c.Type, c.Category)
		}
		return removed, nil
	}

	removed := 0
	err := s.store.Mutate(ctx, playerID, func(r *domain.PlayerRecord) {
		current := r.CategoryTotal(c.Type, c.Category)
		if c.HasItem() {
			current = r.ItemAmount(c.Type, c.Category, c.Item)
		}
		removed = min(current, c.Amount)
		if removed > 0 {
			r.RemoveStats(c.WithAmount(removed))
		}
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.global.Decrement(c.WithAmount(removed))
		s.ranking.InvalidateCategory(c.Type, c.Category)
	}
	return removed, nil
}

// RemovePlayerStats wipes a player's record everywhere: both memory tiers
// and the persisted copy. Server-wide aggregates are untouched; they track
// what happened, not who holds it.
//
// The display name is captured before the record is deleted: afterwards it
// can no longer be resolved, and the name-membership invalidation would miss
// the boards the wiped player is still cached on.
func (s *Service) RemovePlayerStats(ctx context.Context, playerID uuid.UUID) error {
	name, _ := s.store.DisplayName(ctx, playerID)
	if err := s.store.RemovePlayer(ctx, playerID); err != nil {
		return err
	}
	s.ranking.InvalidateName(name)
	return nil
}

// RemoveCategoryStats wipes a server-wide category aggregate and drops its
// leaderboards. Admin operation, e.g. resetting a competition season.
func (s *Service) RemoveCategoryStats(statType, category string) {
	s.global.RemoveCategory(statType, category)
	s.ranking.InvalidateCategory(statType, category)
}

// Activate brings a connecting player's record into the active tier.
func (s *Service) Activate(ctx context.Context, playerID uuid.UUID, name string) error {
	return s.store.Activate(ctx, playerID, name)
}

// Deactivate persists and evicts a disconnecting player's record.
func (s *Service) Deactivate(ctx context.Context, playerID uuid.UUID) error {
	return s.store.Deactivate(ctx, playerID)
}

// CategoryTotal returns the server-wide total for a type/category pair.
func (s *Service) CategoryTotal(statType, category string) int {
	return s.global.CategoryTotal(statType, category)
}

// CategoryItems returns the server-wide per-item counts for a pair.
func (s *Service) CategoryItems(statType, category string) map[string]int {
	return s.global.CategoryItems(statType, category)
}

// TypeTotal returns the server-wide total across all categories of a type.
func (s *Service) TypeTotal(statType string) int {
	return s.global.TypeTotal(statType)
}

// AllTypes returns every statistic type with server-wide aggregates.
func (s *Service) AllTypes() []string {
	return s.global.AllTypes()
}

// CategoriesOf returns the categories tracked under a type.
func (s *Service) CategoriesOf(statType string) []string {
	return s.global.CategoriesOf(statType)
}

// TopN returns the top entries of a category leaderboard.
func (s *Service) TopN(ctx context.Context, statType, category string, limit int) []domain.RankEntry {
	return s.ranking.TopN(ctx, statType, category, limit)
}

// TopNByType returns the top entries of a type-wide leaderboard.
func (s *Service) TopNByType(ctx context.Context, statType string, limit int) []domain.RankEntry {
	return s.ranking.TopNByType(ctx, statType, limit)
}

// TopNByProgress returns the top entries of a collection-progress board.
func (s *Service) TopNByProgress(ctx context.Context, category string, limit int) []domain.ProgressEntry {
	return s.ranking.TopNByProgress(ctx, category, limit)
}

// RankOf returns a player's 1-based leaderboard position, 0 when unranked.
func (s *Service) RankOf(ctx context.Context, playerID uuid.UUID, statType, category string) int {
	return s.ranking.RankOf(ctx, playerID, statType, category)
}

// RecalculateAll asynchronously rewarms every cached leaderboard.
func (s *Service) RecalculateAll() {
	s.ranking.RecalculateAll()
}

// Reload applies a freshly loaded configuration: collection membership is
// rebuilt, every cached leaderboard is dropped, and an asynchronous
// recalculation rewarms the boards against the new collections.
func (s *Service) Reload(cfg *config.Config) {
	s.cfg = cfg
	s.collections.Reload(cfg)
	s.ranking.ClearAll()
	s.ranking.RecalculateAll()
	s.logger.Info("Configuration reloaded")
}

// Close stops the background cycles, persists all in-memory state and
// drains the ranking engine with a bounded grace period.
func (s *Service) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	saved, err := s.store.SaveAll(ctx)
	if err != nil {
		s.logger.Error("Failed to save all player records on shutdown", "error", err)
	}
	if saveErr := s.global.Save(); saveErr != nil {
		s.logger.Error("Failed to save global stats on shutdown", "error", saveErr)
		if err == nil {
			err = saveErr
		}
	}

	s.ranking.Shutdown(shutdownGrace)
	s.logger.Info("Statistics service stopped", "records_saved", saved)
	return err
}

func (s *Service) autoSaveLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Storage.AutoSave.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.autoSave()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Service) autoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	saved, err := s.store.SaveAll(ctx)
	if err != nil {
		s.logger.Error("Auto-save completed with errors", "error", err)
	}
	flushed, err := s.global.FlushIfDirty()
	if err != nil {
		s.logger.Error("Failed to flush global stats", "error", err)
	}
	s.store.PruneTransient()

	if s.cfg.Storage.AutoSave.Log {
		s.logger.Info("Auto-save cycle finished",
			"records_saved", saved, "global_flushed", flushed)
	}
}

func (s *Service) recacheLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Ranking.RecacheInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ranking.RecalculateAll()
		case <-s.stopCh:
			return
		}
	}
}
