// Package ranking computes and caches player leaderboards: TTL-bound
// snapshots per cache key, single-flight deduplication of concurrent
// computations, and a bounded-parallel fan-out over the whole player
// population with partial results on timeout.
package ranking

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CesarCosmico/fishing-stats/pkg/client"
	"github.com/CesarCosmico/fishing-stats/pkg/config"
	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

// AllCategories is the pseudo-category keying a type-wide total leaderboard.
const AllCategories = "__ALL__"

const progressKeyPrefix = "progress:"

// Stat types whose scores come from the external fishing plugin rather than
// the tracked player records.
func isCollectionType(statType string) bool {
	return statType == "progress" || statType == "category"
}

// Population enumerates every player a leaderboard should consider.
type Population interface {
	AllPlayerIDs(ctx context.Context) []uuid.UUID
}

// ScoreSource reads per-player scores and display names from the tracked
// records.
type ScoreSource interface {
	CategoryTotal(ctx context.Context, playerID uuid.UUID, statType, category string) (int, error)
	TypeTotal(ctx context.Context, playerID uuid.UUID, statType string) (int, error)
	DisplayName(ctx context.Context, playerID uuid.UUID) (string, bool)
}

// MemberSource resolves the fixed item collection backing a category.
type MemberSource interface {
	Members(category string) []string
}

// Engine is the leaderboard engine. Cache keys are "type:category",
// "type:__ALL__" for type-wide totals and "progress:<category>" for
// collection-progress boards; each key holds an immutable snapshot replaced
// wholesale on recomputation.
//
// All methods are safe for concurrent use.
type Engine struct {
	cfg         config.RankingConfig
	population  Population
	scores      ScoreSource
	external    client.ExternalStats
	collections MemberSource
	logger      *slog.Logger

	rankCaches     sync.Map // key -> *rankingSnapshot
	progressCaches sync.Map // key -> *progressSnapshot
	computing      sync.Map // key -> struct{}, the single-flight marker set

	recalculating atomic.Bool
	wg            sync.WaitGroup

	// onRecalculated runs after a full recalculation completes, letting the
	// service layer release memory the recalculation warmed up.
	onRecalculated func()
}

// NewEngine creates a leaderboard engine.
func NewEngine(
	cfg config.RankingConfig,
	population Population,
	scores ScoreSource,
	external client.ExternalStats,
	collections MemberSource,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:         cfg,
		population:  population,
		scores:      scores,
		external:    external,
		collections: collections,
		logger:      logger,
	}
}

// SetOnRecalculated installs the post-recalculation callback. Must be called
// during wiring, before concurrent use begins.
func (e *Engine) SetOnRecalculated(fn func()) {
	e.onRecalculated = fn
}

func cacheKey(statType, category string) string {
	return statType + ":" + category
}

// TopN returns the top limit entries of the category leaderboard.
//
// A fresh snapshot answers immediately. If the key is being computed by
// another caller, the previous (possibly expired) snapshot answers, or an
// empty list when there is none; late callers never block and never start a
// second computation for the same key. Otherwise the computation runs on the
// calling goroutine.
func (e *Engine) TopN(ctx context.Context, statType, category string, limit int) []domain.RankEntry {
	key := cacheKey(statType, category)

	if snap := e.loadRanking(key); snap != nil && !snap.expired(e.cfg.CacheTTL()) {
		return snap.top(limit)
	}

	if _, inflight := e.computing.LoadOrStore(key, struct{}{}); inflight {
		if snap := e.loadRanking(key); snap != nil {
			return snap.top(limit)
		}
		return []domain.RankEntry{}
	}
	defer e.computing.Delete(key)

	snap := e.computeRanking(ctx, statType, category)
	e.rankCaches.Store(key, snap)
	return snap.top(limit)
}

// TopNByType returns the top limit entries of the type-wide leaderboard,
// summing every category of the type per player.
func (e *Engine) TopNByType(ctx context.Context, statType string, limit int) []domain.RankEntry {
	return e.TopN(ctx, statType, AllCategories, limit)
}

// TopNByProgress returns the top limit entries of the collection-progress
// leaderboard for a category. An empty member list yields no entries.
func (e *Engine) TopNByProgress(ctx context.Context, category string, limit int) []domain.ProgressEntry {
	key := progressKeyPrefix + category

	if snap := e.loadProgress(key); snap != nil && !snap.expired(e.cfg.CacheTTL()) {
		return snap.top(limit)
	}

	if _, inflight := e.computing.LoadOrStore(key, struct{}{}); inflight {
		if snap := e.loadProgress(key); snap != nil {
			return snap.top(limit)
		}
		return []domain.ProgressEntry{}
	}
	defer e.computing.Delete(key)

	snap := e.computeProgress(ctx, category)
	e.progressCaches.Store(key, snap)
	return snap.top(limit)
}

// RankOf returns the player's 1-based position in the category leaderboard,
// or 0 when unranked. Rank queries are never answered from stale data: an
// expired or missing snapshot forces a synchronous recomputation. When
// another caller is already computing the key, the best available snapshot
// answers instead of blocking.
func (e *Engine) RankOf(ctx context.Context, playerID uuid.UUID, statType, category string) int {
	name, ok := e.scores.DisplayName(ctx, playerID)
	if !ok {
		return 0
	}

	key := cacheKey(statType, category)
	if snap := e.loadRanking(key); snap != nil && !snap.expired(e.cfg.CacheTTL()) {
		return snap.rank(name)
	}

	if _, inflight := e.computing.LoadOrStore(key, struct{}{}); inflight {
		if snap := e.loadRanking(key); snap != nil {
			return snap.rank(name)
		}
		return 0
	}
	defer e.computing.Delete(key)

	snap := e.computeRanking(ctx, statType, category)
	e.rankCaches.Store(key, snap)
	return snap.rank(name)
}

// InvalidateCategory drops the snapshots for a type/category pair and for
// the type-wide aggregate, which necessarily includes the category.
func (e *Engine) InvalidateCategory(statType, category string) {
	e.rankCaches.Delete(cacheKey(statType, category))
	e.rankCaches.Delete(cacheKey(statType, AllCategories))
}

// InvalidatePlayer drops every snapshot the player appears in, by display
// name membership, plus every cached type-wide aggregate: a player-level
// change can move a type total even when the touched category is not itself
// cached. Progress snapshots are untouched; progress derives from the
// external collection source, not the mutated records.
//
// Callers that delete the player's record must use InvalidateName with a
// name captured beforehand; once the record is gone the name can no longer
// be resolved here.
func (e *Engine) InvalidatePlayer(ctx context.Context, playerID uuid.UUID) {
	name, _ := e.scores.DisplayName(ctx, playerID)
	e.InvalidateName(name)
}

// InvalidateName drops every snapshot whose membership set contains the
// display name, plus every cached type-wide aggregate. An empty name drops
// the type-wide aggregates only.
func (e *Engine) InvalidateName(name string) {
	e.rankCaches.Range(func(k, v any) bool {
		key := k.(string)
		snap := v.(*rankingSnapshot)
		if strings.HasSuffix(key, ":"+AllCategories) {
			e.rankCaches.Delete(key)
			return true
		}
		if name != "" && snap.contains(name) {
			e.rankCaches.Delete(key)
		}
		return true
	})
}

// ClearAll drops every cached snapshot of both kinds.
func (e *Engine) ClearAll() {
	e.rankCaches.Range(func(k, _ any) bool {
		e.rankCaches.Delete(k)
		return true
	})
	e.progressCaches.Range(func(k, _ any) bool {
		e.progressCaches.Delete(k)
		return true
	})
}

// RecalculateAll asynchronously recomputes every currently cached key to
// keep hot leaderboards warm. Overlapping calls are a no-op: a flag
// guarantees at most one recalculation runs at a time.
func (e *Engine) RecalculateAll() {
	if !e.recalculating.CompareAndSwap(false, true) {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.recalculating.Store(false)

		ctx := context.Background()
		start := time.Now()
		recomputed := 0

		e.rankCaches.Range(func(k, _ any) bool {
			key := k.(string)
			statType, category, ok := strings.Cut(key, ":")
			if !ok {
				return true
			}
			if _, inflight := e.computing.LoadOrStore(key, struct{}{}); inflight {
				return true
			}
			e.rankCaches.Store(key, e.computeRanking(ctx, statType, category))
			e.computing.Delete(key)
			recomputed++
			return true
		})

		e.progressCaches.Range(func(k, _ any) bool {
			key := k.(string)
			category := strings.TrimPrefix(key, progressKeyPrefix)
			if _, inflight := e.computing.LoadOrStore(key, struct{}{}); inflight {
				return true
			}
			e.progressCaches.Store(key, e.computeProgress(ctx, category))
			e.computing.Delete(key)
			recomputed++
			return true
		})

		e.logger.Info("Leaderboard recalculation finished",
			"keys", recomputed, "duration", time.Since(start))

		if e.onRecalculated != nil {
			e.onRecalculated()
		}
	}()
}

// Shutdown waits for in-flight background work to finish, up to grace. Work
// still running after the grace period is abandoned with a warning.
func (e *Engine) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn("Leaderboard workers did not quiesce within grace period",
			"grace", grace)
	}
}

func (e *Engine) loadRanking(key string) *rankingSnapshot {
	if v, ok := e.rankCaches.Load(key); ok {
		return v.(*rankingSnapshot)
	}
	return nil
}

func (e *Engine) loadProgress(key string) *progressSnapshot {
	if v, ok := e.progressCaches.Load(key); ok {
		return v.(*progressSnapshot)
	}
	return nil
}
