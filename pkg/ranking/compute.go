package ranking

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

// computeRanking runs the full-population fan-out for an integer-score key
// and returns the resulting snapshot. Failures never escape: a per-player
// error drops that player, a timeout logs a warning and keeps whatever
// finished in time.
func (e *Engine) computeRanking(ctx context.Context, statType, category string) *rankingSnapshot {
	scoreOf := func(ctx context.Context, playerID uuid.UUID) (int, error) {
		if isCollectionType(statType) {
			if category == AllCategories {
				return e.external.TotalCaught(ctx, playerID)
			}
			return e.collectionScore(ctx, playerID, category)
		}
		if category == AllCategories {
			return e.scores.TypeTotal(ctx, playerID, statType)
		}
		return e.scores.CategoryTotal(ctx, playerID, statType, category)
	}

	entries := e.collect(ctx, cacheKey(statType, category), scoreOf)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return newRankingSnapshot(entries)
}

// collectionScore sums the player's external catch counts over the members
// of a category's collection. A category with no configured collection falls
// back to the category name as a single external item.
func (e *Engine) collectionScore(ctx context.Context, playerID uuid.UUID, category string) (int, error) {
	members := e.collections.Members(category)
	if len(members) == 0 {
		return e.external.ItemAmount(ctx, playerID, category)
	}

	total := 0
	for _, itemID := range members {
		amount, err := e.external.ItemAmount(ctx, playerID, itemID)
		if err != nil {
			return 0, err
		}
		total += amount
	}
	return total, nil
}

// computeProgress runs the fan-out for a progress key. A category with no
// configured members yields an empty snapshot without touching the
// population.
func (e *Engine) computeProgress(ctx context.Context, category string) *progressSnapshot {
	members := e.collections.Members(category)
	if len(members) == 0 {
		return newProgressSnapshot(nil)
	}

	progressOf := func(ctx context.Context, playerID uuid.UUID) (float64, error) {
		owned := 0
		for _, itemID := range members {
			amount, err := e.external.ItemAmount(ctx, playerID, itemID)
			if err != nil {
				return 0, err
			}
			if amount > 0 {
				owned++
			}
		}
		return float64(owned) * 100 / float64(len(members)), nil
	}

	var mu sync.Mutex
	var entries []domain.ProgressEntry
	e.fanOut(ctx, progressKeyPrefix+category, func(ctx context.Context, playerID uuid.UUID, name string) {
		progress, err := progressOf(ctx, playerID)
		if err != nil || progress == 0 {
			return
		}
		mu.Lock()
		entries = append(entries, domain.ProgressEntry{ID: playerID, Name: name, Progress: progress})
		mu.Unlock()
	})

	mu.Lock()
	sorted := make([]domain.ProgressEntry, len(entries))
	copy(sorted, entries)
	mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Progress > sorted[j].Progress
	})
	return newProgressSnapshot(sorted)
}

// collect gathers nonzero integer scores for the whole population.
func (e *Engine) collect(ctx context.Context, key string, scoreOf func(context.Context, uuid.UUID) (int, error)) []domain.RankEntry {
	var mu sync.Mutex
	var entries []domain.RankEntry

	e.fanOut(ctx, key, func(ctx context.Context, playerID uuid.UUID, name string) {
		score, err := scoreOf(ctx, playerID)
		if err != nil || score == 0 {
			return
		}
		mu.Lock()
		entries = append(entries, domain.RankEntry{ID: playerID, Name: name, Score: score})
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	out := make([]domain.RankEntry, len(entries))
	copy(out, entries)
	return out
}

// fanOut enumerates the population, partitions it into fixed-size batches
// and dispatches them to a bounded worker pool. visit runs once per player
// that resolves a display name; nameless players are skipped entirely.
//
// On deadline expiry fanOut stops waiting and returns with whatever visits
// completed; in-flight batches observe the expired context and wind down in
// the background.
func (e *Engine) fanOut(ctx context.Context, key string, visit func(context.Context, uuid.UUID, string)) {
	playerIDs := e.population.AllPlayerIDs(ctx)
	if len(playerIDs) == 0 {
		return
	}

	fanCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()

	var group errgroup.Group
	group.SetLimit(e.cfg.MaxWorkers)

	for start := 0; start < len(playerIDs); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(playerIDs) {
			end = len(playerIDs)
		}
		batch := playerIDs[start:end]

		group.Go(func() error {
			for _, playerID := range batch {
				select {
				case <-fanCtx.Done():
					return nil
				default:
				}

				name, ok := e.scores.DisplayName(fanCtx, playerID)
				if !ok {
					continue
				}
				visit(fanCtx, playerID, name)
			}
			return nil
		})
	}

	done := make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-fanCtx.Done():
		e.logger.Warn("Leaderboard computation timed out, using partial results",
			"key", key, "players", len(playerIDs))
	}
}
