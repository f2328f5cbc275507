package ranking

import (
	"time"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

// rankingSnapshot is an immutable computed leaderboard: entries ordered by
// score descending plus a name membership set for O(1) "is this player in
// here" checks. Snapshots are replaced wholesale on recomputation, never
// mutated, so readers can use them without locking.
type rankingSnapshot struct {
	entries []domain.RankEntry
	names   map[string]struct{}
	created time.Time
}

func newRankingSnapshot(entries []domain.RankEntry) *rankingSnapshot {
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name] = struct{}{}
	}
	return &rankingSnapshot{
		entries: entries,
		names:   names,
		created: time.Now(),
	}
}

func (s *rankingSnapshot) expired(ttl time.Duration) bool {
	return time.Since(s.created) > ttl
}

// top returns a copy of the first limit entries.
func (s *rankingSnapshot) top(limit int) []domain.RankEntry {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]domain.RankEntry, limit)
	copy(out, s.entries[:limit])
	return out
}

// rank returns the 1-based position of the named player, or 0 when absent.
func (s *rankingSnapshot) rank(name string) int {
	if _, ok := s.names[name]; !ok {
		return 0
	}
	for i, entry := range s.entries {
		if entry.Name == name {
			return i + 1
		}
	}
	return 0
}

func (s *rankingSnapshot) contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// progressSnapshot is the percentage-scored counterpart of rankingSnapshot.
type progressSnapshot struct {
	entries []domain.ProgressEntry
	created time.Time
}

func newProgressSnapshot(entries []domain.ProgressEntry) *progressSnapshot {
	return &progressSnapshot{
		entries: entries,
		created: time.Now(),
	}
}

func (s *progressSnapshot) expired(ttl time.Duration) bool {
	return time.Since(s.created) > ttl
}

func (s *progressSnapshot) top(limit int) []domain.ProgressEntry {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]domain.ProgressEntry, limit)
	copy(out, s.entries[:limit])
	return out
}
