package ranking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CesarCosmico/fishing-stats/pkg/client"
	"github.com/CesarCosmico/fishing-stats/pkg/config"
	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

type stubPopulation struct {
	ids   []uuid.UUID
	calls atomic.Int32
}

func (p *stubPopulation) AllPlayerIDs(ctx context.Context) []uuid.UUID {
	p.calls.Add(1)
	return p.ids
}

type stubScores struct {
	mu         sync.Mutex
	names      map[uuid.UUID]string
	categories map[uuid.UUID]map[string]int // keyed "type:category"
	types      map[uuid.UUID]map[string]int
	scoreErr   map[uuid.UUID]error
	block      chan struct{}               // when set, every CategoryTotal waits for close or ctx
	blockIDs   map[uuid.UUID]chan struct{} // per-player variant of block
}

func (s *stubScores) CategoryTotal(ctx context.Context, playerID uuid.UUID, statType, category string) (int, error) {
	s.mu.Lock()
	block := s.block
	if ch, ok := s.blockIDs[playerID]; ok {
		block = ch
	}
	err := s.scoreErr[playerID]
	score := s.categories[playerID][statType+":"+category]
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (s *stubScores) TypeTotal(ctx context.Context, playerID uuid.UUID, statType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[playerID][statType], nil
}

func (s *stubScores) DisplayName(ctx context.Context, playerID uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[playerID]
	return name, ok
}

type stubExternal struct {
	amounts map[uuid.UUID]map[string]int
	totals  map[uuid.UUID]int
}

func (s *stubExternal) ItemAmount(ctx context.Context, playerID uuid.UUID, itemID string) (int, error) {
	return s.amounts[playerID][itemID], nil
}

func (s *stubExternal) TotalCaught(ctx context.Context, playerID uuid.UUID) (int, error) {
	return s.totals[playerID], nil
}

type stubMembers map[string][]string

func (m stubMembers) Members(category string) []string {
	return m[category]
}

func testRankingConfig() config.RankingConfig {
	return config.RankingConfig{
		CacheTTLSeconds: 300,
		BatchSize:       50,
		MaxWorkers:      4,
		TimeoutSeconds:  30,
	}
}

type testFixture struct {
	engine     *Engine
	population *stubPopulation
	scores     *stubScores
}

func newFixture(cfg config.RankingConfig, external client.ExternalStats, members MemberSource) *testFixture {
	if external == nil {
		external = client.NewUnavailable()
	}
	if members == nil {
		members = stubMembers{}
	}
	population := &stubPopulation{}
	scores := &stubScores{
		names:      make(map[uuid.UUID]string),
		categories: make(map[uuid.UUID]map[string]int),
		types:      make(map[uuid.UUID]map[string]int),
		scoreErr:   make(map[uuid.UUID]error),
		blockIDs:   make(map[uuid.UUID]chan struct{}),
	}
	engine := NewEngine(cfg, population, scores, external, members, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testFixture{engine: engine, population: population, scores: scores}
}

func (f *testFixture) addPlayer(name string, categoryScores map[string]int, typeScores map[string]int) uuid.UUID {
	id := uuid.New()
	f.population.ids = append(f.population.ids, id)
	f.scores.names[id] = name
	f.scores.categories[id] = categoryScores
	f.scores.types[id] = typeScores
	return id
}

func TestTopN_SortsDescendingAndDropsZeroScores(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Low", map[string]int{"recycling:common": 3}, nil)
	f.addPlayer("High", map[string]int{"recycling:common": 10}, nil)
	f.addPlayer("Mid", map[string]int{"recycling:common": 7}, nil)
	f.addPlayer("Idle", map[string]int{"recycling:common": 0}, nil)

	top := f.engine.TopN(context.Background(), "recycling", "common", 10)

	require.Len(t, top, 3)
	assert.Equal(t, "High", top[0].Name)
	assert.Equal(t, 10, top[0].Score)
	assert.Equal(t, "Mid", top[1].Name)
	assert.Equal(t, "Low", top[2].Name)
}

func TestTopN_SkipsNamelessAndErroredPlayers(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	nameless := uuid.New()
	f.population.ids = append(f.population.ids, nameless)
	f.scores.categories[nameless] = map[string]int{"recycling:common": 50}

	failing := f.addPlayer("Broken", map[string]int{"recycling:common": 50}, nil)
	f.scores.scoreErr[failing] = fmt.Errorf("disk read failed")

	top := f.engine.TopN(context.Background(), "recycling", "common", 10)

	require.Len(t, top, 1)
	assert.Equal(t, "Alice", top[0].Name)
}

func TestTopN_ServesFreshCacheWithoutRecomputation(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	f.engine.TopN(context.Background(), "recycling", "common", 10)

	assert.Equal(t, int32(1), f.population.calls.Load())
}

func TestTopN_ExpiredCacheRecomputes(t *testing.T) {
	cfg := testRankingConfig()
	cfg.CacheTTLSeconds = 0 // every snapshot is immediately stale
	f := newFixture(cfg, nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	time.Sleep(time.Millisecond)
	f.engine.TopN(context.Background(), "recycling", "common", 10)

	assert.Equal(t, int32(2), f.population.calls.Load())
}

func TestTopN_SingleFlight(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	release := make(chan struct{})
	f.scores.mu.Lock()
	f.scores.block = release
	f.scores.mu.Unlock()

	firstDone := make(chan []domain.RankEntry, 1)
	go func() {
		firstDone <- f.engine.TopN(context.Background(), "recycling", "common", 10)
	}()

	// Wait until the first caller holds the computing marker.
	require.Eventually(t, func() bool {
		_, inflight := f.engine.computing.Load("recycling:common")
		return inflight
	}, time.Second, time.Millisecond)

	// A late caller must not block and must not start a second computation.
	late := f.engine.TopN(context.Background(), "recycling", "common", 10)
	assert.Empty(t, late)

	close(release)
	first := <-firstDone
	require.Len(t, first, 1)
	assert.Equal(t, int32(1), f.population.calls.Load())
}

func TestTopN_LimitTruncates(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	for i := 0; i < 120; i++ {
		f.addPlayer(fmt.Sprintf("Player%03d", i), map[string]int{"recycling:common": 1}, nil)
	}

	top := f.engine.TopN(context.Background(), "recycling", "common", 10)

	require.Len(t, top, 10)
	for _, entry := range top {
		assert.Equal(t, 1, entry.Score)
	}
}

func TestTopNByType_SumsAllCategories(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", nil, map[string]int{"recycling": 15})
	f.addPlayer("Bob", nil, map[string]int{"recycling": 20})

	top := f.engine.TopNByType(context.Background(), "recycling", 10)

	require.Len(t, top, 2)
	assert.Equal(t, "Bob", top[0].Name)
	assert.Equal(t, 20, top[0].Score)
}

func TestTopN_CollectionTypeScoresFromExternalSource(t *testing.T) {
	aliceID := uuid.New()
	bobID := uuid.New()
	external := &stubExternal{
		amounts: map[uuid.UUID]map[string]int{
			aliceID: {"salmon": 3, "trout": 2},
			bobID:   {"salmon": 1},
		},
		totals: map[uuid.UUID]int{aliceID: 40, bobID: 9},
	}
	members := stubMembers{"river_fish": {"salmon", "trout", "pike"}}

	f := newFixture(testRankingConfig(), external, members)
	f.population.ids = []uuid.UUID{aliceID, bobID}
	f.scores.names[aliceID] = "Alice"
	f.scores.names[bobID] = "Bob"

	top := f.engine.TopN(context.Background(), "category", "river_fish", 10)
	require.Len(t, top, 2)
	assert.Equal(t, "Alice", top[0].Name)
	assert.Equal(t, 5, top[0].Score)
	assert.Equal(t, 1, top[1].Score)

	// Type-wide collection board uses the external totals.
	totals := f.engine.TopNByType(context.Background(), "category", 10)
	require.Len(t, totals, 2)
	assert.Equal(t, 40, totals[0].Score)
}

func TestTopN_ExternalErrorSkipsPlayer(t *testing.T) {
	aliceID := uuid.New()
	bobID := uuid.New()
	external := client.NewMockExternalStats()
	external.On("ItemAmount", mock.Anything, aliceID, "salmon").Return(3, nil)
	external.On("ItemAmount", mock.Anything, bobID, "salmon").Return(0, fmt.Errorf("plugin unavailable"))
	members := stubMembers{"river_fish": {"salmon"}}

	f := newFixture(testRankingConfig(), external, members)
	f.population.ids = []uuid.UUID{aliceID, bobID}
	f.scores.names[aliceID] = "Alice"
	f.scores.names[bobID] = "Bob"

	top := f.engine.TopN(context.Background(), "category", "river_fish", 10)

	require.Len(t, top, 1)
	assert.Equal(t, "Alice", top[0].Name)
	external.AssertExpectations(t)
}

func TestTopNByProgress(t *testing.T) {
	aliceID := uuid.New()
	bobID := uuid.New()
	external := &stubExternal{
		amounts: map[uuid.UUID]map[string]int{
			aliceID: {"salmon": 3, "trout": 1},
			bobID:   {"salmon": 2, "trout": 4, "pike": 1, "eel": 9},
		},
	}
	members := stubMembers{"river_fish": {"salmon", "trout", "pike", "eel"}}

	f := newFixture(testRankingConfig(), external, members)
	f.population.ids = []uuid.UUID{aliceID, bobID}
	f.scores.names[aliceID] = "Alice"
	f.scores.names[bobID] = "Bob"

	top := f.engine.TopNByProgress(context.Background(), "river_fish", 10)

	require.Len(t, top, 2)
	assert.Equal(t, "Bob", top[0].Name)
	assert.InDelta(t, 100.0, top[0].Progress, 0.001)
	assert.Equal(t, "Alice", top[1].Name)
	assert.InDelta(t, 50.0, top[1].Progress, 0.001)
}

func TestTopNByProgress_EmptyMemberListYieldsNoEntries(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, stubMembers{})
	f.addPlayer("Alice", nil, nil)

	top := f.engine.TopNByProgress(context.Background(), "unconfigured", 10)

	assert.Empty(t, top)
	// The empty result is cached without enumerating the population.
	assert.Equal(t, int32(0), f.population.calls.Load())
}

func TestRankOf(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)
	bobID := f.addPlayer("Bob", map[string]int{"recycling:common": 9}, nil)
	idleID := f.addPlayer("Idle", map[string]int{"recycling:common": 0}, nil)

	assert.Equal(t, 1, f.engine.RankOf(context.Background(), bobID, "recycling", "common"))
	assert.Equal(t, 0, f.engine.RankOf(context.Background(), idleID, "recycling", "common"))
	assert.Equal(t, 0, f.engine.RankOf(context.Background(), uuid.New(), "recycling", "common"))
}

func TestRankOf_StaleCacheForcesRecomputation(t *testing.T) {
	cfg := testRankingConfig()
	cfg.CacheTTLSeconds = 0
	f := newFixture(cfg, nil, nil)
	aliceID := f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	calls := f.population.calls.Load()
	time.Sleep(time.Millisecond)

	rank := f.engine.RankOf(context.Background(), aliceID, "recycling", "common")
	assert.Equal(t, 1, rank)
	assert.Greater(t, f.population.calls.Load(), calls)
}

func TestInvalidateCategory_DropsKeyAndTypeWideAggregate(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5, "recycling:rare": 2}, map[string]int{"recycling": 7})

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	f.engine.TopN(context.Background(), "recycling", "rare", 10)
	f.engine.TopNByType(context.Background(), "recycling", 10)

	f.engine.InvalidateCategory("recycling", "common")

	_, commonCached := f.engine.rankCaches.Load("recycling:common")
	_, rareCached := f.engine.rankCaches.Load("recycling:rare")
	_, allCached := f.engine.rankCaches.Load("recycling:__ALL__")
	assert.False(t, commonCached)
	assert.True(t, rareCached, "sibling categories stay cached")
	assert.False(t, allCached)
}

func TestInvalidatePlayer(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	aliceID := f.addPlayer("Alice", map[string]int{"recycling:common": 5}, map[string]int{"recycling": 5})
	f.addPlayer("Bob", map[string]int{"competition:top_one": 3}, map[string]int{"competition": 3})

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	f.engine.TopN(context.Background(), "competition", "top_one", 10)
	f.engine.TopNByType(context.Background(), "competition", 10)

	f.engine.InvalidatePlayer(context.Background(), aliceID)

	_, aliceBoard := f.engine.rankCaches.Load("recycling:common")
	_, bobBoard := f.engine.rankCaches.Load("competition:top_one")
	_, typeWide := f.engine.rankCaches.Load("competition:__ALL__")
	assert.False(t, aliceBoard, "boards containing the player are dropped")
	assert.True(t, bobBoard, "boards without the player survive")
	assert.False(t, typeWide, "every cached type-wide aggregate is dropped")
}

func TestInvalidateName(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, map[string]int{"recycling": 5})
	f.addPlayer("Bob", map[string]int{"competition:top_one": 3}, nil)

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	f.engine.TopN(context.Background(), "competition", "top_one", 10)
	f.engine.TopNByType(context.Background(), "recycling", 10)

	// Invalidation by a captured name works without a resolvable record,
	// e.g. after the player's record has been deleted.
	f.engine.InvalidateName("Alice")

	_, aliceBoard := f.engine.rankCaches.Load("recycling:common")
	_, bobBoard := f.engine.rankCaches.Load("competition:top_one")
	_, typeWide := f.engine.rankCaches.Load("recycling:__ALL__")
	assert.False(t, aliceBoard)
	assert.True(t, bobBoard)
	assert.False(t, typeWide)

	// An empty name still drops the type-wide aggregates.
	f.engine.TopNByType(context.Background(), "recycling", 10)
	f.engine.InvalidateName("")
	_, typeWide = f.engine.rankCaches.Load("recycling:__ALL__")
	assert.False(t, typeWide)
	_, bobBoard = f.engine.rankCaches.Load("competition:top_one")
	assert.True(t, bobBoard)
}

func TestClearAll(t *testing.T) {
	members := stubMembers{"river_fish": {"salmon"}}
	external := &stubExternal{amounts: map[uuid.UUID]map[string]int{}}
	f := newFixture(testRankingConfig(), external, members)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	f.engine.TopNByProgress(context.Background(), "river_fish", 10)

	f.engine.ClearAll()

	count := 0
	f.engine.rankCaches.Range(func(_, _ any) bool { count++; return true })
	f.engine.progressCaches.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 0, count)
}

func TestRecalculateAll_RecomputesCachedKeys(t *testing.T) {
	f := newFixture(testRankingConfig(), nil, nil)
	f.addPlayer("Alice", map[string]int{"recycling:common": 5}, nil)

	recalculated := make(chan struct{})
	f.engine.SetOnRecalculated(func() { close(recalculated) })

	f.engine.TopN(context.Background(), "recycling", "common", 10)
	callsBefore := f.population.calls.Load()

	f.engine.RecalculateAll()

	select {
	case <-recalculated:
	case <-time.After(5 * time.Second):
		t.Fatal("recalculation did not finish")
	}
	assert.Greater(t, f.population.calls.Load(), callsBefore)

	f.engine.Shutdown(time.Second)
}

func TestFanOut_TimeoutYieldsPartialResults(t *testing.T) {
	cfg := testRankingConfig()
	cfg.TimeoutSeconds = 1
	cfg.BatchSize = 1
	cfg.MaxWorkers = 1
	f := newFixture(cfg, nil, nil)
	fastID := f.addPlayer("Fast", map[string]int{"recycling:common": 5}, nil)
	slowID := f.addPlayer("Slow", map[string]int{"recycling:common": 9}, nil)

	// The slow player's score read hangs until the fan-out deadline cuts
	// it off. Batch size 1 with a single worker processes players in
	// population order, so the fast player completes first.
	release := make(chan struct{})
	defer close(release)
	f.scores.mu.Lock()
	f.scores.blockIDs[slowID] = release
	f.scores.mu.Unlock()

	start := time.Now()
	top := f.engine.TopN(context.Background(), "recycling", "common", 10)

	require.Len(t, top, 1)
	assert.Equal(t, fastID, top[0].ID)
	assert.Less(t, time.Since(start), 10*time.Second)
}
