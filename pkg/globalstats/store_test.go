package globalstats

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "global_stats.yml")
	return NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStore_IncrementAndRead(t *testing.T) {
	store := newTestStore(t)

	store.Increment(domain.StatContext{Type: "recycling", Category: "common", Item: "bamboo", Amount: 5})
	store.Increment(domain.StatContext{Type: "recycling", Category: "common", Item: "kelp", Amount: 3})
	store.Increment(domain.StatContext{Type: "recycling", Category: "rare", Amount: 2})

	assert.Equal(t, 8, store.CategoryTotal("recycling", "common"))
	assert.Equal(t, 2, store.CategoryTotal("recycling", "rare"))
	assert.Equal(t, 10, store.TypeTotal("recycling"))
	assert.Equal(t, map[string]int{"bamboo": 5, "kelp": 3}, store.CategoryItems("recycling", "common"))
	assert.ElementsMatch(t, []string{"common", "rare"}, store.CategoriesOf("recycling"))
	assert.Equal(t, []string{"recycling"}, store.AllTypes())
}

func TestStore_DecrementClampsAndPrunes(t *testing.T) {
	store := newTestStore(t)

	store.Increment(domain.StatContext{Type: "recycling", Category: "common", Item: "bamboo", Amount: 4})
	store.Decrement(domain.StatContext{Type: "recycling", Category: "common", Item: "bamboo", Amount: 10})

	assert.Equal(t, 0, store.CategoryTotal("recycling", "common"))
	assert.Empty(t, store.AllTypes())

	// Decrementing something never tracked is a no-op.
	store.Decrement(domain.StatContext{Type: "ghost", Category: "none", Amount: 1})
	assert.Empty(t, store.AllTypes())
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global_stats.yml")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := NewStore(path, logger)
	store.Increment(domain.StatContext{Type: "recycling", Category: "common", Item: "bamboo", Amount: 28})
	store.Increment(domain.StatContext{Type: "competition", Category: "suma_total", Amount: 11})
	require.NoError(t, store.Save())

	reloaded := NewStore(path, logger)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 28, reloaded.CategoryTotal("recycling", "common"))
	assert.Equal(t, 28, reloaded.CategoryItems("recycling", "common")["bamboo"])
	assert.Equal(t, 11, reloaded.CategoryTotal("competition", "suma_total"))
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Load())
	assert.Empty(t, store.AllTypes())
}

func TestStore_LoadLegacyFlatFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global_stats.yml")
	legacy := "recycling:common: 40\ncompetition:suma_total: 7\nmalformed_key: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store := NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.Load())

	assert.Equal(t, 40, store.CategoryTotal("recycling", "common"))
	assert.Equal(t, 7, store.CategoryTotal("competition", "suma_total"))
	assert.ElementsMatch(t, []string{"recycling", "competition"}, store.AllTypes())

	// A legacy load marks the store dirty so the next flush rewrites it
	// in the nested shape.
	wrote, err := store.FlushIfDirty()
	require.NoError(t, err)
	assert.True(t, wrote)

	reloaded := NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 40, reloaded.CategoryTotal("recycling", "common"))
}

func TestStore_FlushIfDirtySkipsCleanStore(t *testing.T) {
	store := newTestStore(t)

	wrote, err := store.FlushIfDirty()
	require.NoError(t, err)
	assert.False(t, wrote)

	store.Increment(domain.StatContext{Type: "recycling", Category: "common", Amount: 1})
	wrote, err = store.FlushIfDirty()
	require.NoError(t, err)
	assert.True(t, wrote)

	// Clean again after a flush.
	wrote, err = store.FlushIfDirty()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestStore_RemoveCategory(t *testing.T) {
	store := newTestStore(t)

	store.Increment(domain.StatContext{Type: "competition", Category: "season_1", Amount: 9})
	store.Increment(domain.StatContext{Type: "competition", Category: "season_2", Amount: 4})

	store.RemoveCategory("competition", "season_1")
	assert.Equal(t, 0, store.CategoryTotal("competition", "season_1"))
	assert.Equal(t, 4, store.CategoryTotal("competition", "season_2"))

	store.RemoveCategory("competition", "season_2")
	assert.Empty(t, store.AllTypes())
}
