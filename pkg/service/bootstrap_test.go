package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CesarCosmico/fishing-stats/pkg/config"
)

func TestBootstrap_YAMLBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.DataDir = dir

	svc, err := Bootstrap(context.Background(), cfg, nil, nil, logger)
	require.NoError(t, err)
	defer func() { _ = svc.Close(context.Background()) }()

	playerID := uuid.New()
	require.NoError(t, svc.AddStats(context.Background(), playerID,
		catchContext(3)))
	assert.Equal(t, 3, svc.CategoryTotal("recycling", "common"))

	// The player record landed in the data directory.
	_, err = os.Stat(filepath.Join(dir, playerID.String()+".yml"))
	assert.NoError(t, err)
}

func TestBootstrap_LoadsExistingGlobalStats(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	existing := "contexts:\n  recycling:\n    common:\n      total: 42\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global_stats.yml"), []byte(existing), 0o644))

	cfg := config.Default()
	cfg.Storage.DataDir = dir

	svc, err := Bootstrap(context.Background(), cfg, nil, nil, logger)
	require.NoError(t, err)
	defer func() { _ = svc.Close(context.Background()) }()

	assert.Equal(t, 42, svc.CategoryTotal("recycling", "common"))
}

func TestBootstrap_PostgresBackendRequiresDatabase(t *testing.T) {
	if os.Getenv("DB_HOST") == "" {
		t.Skip("Skipping integration test: DB_HOST not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Storage.Backend = "postgres"
	cfg.Storage.DataDir = t.TempDir()

	svc, err := Bootstrap(context.Background(), cfg, nil, nil, logger)
	require.NoError(t, err)
	require.NoError(t, svc.Close(context.Background()))
}
