package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CesarCosmico/fishing-stats/pkg/client"
	"github.com/CesarCosmico/fishing-stats/pkg/collection"
	"github.com/CesarCosmico/fishing-stats/pkg/config"
	"github.com/CesarCosmico/fishing-stats/pkg/db"
	"github.com/CesarCosmico/fishing-stats/pkg/globalstats"
	"github.com/CesarCosmico/fishing-stats/pkg/ranking"
	"github.com/CesarCosmico/fishing-stats/pkg/storage"
)

// globalStatsFile is the well-known name of the server aggregate file inside
// the data directory.
const globalStatsFile = "global_stats.yml"

// Bootstrap builds the full statistics stack from configuration: the record
// provider selected by the storage backend, the tiered store, the server
// aggregate store (loaded from disk), the collection cache and the ranking
// engine, wired together into a Service ready for Start.
//
// external may be nil when no third-party fishing plugin is present;
// collection-derived leaderboards then come out empty. resolveName may be
// nil. Postgres connection parameters come from the DB_* environment
// variables.
func Bootstrap(
	ctx context.Context,
	cfg *config.Config,
	external client.ExternalStats,
	resolveName storage.NameResolver,
	logger *slog.Logger,
) (*Service, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var provider storage.RecordProvider
	switch cfg.Storage.Backend {
	case "postgres":
		sqlDB, err := db.Connect(db.NewConfigFromEnv())
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgresProvider(sqlDB, resolveName, logger)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		provider = pg
	default:
		yml, err := storage.NewYAMLProvider(cfg.Storage.DataDir, resolveName, logger)
		if err != nil {
			return nil, err
		}
		provider = yml
	}

	if external == nil {
		external = client.NewUnavailable()
	}

	global := globalstats.NewStore(filepath.Join(cfg.Storage.DataDir, globalStatsFile), logger)
	if err := global.Load(); err != nil {
		return nil, err
	}

	store := storage.NewTieredStore(provider, cfg.Storage.TransientLimit, logger)
	collections := collection.NewCategoryCache(cfg, logger)
	enumerator := storage.NewEnumerator(provider, store, logger)
	engine := ranking.NewEngine(cfg.Ranking, enumerator, store, external, collections, logger)

	logger.Info("Statistics stack assembled", "backend", cfg.Storage.Backend)
	return New(cfg, store, global, engine, collections, logger), nil
}
