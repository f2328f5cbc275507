package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("successful load", func(t *testing.T) {
		path := createTempConfigFile(t, `
storage:
  backend: yaml
  data_dir: /tmp/fishing-stats/data
  auto_save:
    interval: 120
    log: true
  transient_limit: 50
ranking:
  cache_ttl: 60
  batch_size: 25
  max_workers: 2
  timeout: 10
collections:
  golden_fish:
    - golden_carp
    - golden_koi
`)

		loader := NewLoader(path, testLogger())
		cfg, err := loader.Load()
		if err != nil {
			t.Fatalf("Load() unexpected error = %v", err)
		}

		if cfg.Storage.Backend != "yaml" {
			t.Errorf("Backend = %q, want yaml", cfg.Storage.Backend)
		}
		if cfg.Storage.AutoSave.IntervalSeconds != 120 {
			t.Errorf("AutoSave interval = %d, want 120", cfg.Storage.AutoSave.IntervalSeconds)
		}
		if cfg.Ranking.BatchSize != 25 {
			t.Errorf("BatchSize = %d, want 25", cfg.Ranking.BatchSize)
		}
		if len(cfg.Collections["golden_fish"]) != 2 {
			t.Errorf("collection golden_fish = %v, want 2 members", cfg.Collections["golden_fish"])
		}
		// Omitted fields fall back to defaults.
		if cfg.Ranking.RecacheIntervalSeconds != DefaultRecacheSeconds {
			t.Errorf("RecacheIntervalSeconds = %d, want default %d",
				cfg.Ranking.RecacheIntervalSeconds, DefaultRecacheSeconds)
		}
	})

	t.Run("explicit zero means default", func(t *testing.T) {
		path := createTempConfigFile(t, `
storage:
  backend: yaml
  data_dir: /tmp/fishing-stats/data
  transient_limit: 0
  auto_save:
    interval: 0
ranking:
  cache_ttl: 0
`)

		loader := NewLoader(path, testLogger())
		cfg, err := loader.Load()
		if err != nil {
			t.Fatalf("Load() unexpected error = %v", err)
		}
		if cfg.Storage.TransientLimit != DefaultTransientLimit {
			t.Errorf("TransientLimit = %d, want default %d",
				cfg.Storage.TransientLimit, DefaultTransientLimit)
		}
		if cfg.Storage.AutoSave.IntervalSeconds != DefaultAutoSaveSeconds {
			t.Errorf("AutoSave interval = %d, want default %d",
				cfg.Storage.AutoSave.IntervalSeconds, DefaultAutoSaveSeconds)
		}
		if cfg.Ranking.CacheTTLSeconds != DefaultCacheTTLSeconds {
			t.Errorf("CacheTTLSeconds = %d, want default %d",
				cfg.Ranking.CacheTTLSeconds, DefaultCacheTTLSeconds)
		}
	})

	t.Run("missing file returns defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.yml"), testLogger())
		cfg, err := loader.Load()
		if err != nil {
			t.Fatalf("Load() unexpected error = %v", err)
		}
		if cfg.Storage.Backend != DefaultBackend {
			t.Errorf("Backend = %q, want default %q", cfg.Storage.Backend, DefaultBackend)
		}
		if cfg.Ranking.BatchSize != DefaultBatchSize {
			t.Errorf("BatchSize = %d, want default %d", cfg.Ranking.BatchSize, DefaultBatchSize)
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		path := createTempConfigFile(t, "storage: [not: a mapping")
		loader := NewLoader(path, testLogger())

		_, err := loader.Load()
		if err == nil {
			t.Fatal("Load() expected error for malformed YAML")
		}
		if !strings.Contains(err.Error(), "parse") {
			t.Errorf("error should mention parsing, got %v", err)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		path := createTempConfigFile(t, `
storage:
  backend: cassandra
`)
		loader := NewLoader(path, testLogger())

		_, err := loader.Load()
		if err == nil {
			t.Fatal("Load() expected error for unknown backend")
		}
		if !strings.Contains(err.Error(), "validation") {
			t.Errorf("error should mention validation, got %v", err)
		}
	})
}
