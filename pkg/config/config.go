package config

import "time"

// Config is the top-level configuration loaded from config.yml.
// It controls persistence, the auto-save cycle, ranking tunables, and the
// fixed item collections used by progress leaderboards.
//
// Numeric fields treat zero as "unset": the loader replaces an omitted or
// explicit zero with the documented default before validation. There is no
// way to configure a zero interval, limit, or TTL.
type Config struct {
	Storage     StorageConfig       `yaml:"storage"`
	Ranking     RankingConfig       `yaml:"ranking"`
	Collections map[string][]string `yaml:"collections"`
}

// StorageConfig selects and configures the player-record backend.
type StorageConfig struct {
	// Backend is "yaml" (one file per player under DataDir) or "postgres".
	Backend string         `yaml:"backend"`
	DataDir string         `yaml:"data_dir"`
	AutoSave AutoSaveConfig `yaml:"auto_save"`

	// TransientLimit bounds the cache of recently-touched inactive players.
	// Above the limit the cache is cleared wholesale; records stay durable
	// on disk, so pruning only forces a future re-load.
	TransientLimit int `yaml:"transient_limit"`
}

// AutoSaveConfig controls the periodic flush of dirty in-memory state.
type AutoSaveConfig struct {
	IntervalSeconds int  `yaml:"interval"`
	Log             bool `yaml:"log"`
}

// Interval returns the auto-save period as a duration.
func (c AutoSaveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RankingConfig tunes the leaderboard computation engine.
type RankingConfig struct {
	// CacheTTLSeconds is how long a computed leaderboard snapshot is served
	// without recomputation.
	CacheTTLSeconds int `yaml:"cache_ttl"`

	// BatchSize is the number of player IDs handed to one worker at a time.
	// Larger batches reduce scheduling overhead but increase the tail
	// latency of the slowest batch.
	BatchSize int `yaml:"batch_size"`

	// MaxWorkers bounds parallel record loads during a computation.
	MaxWorkers int `yaml:"max_workers"`

	// TimeoutSeconds is the overall fan-out deadline. On expiry the engine
	// proceeds with whatever partial results have completed.
	TimeoutSeconds int `yaml:"timeout"`

	// RecacheIntervalSeconds is the period of the background job that
	// recomputes every currently cached leaderboard.
	RecacheIntervalSeconds int `yaml:"recache_interval"`
}

// CacheTTL returns the snapshot time-to-live as a duration.
func (c RankingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Timeout returns the fan-out deadline as a duration.
func (c RankingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RecacheInterval returns the recache period as a duration.
func (c RankingConfig) RecacheInterval() time.Duration {
	return time.Duration(c.RecacheIntervalSeconds) * time.Second
}

// Default values applied by the loader when a field is omitted.
const (
	DefaultBackend         = "yaml"
	DefaultDataDir         = "storage/data"
	DefaultAutoSaveSeconds = 300
	DefaultTransientLimit  = 100
	DefaultCacheTTLSeconds = 300
	DefaultBatchSize       = 50
	DefaultMaxWorkers      = 4
	DefaultTimeoutSeconds  = 30
	DefaultRecacheSeconds  = 300
)

// applyDefaults fills zero-valued fields with their documented defaults.
// An explicit zero in the file is indistinguishable from an omitted field
// and gets the default too.
func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = DefaultDataDir
	}
	if c.Storage.AutoSave.IntervalSeconds == 0 {
		c.Storage.AutoSave.IntervalSeconds = DefaultAutoSaveSeconds
	}
	if c.Storage.TransientLimit == 0 {
		c.Storage.TransientLimit = DefaultTransientLimit
	}
	if c.Ranking.CacheTTLSeconds == 0 {
		c.Ranking.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.Ranking.BatchSize == 0 {
		c.Ranking.BatchSize = DefaultBatchSize
	}
	if c.Ranking.MaxWorkers == 0 {
		c.Ranking.MaxWorkers = DefaultMaxWorkers
	}
	if c.Ranking.TimeoutSeconds == 0 {
		c.Ranking.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Ranking.RecacheIntervalSeconds == 0 {
		c.Ranking.RecacheIntervalSeconds = DefaultRecacheSeconds
	}
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
