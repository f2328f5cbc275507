package config

import (
	"fmt"

	apperrors "github.com/CesarCosmico/fishing-stats/pkg/errors"
)

// Validator validates service configuration.
// It ensures all business rules are met before the application starts.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate performs comprehensive validation of the configuration.
// It checks for:
// - A known storage backend
// - A data directory when the YAML backend is selected
// - Positive auto-save, cache, batch, worker, and timeout values
// - Non-empty collection member lists
//
// Returns an error describing the first validation failure encountered.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.validateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := v.validateRanking(&cfg.Ranking); err != nil {
		return err
	}

	for category, members := range cfg.Collections {
		if category == "" {
			return apperrors.ErrConfigInvalid("collection with empty category name")
		}
		for _, member := range members {
			if member == "" {
				return apperrors.ErrConfigInvalid(
					fmt.Sprintf("collection '%s' has an empty member ID", category))
			}
		}
	}

	return nil
}

func (v *Validator) validateStorage(cfg *StorageConfig) error {
	switch cfg.Backend {
	case "yaml":
		if cfg.DataDir == "" {
			return apperrors.ErrConfigInvalid("storage.data_dir is required for the yaml backend")
		}
	case "postgres":
		// Connection settings come from the environment (see pkg/db).
	default:
		return apperrors.ErrConfigInvalid(
			fmt.Sprintf("unknown storage backend: %q (expected \"yaml\" or \"postgres\")", cfg.Backend))
	}

	// The service feeds this straight into a ticker, which rejects
	// non-positive periods.
	if cfg.AutoSave.IntervalSeconds <= 0 {
		return apperrors.ErrConfigInvalid("storage.auto_save.interval must be positive")
	}
	if cfg.TransientLimit < 0 {
		return apperrors.ErrConfigInvalid("storage.transient_limit must not be negative")
	}

	return nil
}

func (v *Validator) validateRanking(cfg *RankingConfig) error {
	if cfg.CacheTTLSeconds <= 0 {
		return apperrors.ErrConfigInvalid("ranking.cache_ttl must be positive")
	}
	if cfg.BatchSize <= 0 {
		return apperrors.ErrConfigInvalid("ranking.batch_size must be positive")
	}
	if cfg.MaxWorkers <= 0 {
		return apperrors.ErrConfigInvalid("ranking.max_workers must be positive")
	}
	if cfg.TimeoutSeconds <= 0 {
		return apperrors.ErrConfigInvalid("ranking.timeout must be positive")
	}
	if cfg.RecacheIntervalSeconds <= 0 {
		return apperrors.ErrConfigInvalid("ranking.recache_interval must be positive")
	}
	return nil
}
