package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader loads and validates the service configuration from a YAML file.
// It performs file reading, YAML parsing, default application, and
// validation of business rules.
type Loader struct {
	configPath string
	validator  *Validator
	logger     *slog.Logger
}

// NewLoader creates a new Loader instance.
//
// Parameters:
//   - configPath: Path to the config.yml file
//   - logger: Structured logger for operational logging
func NewLoader(configPath string, logger *slog.Logger) *Loader {
	return &Loader{
		configPath: configPath,
		validator:  NewValidator(),
		logger:     logger,
	}
}

// Load reads the configuration file and returns a validated Config.
// This is a "fail fast" operation - invalid config prevents startup.
//
// A missing file is not an error: the documented defaults are returned so a
// fresh deployment works without any configuration.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("Config file not found, using defaults",
				"config_path", l.configPath,
			)
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.logger.Info("Config loaded successfully",
		"backend", cfg.Storage.Backend,
		"collections", len(cfg.Collections),
		"config_path", l.configPath,
	)

	return &cfg, nil
}
