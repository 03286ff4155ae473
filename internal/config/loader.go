package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "buildtime.yaml"

// dataDirName is the per-user application data folder.
const dataDirName = "BuildTimeTracker"

// DefaultLookbackDays is used when history.lookback_days is unset.
const DefaultLookbackDays = 100

// LoadConfig loads and validates a configuration from a YAML file.
// A missing file yields the default configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "json"
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = DefaultDataDir()
	}

	if cfg.History.LookbackDays == 0 {
		cfg.History.LookbackDays = DefaultLookbackDays
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	validDrivers := map[string]bool{
		"json":  true,
		"bbolt": true,
	}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'json' or 'bbolt')", cfg.Store.Driver)
	}
	if strings.TrimSpace(cfg.Store.Dir) == "" {
		return fmt.Errorf("store.dir must not be empty")
	}

	if cfg.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be non-negative")
	}
	if cfg.History.LookbackDays < 0 {
		return fmt.Errorf("history.lookback_days must be non-negative")
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (must be 'json' or 'text')", cfg.Logging.Format)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (must be 'debug', 'info', 'warn', or 'error')", cfg.Logging.Level)
	}

	return nil
}
