package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// TRIGGERKIT_SECTION_FIELD (e.g. TRIGGERKIT_STORE_BACKEND) and always take
// precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file (applies defaults)
//  2. Apply environment variable overrides
//  3. Re-validate the final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Logging overrides
	if val := os.Getenv("TRIGGERKIT_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("TRIGGERKIT_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("TRIGGERKIT_LOGGING_ADD_SOURCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.AddSource = b
		}
	}

	// Metrics overrides
	if val := os.Getenv("TRIGGERKIT_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("TRIGGERKIT_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}
	if val := os.Getenv("TRIGGERKIT_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}

	// Store overrides
	if val := os.Getenv("TRIGGERKIT_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("TRIGGERKIT_STORE_SQLITE_PATH"); val != "" {
		cfg.Store.SQLitePath = val
	}

	// History overrides
	if val := os.Getenv("TRIGGERKIT_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_SQLITE_PATH"); val != "" {
		cfg.History.SQLitePath = val
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_ASYNC"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Async = b
		}
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_ASYNC_BUFFER"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.AsyncBuffer = i
		}
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.WriteTimeout = d
		}
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_RETENTION_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.Retention.MaxAge = d
		}
	}
	if val := os.Getenv("TRIGGERKIT_HISTORY_RETENTION_SCHEDULE"); val != "" {
		cfg.History.Retention.Schedule = val
	}

	// Vocabulary overrides
	if val := os.Getenv("TRIGGERKIT_VOCABULARY_PATH"); val != "" {
		cfg.Vocab.Path = val
	}
	if val := os.Getenv("TRIGGERKIT_VOCABULARY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Vocab.Watch = b
		}
	}

	// Engine overrides
	if val := os.Getenv("TRIGGERKIT_ENGINE_ACTION_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.ActionTimeout = d
		}
	}

	// Webhook overrides
	if val := os.Getenv("TRIGGERKIT_WEBHOOK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Webhook.Timeout = d
		}
	}
}
