package config

import (
	"fmt"
	"time"
)

// Config is the top-level application configuration for triggerd.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Store   StoreConfig   `yaml:"store"`
	History HistoryConfig `yaml:"history"`
	Vocab   VocabConfig   `yaml:"vocabulary"`
	Engine  EngineConfig  `yaml:"engine"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix every metric name.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// ListenAddress is the address the metrics endpoint binds to.
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the metrics endpoint.
	Path string `yaml:"path"`
}

// StoreConfig configures the trigger store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
}

// HistoryConfig configures the execution log.
type HistoryConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// Async routes engine writes through the buffered recorder instead of
	// writing synchronously. Synchronous is the default: an unwritable
	// audit log then fails the firing instead of logging and dropping.
	Async bool `yaml:"async"`

	// AsyncBuffer is the recorder channel size when Async is set.
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each log write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures execution log retention.
type RetentionConfig struct {
	// MaxAge is how long entries are kept. Zero disables pruning.
	MaxAge time.Duration `yaml:"max_age"`

	// Schedule is the cron expression for retention sweeps.
	Schedule string `yaml:"schedule"`
}

// VocabConfig configures the rule vocabulary source.
type VocabConfig struct {
	// Path is a YAML vocabulary file. Empty uses the built-in default.
	Path string `yaml:"path"`

	// Watch hot-reloads the vocabulary when the file changes.
	Watch bool `yaml:"watch"`
}

// EngineConfig configures evaluation and execution.
type EngineConfig struct {
	// ActionTimeout bounds each action dispatch.
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

// WebhookConfig configures the outbound webhook dispatcher.
type WebhookConfig struct {
	// Timeout bounds each webhook POST.
	Timeout time.Duration `yaml:"timeout"`
}

// ApplyDefaults fills in default values for unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "triggerkit"
	}
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = ":9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/triggers.db"
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = "sqlite"
	}
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = "data/executions.db"
	}
	if cfg.History.AsyncBuffer <= 0 {
		cfg.History.AsyncBuffer = 1000
	}
	if cfg.History.WriteTimeout <= 0 {
		cfg.History.WriteTimeout = 5 * time.Second
	}
	if cfg.History.Retention.MaxAge == 0 {
		cfg.History.Retention.MaxAge = 90 * 24 * time.Hour
	}
	if cfg.History.Retention.Schedule == "" {
		cfg.History.Retention.Schedule = "0 3 * * *"
	}

	if cfg.Engine.ActionTimeout <= 0 {
		cfg.Engine.ActionTimeout = 10 * time.Second
	}

	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: unknown format %q", cfg.Logging.Format)
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend: unknown backend %q", cfg.Store.Backend)
	}

	switch cfg.History.Backend {
	case "memory":
	case "sqlite":
		if cfg.History.SQLitePath == "" {
			return fmt.Errorf("history.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend: unknown backend %q", cfg.History.Backend)
	}

	if cfg.History.Retention.MaxAge < 0 {
		return fmt.Errorf("history.retention.max_age cannot be negative")
	}

	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
