package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triggerd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

// TestLoad_AppliesDefaults tests that unset fields get defaults.
func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected default format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Expected backend 'memory', got %q", cfg.Store.Backend)
	}
	if cfg.History.Backend != "sqlite" {
		t.Errorf("Expected default history backend 'sqlite', got %q", cfg.History.Backend)
	}
	if cfg.History.AsyncBuffer != 1000 {
		t.Errorf("Expected default async buffer 1000, got %d", cfg.History.AsyncBuffer)
	}
	if cfg.History.Retention.Schedule != "0 3 * * *" {
		t.Errorf("Expected default retention schedule, got %q", cfg.History.Retention.Schedule)
	}
	if cfg.Engine.ActionTimeout != 10*time.Second {
		t.Errorf("Expected default action timeout 10s, got %v", cfg.Engine.ActionTimeout)
	}
}

// TestLoad_ParsesValues tests that file values override defaults.
func TestLoad_ParsesValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: text
store:
  backend: sqlite
  sqlite_path: /var/lib/triggerkit/triggers.db
history:
  backend: sqlite
  sqlite_path: /var/lib/triggerkit/executions.db
  async: true
  write_timeout: 2s
  retention:
    max_age: 720h
    schedule: "0 4 * * *"
vocabulary:
  path: /etc/triggerkit/vocab.yaml
  watch: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging config not parsed: %+v", cfg.Logging)
	}
	if cfg.Store.SQLitePath != "/var/lib/triggerkit/triggers.db" {
		t.Errorf("Store path not parsed: %q", cfg.Store.SQLitePath)
	}
	if !cfg.History.Async {
		t.Error("History async not parsed")
	}
	if cfg.History.WriteTimeout != 2*time.Second {
		t.Errorf("Write timeout not parsed: %v", cfg.History.WriteTimeout)
	}
	if cfg.History.Retention.MaxAge != 720*time.Hour {
		t.Errorf("Retention max age not parsed: %v", cfg.History.Retention.MaxAge)
	}
	if !cfg.Vocab.Watch || cfg.Vocab.Path != "/etc/triggerkit/vocab.yaml" {
		t.Errorf("Vocabulary config not parsed: %+v", cfg.Vocab)
	}
}

// TestLoad_RejectsInvalid tests validation failures.
func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad log level",
			content: `
logging:
  level: verbose
`,
		},
		{
			name: "bad store backend",
			content: `
store:
  backend: postgres
`,
		},
		{
			name: "bad history backend",
			content: `
history:
  backend: redis
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// TestLoadWithEnvOverrides tests that environment variables win over file
// values.
func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
store:
  backend: sqlite
  sqlite_path: data/triggers.db
`)

	t.Setenv("TRIGGERKIT_LOGGING_LEVEL", "debug")
	t.Setenv("TRIGGERKIT_STORE_BACKEND", "memory")
	t.Setenv("TRIGGERKIT_HISTORY_RETENTION_MAX_AGE", "48h")
	t.Setenv("TRIGGERKIT_METRICS_ENABLED", "true")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides() failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level 'debug' from env, got %q", cfg.Logging.Level)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Expected backend 'memory' from env, got %q", cfg.Store.Backend)
	}
	if cfg.History.Retention.MaxAge != 48*time.Hour {
		t.Errorf("Expected retention 48h from env, got %v", cfg.History.Retention.MaxAge)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled from env")
	}
}

// TestLoadWithEnvOverrides_InvalidOverride tests that an override failing
// validation is rejected.
func TestLoadWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
`)

	t.Setenv("TRIGGERKIT_STORE_BACKEND", "cassandra")

	if _, err := LoadWithEnvOverrides(path); err == nil {
		t.Error("Expected validation error for invalid env override")
	}
}
