package engine

import (
	"fmt"
	"time"
)

// Config controls evaluation and execution behavior.
type Config struct {
	// ActionTimeout bounds each action dispatch. Zero means no per-action
	// timeout beyond the caller's context.
	ActionTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		ActionTimeout: 10 * time.Second,
	}
}

// WithActionTimeout sets the per-action dispatch timeout.
func (c *Config) WithActionTimeout(d time.Duration) *Config {
	c.ActionTimeout = d
	return c
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ActionTimeout < 0 {
		return fmt.Errorf("action timeout cannot be negative")
	}
	return nil
}
