package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls automatic pruning of old execution log entries.
type RetentionConfig struct {
	// MaxAge is the maximum age of entries to keep. Entries older than this
	// are deleted on each sweep. Zero disables age-based pruning.
	MaxAge time.Duration

	// Schedule is a cron expression controlling when sweeps run, e.g.
	// "0 3 * * *" for daily at 3 AM. Empty disables the sweeper.
	Schedule string
}

// DefaultRetentionConfig keeps 90 days of history, sweeping daily at 3 AM.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		MaxAge:   90 * 24 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Sweeper deletes execution log entries older than the retention window on
// a cron schedule.
type Sweeper struct {
	storage Storage
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewSweeper creates a retention sweeper for the provided storage.
func NewSweeper(storage Storage, config *RetentionConfig) *Sweeper {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	return &Sweeper{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "history.sweeper"),
	}
}

// Start begins scheduled sweeping. If no schedule or retention window is
// configured the sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" || s.config.MaxAge <= 0 {
		s.logger.Info("retention not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention sweeper started",
		"schedule", s.config.Schedule,
		"max_age", s.config.MaxAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep deletes entries older than the retention window and returns the
// number deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.config.MaxAge)
	return s.storage.Delete(ctx, &Query{Until: &cutoff})
}

func (s *Sweeper) sweep(ctx context.Context) {
	s.logger.Info("starting scheduled execution log sweep")

	deleted, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled sweep failed",
			"error", err,
		)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled sweep completed",
			"deleted_count", deleted,
		)
	} else {
		s.logger.Debug("scheduled sweep completed, no entries deleted")
	}
}

// Stop stops the sweeper and waits for any running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
