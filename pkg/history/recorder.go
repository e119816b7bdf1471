package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the async recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing an entry to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes execution log entries asynchronously so firing an event
// never blocks on log storage. It satisfies Appender.
//
// Entries are enqueued on a buffered channel and drained by a background
// worker. Close drains the channel before returning.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	entries chan *Entry
	wg      sync.WaitGroup
	done    chan struct{}
	logger  *slog.Logger
}

// NewRecorder creates a recorder backed by the provided storage and starts
// its background worker.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		entries: make(chan *Entry, config.AsyncBuffer),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "history.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("execution log recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Append enqueues an entry for async writing. It returns immediately and
// does not block on storage writes. If the buffer is full for longer than
// the write timeout the entry is dropped and an error returned.
func (r *Recorder) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	select {
	case r.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("execution log channel full, dropping entry",
			"entry_id", e.ID,
			"trigger_id", e.TriggerID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return NewStorageError("recorder", "append", context.DeadlineExceeded)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping entry",
			"entry_id", e.ID,
			"trigger_id", e.TriggerID,
		)
		return NewStorageError("recorder", "append", context.Canceled)
	}
}

// Close shuts down the recorder, draining the channel and waiting for all
// pending writes to complete.
func (r *Recorder) Close() error {
	r.logger.Info("shutting down execution log recorder")

	close(r.done)
	r.wg.Wait()

	r.logger.Info("execution log recorder shut down complete")
	return nil
}

// worker drains the entry channel and writes entries to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.entries:
			r.write(e)

		case <-r.done:
			// Drain remaining entries before exit
			r.logger.Info("draining execution log channel before shutdown",
				"pending_count", len(r.entries),
			)

			for {
				select {
				case e := <-r.entries:
					r.write(e)
				default:
					r.logger.Info("execution log channel drained")
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()

	if err := r.storage.Append(ctx, e); err != nil {
		r.logger.Error("failed to store execution log entry",
			"entry_id", e.ID,
			"trigger_id", e.TriggerID,
			"error", err,
		)
		return
	}

	duration := time.Since(start)

	r.logger.Debug("execution recorded",
		"entry_id", e.ID,
		"trigger_id", e.TriggerID,
		"matched", e.Matched,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow execution log write",
			"entry_id", e.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
