package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ActionRecord captures the outcome of one action inside a firing.
type ActionRecord struct {
	// Type is the action type (set_status, send_email, ...).
	Type string `json:"type"`

	// OK reports whether the sink accepted the action.
	OK bool `json:"ok"`

	// Reason explains a failure; empty on success.
	Reason string `json:"reason,omitempty"`
}

// Entry is one immutable record of a trigger evaluation that matched.
// Entries are never mutated after creation.
type Entry struct {
	// ID is a UUID assigned at append time.
	ID string `json:"id"`

	// TriggerID identifies the trigger; TriggerName snapshots its display
	// name so the entry outlives trigger deletion.
	TriggerID   string `json:"trigger_id"`
	TriggerName string `json:"trigger_name"`

	// Event is the domain event that caused the firing.
	Event string `json:"event"`

	// RecordID identifies the record the event carried.
	RecordID string `json:"record_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Matched is true for every persisted entry today; it is stored so the
	// audit view can distinguish evaluation records if non-matching
	// evaluations are ever persisted.
	Matched bool `json:"matched"`

	ActionsAttempted int `json:"actions_attempted"`
	ActionsFailed    int `json:"actions_failed"`

	// Actions holds the per-action outcomes in execution order.
	Actions []ActionRecord `json:"actions,omitempty"`

	// Simulated is false for engine firings. Simulations never write to
	// the log; the flag exists so external importers cannot forge an
	// audit entry that passes for a real firing.
	Simulated bool `json:"simulated"`
}

// Query filters execution log reads.
type Query struct {
	TriggerID string
	Event     string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// Appender is the write surface the engine uses. Storage satisfies it
// synchronously; Recorder satisfies it with an async buffer.
type Appender interface {
	Append(ctx context.Context, e *Entry) error
}

// Storage persists execution log entries. Implementations must be safe for
// concurrent use; Append must never modify an entry other than assigning
// its ID when empty.
type Storage interface {
	Appender

	// List returns entries matching the query, newest first.
	List(ctx context.Context, q *Query) ([]*Entry, error)

	// ListRecent returns the newest entries up to limit.
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)

	// Count returns the number of entries matching the query.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes entries matching the query and returns how many were
	// removed. Only the retention sweeper calls this; the log is otherwise
	// append-only.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}

// ErrClosed indicates the recorder or storage has shut down.
var ErrClosed = errors.New("execution log closed")

// StorageError wraps a backend failure with the backend and operation that
// produced it. The engine treats any StorageError from Append as an
// infrastructure failure and propagates it to Fire's caller.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("execution log %s: %s failed: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}
