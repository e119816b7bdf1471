package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orbit-erp/triggerkit/pkg/rule"
)

// ErrNotFound indicates the requested trigger does not exist.
var ErrNotFound = errors.New("trigger not found")

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("trigger store closed")

// StorageError wraps a backend failure with the backend and operation that
// produced it.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("trigger store %s: %s failed: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}

// DuplicateIDError indicates a create with an ID that already exists.
type DuplicateIDError struct {
	ID string
}

// Error returns the error message.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("trigger %q already exists", e.ID)
}

// Store persists triggers. Implementations must be safe for concurrent use
// and must return deep copies so callers cannot mutate stored state.
type Store interface {
	// Create validates and stores a new trigger. The store assigns the ID
	// (when empty), the tie-breaking sequence number, timestamps, and the
	// default priority: a trigger created with rule.PriorityUnset is
	// appended after all existing triggers for its event.
	Create(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error)

	// Update replaces the definition of an existing trigger. Updates are
	// last-write-wins; the store preserves ID, CreatedAt, Seq, and the
	// engine-owned counters, bumps Version, and stamps UpdatedAt.
	Update(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error)

	// Delete removes a trigger. Execution log entries referencing it are
	// left in place.
	Delete(ctx context.Context, id string) error

	// Toggle activates or deactivates a trigger without touching the rest
	// of its definition.
	Toggle(ctx context.Context, id string, active bool) (*rule.Trigger, error)

	// SetPriority changes a trigger's evaluation priority.
	SetPriority(ctx context.Context, id string, priority int) (*rule.Trigger, error)

	// Get returns a single trigger by ID.
	Get(ctx context.Context, id string) (*rule.Trigger, error)

	// List returns all triggers ordered by (event, priority, created_at, seq).
	List(ctx context.Context) ([]*rule.Trigger, error)

	// ListActive returns the active triggers for an event in evaluation
	// order: priority ascending, then CreatedAt, then Seq. This is the
	// engine's read path.
	ListActive(ctx context.Context, event string) ([]*rule.Trigger, error)

	// RecordFiring increments the trigger's execution count and stamps
	// LastTriggeredAt. The update is atomic: concurrent firings of the
	// same trigger never lose a count.
	RecordFiring(ctx context.Context, id string, at time.Time) error

	// AddCondition appends a condition to one of the trigger's two
	// condition lists.
	AddCondition(ctx context.Context, id string, group rule.GroupKind, c rule.Condition) (*rule.Trigger, error)

	// RemoveCondition removes the condition at index from one of the
	// trigger's two condition lists.
	RemoveCondition(ctx context.Context, id string, group rule.GroupKind, index int) (*rule.Trigger, error)

	// ReorderActions rearranges the trigger's actions. order must be a
	// permutation of the current action indexes.
	ReorderActions(ctx context.Context, id string, order []int) (*rule.Trigger, error)

	// Close releases resources held by the backend.
	Close() error
}

// applyConditionEdit appends or removes a condition on a cloned trigger.
// Shared by both backends.
func applyConditionEdit(t *rule.Trigger, group rule.GroupKind, add *rule.Condition, removeIndex int) error {
	var list *[]rule.Condition
	switch group {
	case rule.GroupAll:
		list = &t.Conditions.All
	case rule.GroupAny:
		list = &t.Conditions.Any
	default:
		return fmt.Errorf("unknown condition group %q", group)
	}

	if add != nil {
		*list = append(*list, *add)
		return nil
	}

	if removeIndex < 0 || removeIndex >= len(*list) {
		return fmt.Errorf("condition index %d out of range for group %q (%d conditions)",
			removeIndex, group, len(*list))
	}
	*list = append((*list)[:removeIndex], (*list)[removeIndex+1:]...)
	return nil
}

// reorderActions validates order as a permutation and applies it on a
// cloned trigger. Shared by both backends.
func reorderActions(t *rule.Trigger, order []int) error {
	if len(order) != len(t.Actions) {
		return fmt.Errorf("reorder list has %d entries, trigger has %d actions",
			len(order), len(t.Actions))
	}

	seen := make([]bool, len(order))
	next := make([]rule.Action, len(order))
	for pos, idx := range order {
		if idx < 0 || idx >= len(t.Actions) {
			return fmt.Errorf("action index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("action index %d appears twice in reorder list", idx)
		}
		seen[idx] = true
		next[pos] = t.Actions[idx]
	}
	t.Actions = next
	return nil
}
