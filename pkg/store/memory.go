package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"orbit-erp/triggerkit/pkg/rule"
)

// Memory implements Store with a mutex-guarded map. It backs unit tests and
// single-process development setups.
type Memory struct {
	mu       sync.RWMutex
	triggers map[string]*rule.Trigger
	nextSeq  int64
	closed   bool
}

// NewMemory creates an empty in-memory trigger store.
func NewMemory() *Memory {
	return &Memory{
		triggers: make(map[string]*rule.Trigger),
	}
}

// Create validates and stores a new trigger.
func (s *Memory) Create(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageError("memory", "create", ErrClosed)
	}

	cp := t.Clone()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	} else if _, exists := s.triggers[cp.ID]; exists {
		return nil, NewStorageError("memory", "create",
			&DuplicateIDError{ID: cp.ID})
	}

	now := time.Now()
	s.nextSeq++
	cp.Seq = s.nextSeq
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.Version = 1
	cp.ExecutionCount = 0
	cp.LastTriggeredAt = nil

	if cp.Priority == rule.PriorityUnset {
		cp.Priority = s.countForEventLocked(cp.Event)
	}

	s.triggers[cp.ID] = cp
	return cp.Clone(), nil
}

// Update replaces the definition of an existing trigger.
func (s *Memory) Update(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.triggers[t.ID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := t.Clone()
	cp.Seq = cur.Seq
	cp.CreatedAt = cur.CreatedAt
	cp.ExecutionCount = cur.ExecutionCount
	cp.LastTriggeredAt = cur.LastTriggeredAt
	cp.Version = cur.Version + 1
	cp.UpdatedAt = time.Now()

	s.triggers[cp.ID] = cp
	return cp.Clone(), nil
}

// Delete removes a trigger.
func (s *Memory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.triggers[id]; !ok {
		return ErrNotFound
	}
	delete(s.triggers, id)
	return nil
}

// Toggle activates or deactivates a trigger.
func (s *Memory) Toggle(ctx context.Context, id string, active bool) (*rule.Trigger, error) {
	return s.mutate(id, func(t *rule.Trigger) error {
		t.IsActive = active
		return nil
	})
}

// SetPriority changes a trigger's priority.
func (s *Memory) SetPriority(ctx context.Context, id string, priority int) (*rule.Trigger, error) {
	return s.mutate(id, func(t *rule.Trigger) error {
		t.Priority = priority
		return nil
	})
}

// Get returns a single trigger by ID.
func (s *Memory) Get(ctx context.Context, id string) (*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.triggers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// List returns all triggers in stable order.
func (s *Memory) List(ctx context.Context) ([]*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*rule.Trigger, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return evalLess(out[i], out[j])
	})
	return out, nil
}

// ListActive returns the active triggers for an event in evaluation order.
func (s *Memory) ListActive(ctx context.Context, event string) ([]*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*rule.Trigger
	for _, t := range s.triggers {
		if t.Event == event && t.IsActive {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return evalLess(out[i], out[j])
	})
	return out, nil
}

// RecordFiring increments the execution counter under the store lock, so
// concurrent firings never lose a count.
func (s *Memory) RecordFiring(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[id]
	if !ok {
		return ErrNotFound
	}
	t.ExecutionCount++
	fired := at
	t.LastTriggeredAt = &fired
	return nil
}

// AddCondition appends a condition to one of the trigger's condition lists.
func (s *Memory) AddCondition(ctx context.Context, id string, group rule.GroupKind, c rule.Condition) (*rule.Trigger, error) {
	return s.mutate(id, func(t *rule.Trigger) error {
		return applyConditionEdit(t, group, &c, 0)
	})
}

// RemoveCondition removes the condition at index from one of the trigger's
// condition lists.
func (s *Memory) RemoveCondition(ctx context.Context, id string, group rule.GroupKind, index int) (*rule.Trigger, error) {
	return s.mutate(id, func(t *rule.Trigger) error {
		return applyConditionEdit(t, group, nil, index)
	})
}

// ReorderActions rearranges the trigger's actions.
func (s *Memory) ReorderActions(ctx context.Context, id string, order []int) (*rule.Trigger, error) {
	return s.mutate(id, func(t *rule.Trigger) error {
		return reorderActions(t, order)
	})
}

// Close marks the store closed; further creates fail.
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// mutate applies fn to a clone of the stored trigger, bumps Version, and
// swaps it in.
func (s *Memory) mutate(id string, fn func(*rule.Trigger) error) (*rule.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.triggers[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := cur.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	cp.Version = cur.Version + 1
	cp.UpdatedAt = time.Now()

	s.triggers[id] = cp
	return cp.Clone(), nil
}

func (s *Memory) countForEventLocked(event string) int {
	n := 0
	for _, t := range s.triggers {
		if t.Event == event {
			n++
		}
	}
	return n
}

// evalLess orders triggers by (priority, created_at, seq).
func evalLess(a, b *rule.Trigger) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
