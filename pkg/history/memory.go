package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage with an in-memory slice. It backs unit
// tests and single-process development setups.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*Entry
	closed  bool
}

// NewMemoryStorage creates an empty in-memory execution log.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append stores a copy of the entry, assigning an ID if absent.
func (s *MemoryStorage) Append(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageError("memory", "append", ErrClosed)
	}

	cp := *e
	cp.Actions = append([]ActionRecord(nil), e.Actions...)
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	e.ID = cp.ID
	s.entries = append(s.entries, &cp)
	return nil
}

// List returns matching entries, newest first.
func (s *MemoryStorage) List(ctx context.Context, q *Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if matchesQuery(e, q) {
			cp := *e
			out = append(out, &cp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	return paginate(out, q), nil
}

// ListRecent returns the newest entries up to limit.
func (s *MemoryStorage) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.List(ctx, &Query{Limit: limit})
}

// Count returns the number of entries matching the query.
func (s *MemoryStorage) Count(ctx context.Context, q *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if matchesQuery(e, q) {
			n++
		}
	}
	return n, nil
}

// Delete removes entries matching the query.
func (s *MemoryStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if matchesQuery(e, q) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// Close marks the storage closed; further appends fail.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Size returns the number of stored entries (for tests).
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func matchesQuery(e *Entry, q *Query) bool {
	if q == nil {
		return true
	}
	if q.TriggerID != "" && e.TriggerID != q.TriggerID {
		return false
	}
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	if q.Since != nil && e.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.Timestamp.After(*q.Until) {
		return false
	}
	return true
}

func paginate(entries []*Entry, q *Query) []*Entry {
	if q == nil {
		return entries
	}
	start := q.Offset
	if start > len(entries) {
		return []*Entry{}
	}
	entries = entries[start:]
	if q.Limit > 0 && q.Limit < len(entries) {
		entries = entries[:q.Limit]
	}
	return entries
}
