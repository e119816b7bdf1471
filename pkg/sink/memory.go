package sink

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Sink that applies mutations to records held in a
// map and records every call it receives. It backs unit tests and local
// development; the recorded calls double as the assertion surface.
type Memory struct {
	mu        sync.Mutex
	records   map[string]*MemoryRecord
	delivered []Message
	mutations []AppliedMutation

	// FailMutate and FailDeliver, when set, make the corresponding call
	// fail for matching inputs. Tests use them to exercise the engine's
	// action failure isolation.
	FailMutate  func(recordID string, m Mutation) error
	FailDeliver func(msg Message) error
}

// MemoryRecord is the mutable record state a Memory sink maintains.
type MemoryRecord struct {
	Fields map[string]string
	Lists  map[string][]string
	Custom map[string]string
	Notes  []string
}

// AppliedMutation is one mutation the sink accepted, with the record it
// targeted.
type AppliedMutation struct {
	RecordID string
	Mutation Mutation
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*MemoryRecord)}
}

// Seed installs a record so mutations against its ID have somewhere to land.
func (s *Memory) Seed(recordID string, fields map[string]string) *MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &MemoryRecord{
		Fields: make(map[string]string),
		Lists:  make(map[string][]string),
		Custom: make(map[string]string),
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	s.records[recordID] = rec
	return rec
}

// Mutate applies a field change to the seeded record.
func (s *Memory) Mutate(ctx context.Context, recordID string, m Mutation) error {
	if s.FailMutate != nil {
		if err := s.FailMutate(recordID, m); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %q not found", recordID)
	}

	switch m.Op {
	case OpSet:
		if m.Key != "" {
			rec.Custom[m.Key] = m.Value
		} else {
			rec.Fields[m.Field] = m.Value
		}

	case OpAdd:
		list := rec.Lists[m.Field]
		for _, v := range list {
			if v == m.Value {
				s.mutations = append(s.mutations, AppliedMutation{recordID, m})
				return nil // already present; idempotent
			}
		}
		rec.Lists[m.Field] = append(list, m.Value)

	case OpRemove:
		list := rec.Lists[m.Field]
		kept := list[:0]
		for _, v := range list {
			if v != m.Value {
				kept = append(kept, v)
			}
		}
		rec.Lists[m.Field] = kept

	case OpAppend:
		rec.Notes = append(rec.Notes, m.Value)

	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}

	s.mutations = append(s.mutations, AppliedMutation{recordID, m})
	return nil
}

// Deliver records the message as accepted.
func (s *Memory) Deliver(ctx context.Context, msg Message) error {
	if s.FailDeliver != nil {
		if err := s.FailDeliver(msg); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, msg)
	return nil
}

// Record returns the current state of a seeded record.
func (s *Memory) Record(recordID string) *MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[recordID]
}

// Delivered returns every accepted message, in order.
func (s *Memory) Delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.delivered...)
}

// Mutations returns every accepted mutation, in order.
func (s *Memory) Mutations() []AppliedMutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppliedMutation(nil), s.mutations...)
}
