package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"orbit-erp/triggerkit/pkg/rule"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// richTrigger exercises every condition and action shape that has to
// survive persistence: both condition groups, keyed fields, string, number,
// and list literals, and action configs with nested payloads.
func richTrigger() *rule.Trigger {
	return &rule.Trigger{
		Name:        "Escalate urgent VIP tickets",
		Description: "Route urgent VIP tickets to tier 2",
		Event:       "ticket_created",
		IsActive:    true,
		Priority:    3,
		Conditions: rule.ConditionGroup{
			All: []rule.Condition{
				{Field: "priority", Operator: rule.OperatorIs, Value: rule.StringValue("urgent")},
				{Field: "custom_field", Key: "age_hours", Operator: rule.OperatorGreaterThan, Value: rule.NumberValue(24)},
			},
			Any: []rule.Condition{
				{Field: "tags", Operator: rule.OperatorContains, Value: rule.StringValue("vip")},
				{Field: "tags", Operator: rule.OperatorContains, Value: rule.ListValue("gold", "platinum")},
			},
		},
		Actions: []rule.Action{
			{Type: rule.ActionAssignTo, Config: rule.ActionConfig{Value: "tier-2"}},
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "escalated"}},
			{Type: rule.ActionTriggerWebhook, Config: rule.ActionConfig{
				URL:     "https://hooks.test/escalations",
				Payload: map[string]any{"team": "tier-2", "source": "triggerd"},
			}},
		},
	}
}

// TestStore_Backends runs the shared store contract against both backends,
// so persistence bugs cannot hide behind the memory implementation.
func TestStore_Backends(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"memory", func(t *testing.T) Store { return NewMemory() }},
		{"sqlite", func(t *testing.T) Store { return newTestSQLite(t) }},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Run("round trip", func(t *testing.T) { testRoundTrip(t, b.open(t)) })
			t.Run("default priority appends", func(t *testing.T) { testDefaultPriority(t, b.open(t)) })
			t.Run("list active order", func(t *testing.T) { testListActiveOrder(t, b.open(t)) })
			t.Run("duplicate id", func(t *testing.T) { testDuplicateID(t, b.open(t)) })
			t.Run("not found", func(t *testing.T) { testNotFound(t, b.open(t)) })
			t.Run("record firing concurrent", func(t *testing.T) { testRecordFiringConcurrent(t, b.open(t)) })
		})
	}
}

func testRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, richTrigger())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	want := richTrigger()
	if got.Name != want.Name || got.Description != want.Description || got.Event != want.Event {
		t.Errorf("Identity fields changed: got %q/%q/%q", got.Name, got.Description, got.Event)
	}
	if !got.IsActive || got.Priority != want.Priority {
		t.Errorf("Expected active with priority %d, got active=%v priority=%d", want.Priority, got.IsActive, got.Priority)
	}
	if !reflect.DeepEqual(got.Conditions, want.Conditions) {
		t.Errorf("Conditions did not survive the round trip:\ngot  %+v\nwant %+v", got.Conditions, want.Conditions)
	}
	if !reflect.DeepEqual(got.Actions, want.Actions) {
		t.Errorf("Actions did not survive the round trip:\ngot  %+v\nwant %+v", got.Actions, want.Actions)
	}
	if got.Version != 1 || got.ExecutionCount != 0 || got.LastTriggeredAt != nil {
		t.Errorf("Expected fresh counters, got version=%d count=%d last=%v",
			got.Version, got.ExecutionCount, got.LastTriggeredAt)
	}
	if got.Seq != created.Seq {
		t.Errorf("Expected seq %d, got %d", created.Seq, got.Seq)
	}
}

func testDefaultPriority(t *testing.T, s Store) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, newTrigger("existing", "ticket_created", i)); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}
	if _, err := s.Create(ctx, newTrigger("other", "sla_breached", 0)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	created, err := s.Create(ctx, newTrigger("appended", "ticket_created", rule.PriorityUnset))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.Priority != 3 {
		t.Errorf("Expected priority 3, got %d", created.Priority)
	}
}

func testListActiveOrder(t *testing.T, s Store) {
	ctx := context.Background()

	second, err := s.Create(ctx, newTrigger("second", "ticket_created", 5))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	first, err := s.Create(ctx, newTrigger("first", "ticket_created", 1))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	// Same priority as second: creation order breaks the tie
	third, err := s.Create(ctx, newTrigger("third", "ticket_created", 5))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	inactive := newTrigger("inactive", "ticket_created", 0)
	inactive.IsActive = false
	if _, err := s.Create(ctx, inactive); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	active, err := s.ListActive(ctx, "ticket_created")
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("Expected 3 active triggers, got %d", len(active))
	}
	wantOrder := []string{first.ID, second.ID, third.ID}
	for i, want := range wantOrder {
		if active[i].ID != want {
			t.Errorf("Position %d: expected %q, got %q (%s)", i, want, active[i].ID, active[i].Name)
		}
	}
}

func testDuplicateID(t *testing.T, s Store) {
	ctx := context.Background()

	tr := newTrigger("original", "ticket_created", 0)
	tr.ID = "fixed-id"
	if _, err := s.Create(ctx, tr); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	again := newTrigger("copy", "ticket_created", 0)
	again.ID = "fixed-id"
	_, err := s.Create(ctx, again)
	if err == nil {
		t.Fatal("Expected error creating a duplicate ID")
	}
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateIDError, got %v", err)
	}
	if dup.ID != "fixed-id" {
		t.Errorf("Expected duplicate ID %q, got %q", "fixed-id", dup.ID)
	}
}

func testNotFound(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Get, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Delete, got %v", err)
	}
	if err := s.RecordFiring(ctx, "missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from RecordFiring, got %v", err)
	}
}

func testRecordFiringConcurrent(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTrigger("hot", "ticket_created", 0))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	const firings = 50
	var wg sync.WaitGroup
	for i := 0; i < firings; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.RecordFiring(ctx, created.ID, time.Now()); err != nil {
				t.Errorf("RecordFiring() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ExecutionCount != firings {
		t.Errorf("Expected execution count %d, got %d", firings, got.ExecutionCount)
	}
	if got.LastTriggeredAt == nil {
		t.Error("Expected LastTriggeredAt to be set")
	}
}

// TestSQLite_PersistsAcrossReopen tests that triggers and counters survive
// closing and reopening the database file.
func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "triggers.db")

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}

	created, err := s.Create(ctx, richTrigger())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	firedAt := time.Now()
	if err := s.RecordFiring(ctx, created.ID, firedAt); err != nil {
		t.Fatalf("RecordFiring() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite() reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if got.Name != created.Name {
		t.Errorf("Expected name %q, got %q", created.Name, got.Name)
	}
	if got.ExecutionCount != 1 {
		t.Errorf("Expected execution count 1 after reopen, got %d", got.ExecutionCount)
	}
	if got.LastTriggeredAt == nil {
		t.Error("Expected LastTriggeredAt to survive reopen")
	} else if got.LastTriggeredAt.Unix() != firedAt.Unix() {
		t.Errorf("Expected LastTriggeredAt %d, got %d", firedAt.Unix(), got.LastTriggeredAt.Unix())
	}
	if !reflect.DeepEqual(got.Conditions, created.Conditions) {
		t.Errorf("Conditions did not survive reopen:\ngot  %+v\nwant %+v", got.Conditions, created.Conditions)
	}
}

// TestSQLite_MutationsPersist tests toggle, condition edits, and action
// reordering through the read-modify-write path.
func TestSQLite_MutationsPersist(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.Create(ctx, richTrigger())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	off, err := s.Toggle(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	if off.IsActive {
		t.Error("Expected trigger inactive after Toggle(false)")
	}
	if off.Version != 2 {
		t.Errorf("Expected version 2 after toggle, got %d", off.Version)
	}

	cond := rule.Condition{Field: "status", Operator: rule.OperatorIsNot, Value: rule.StringValue("solved")}
	withCond, err := s.AddCondition(ctx, created.ID, rule.GroupAll, cond)
	if err != nil {
		t.Fatalf("AddCondition() failed: %v", err)
	}
	if len(withCond.Conditions.All) != 3 {
		t.Fatalf("Expected 3 conditions in all, got %d", len(withCond.Conditions.All))
	}

	reordered, err := s.ReorderActions(ctx, created.ID, []int{2, 0, 1})
	if err != nil {
		t.Fatalf("ReorderActions() failed: %v", err)
	}
	if reordered.Actions[0].Type != rule.ActionTriggerWebhook {
		t.Errorf("Expected trigger_webhook first, got %s", reordered.Actions[0].Type)
	}

	// Everything lands in the database, not just the returned copies
	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.IsActive {
		t.Error("Toggle did not persist")
	}
	if len(got.Conditions.All) != 3 {
		t.Errorf("AddCondition did not persist: %d conditions", len(got.Conditions.All))
	}
	if got.Actions[0].Type != rule.ActionTriggerWebhook {
		t.Errorf("ReorderActions did not persist: first action %s", got.Actions[0].Type)
	}
}

// TestSQLite_UpdatePreservesCounters mirrors the memory backend contract:
// updates keep engine-owned fields and bump the version.
func TestSQLite_UpdatePreservesCounters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.Create(ctx, newTrigger("original", "ticket_created", 0))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := s.RecordFiring(ctx, created.ID, time.Now()); err != nil {
		t.Fatalf("RecordFiring() failed: %v", err)
	}

	updated := created.Clone()
	updated.Name = "renamed"
	updated.ExecutionCount = 999 // engine-owned, must be ignored

	result, err := s.Update(ctx, updated)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if result.Name != "renamed" {
		t.Errorf("Expected name 'renamed', got %q", result.Name)
	}
	if result.Version != 2 {
		t.Errorf("Expected version 2, got %d", result.Version)
	}
	if result.ExecutionCount != 1 {
		t.Errorf("Expected execution count 1 preserved, got %d", result.ExecutionCount)
	}
	if result.LastTriggeredAt == nil {
		t.Error("Expected LastTriggeredAt preserved")
	}
}

// TestSQLite_EmptyPath tests constructor validation.
func TestSQLite_EmptyPath(t *testing.T) {
	if _, err := NewSQLite(""); err == nil {
		t.Error("Expected error for empty db path")
	}
}
