package engine

import (
	"context"
	"errors"
	"testing"

	"orbit-erp/triggerkit/pkg/history"
	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/sink"
	"orbit-erp/triggerkit/pkg/store"
)

type fixture struct {
	engine  *Engine
	store   *store.Memory
	sink    *sink.Memory
	history *history.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemory()
	sk := sink.NewMemory()
	hs := history.NewMemoryStorage()

	eng, err := New(Options{
		Store: st,
		Sink:  sk,
		Log:   hs,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	return &fixture{engine: eng, store: st, sink: sk, history: hs}
}

func (f *fixture) create(t *testing.T, tr *rule.Trigger) *rule.Trigger {
	t.Helper()
	created, err := f.store.Create(context.Background(), tr)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}
	return created
}

func urgentVIPTrigger() *rule.Trigger {
	return &rule.Trigger{
		Name:     "Escalate urgent VIP tickets",
		Event:    "ticket_created",
		IsActive: true,
		Priority: 0,
		Conditions: rule.ConditionGroup{
			All: []rule.Condition{
				{Field: "priority", Operator: rule.OperatorIs, Value: rule.StringValue("urgent")},
				{Field: "tags", Operator: rule.OperatorContains, Value: rule.StringValue("vip")},
			},
		},
		Actions: []rule.Action{
			{Type: rule.ActionAssignTo, Config: rule.ActionConfig{Value: "tier-2"}},
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "escalated"}},
			{Type: rule.ActionSendNotification, Config: rule.ActionConfig{To: "oncall", Body: "urgent VIP ticket"}},
		},
	}
}

func vipSnapshot() *MapSnapshot {
	return &MapSnapshot{
		RecordID: "tkt-100",
		Fields: map[string]any{
			"priority": "urgent",
			"status":   "open",
			"tags":     []string{"vip"},
		},
	}
}

// TestFire_MatchExecutesActions tests the full happy path: match, execute,
// count, log.
func TestFire_MatchExecutesActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, urgentVIPTrigger())
	f.sink.Seed("tkt-100", nil)

	result, err := f.engine.Fire(ctx, "ticket_created", vipSnapshot())
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if result.Evaluated != 1 || result.Matched != 1 {
		t.Fatalf("Expected 1 evaluated / 1 matched, got %d / %d", result.Evaluated, result.Matched)
	}

	// Actions reached the sink
	rec := f.sink.Record("tkt-100")
	if rec.Fields["assignee"] != "tier-2" {
		t.Errorf("Expected assignee 'tier-2', got %q", rec.Fields["assignee"])
	}
	if len(rec.Lists["tags"]) != 1 || rec.Lists["tags"][0] != "escalated" {
		t.Errorf("Expected tags [escalated], got %v", rec.Lists["tags"])
	}
	if len(f.sink.Delivered()) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(f.sink.Delivered()))
	}

	// Counter updated
	stored, err := f.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if stored.ExecutionCount != 1 {
		t.Errorf("Expected execution count 1, got %d", stored.ExecutionCount)
	}
	if stored.LastTriggeredAt == nil {
		t.Error("Expected LastTriggeredAt to be set")
	}

	// Exactly one log entry
	entries, err := f.history.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.TriggerID != created.ID || e.TriggerName != created.Name {
		t.Errorf("Entry does not reference the trigger: %+v", e)
	}
	if e.ActionsAttempted != 3 || e.ActionsFailed != 0 {
		t.Errorf("Expected 3 attempted / 0 failed, got %d / %d", e.ActionsAttempted, e.ActionsFailed)
	}
	if e.Simulated {
		t.Error("Real firing must not be marked simulated")
	}
}

// TestFire_NoMatchLeavesNoTrace tests that a non-matching trigger neither
// executes nor counts nor logs.
func TestFire_NoMatchLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, urgentVIPTrigger())
	f.sink.Seed("tkt-200", nil)

	snap := &MapSnapshot{
		RecordID: "tkt-200",
		Fields: map[string]any{
			"priority": "low",
			"tags":     []string{"vip"},
		},
	}

	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if result.Evaluated != 1 || result.Matched != 0 {
		t.Fatalf("Expected 1 evaluated / 0 matched, got %d / %d", result.Evaluated, result.Matched)
	}
	if len(f.sink.Mutations()) != 0 || len(f.sink.Delivered()) != 0 {
		t.Error("Non-matching trigger must not reach the sink")
	}

	stored, _ := f.store.Get(ctx, created.ID)
	if stored.ExecutionCount != 0 {
		t.Errorf("Expected execution count 0, got %d", stored.ExecutionCount)
	}
	if f.history.Size() != 0 {
		t.Errorf("Expected no log entries, got %d", f.history.Size())
	}
}

// TestFire_EventFilter tests that triggers for other events are not even
// evaluated.
func TestFire_EventFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr := urgentVIPTrigger()
	tr.Event = "sla_breached"
	f.create(t, tr)

	result, err := f.engine.Fire(ctx, "ticket_created", vipSnapshot())
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if result.Evaluated != 0 {
		t.Errorf("Expected 0 evaluated, got %d", result.Evaluated)
	}
}

// TestFire_PriorityOrder tests that triggers run in priority order with
// creation-order ties, and that all matching triggers fire.
func TestFire_PriorityOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mk := func(name string, priority int, status string) *rule.Trigger {
		return &rule.Trigger{
			Name:     name,
			Event:    "ticket_created",
			IsActive: true,
			Priority: priority,
			Actions: []rule.Action{
				{Type: rule.ActionSetStatus, Config: rule.ActionConfig{Value: status}},
			},
		}
	}

	// Created out of priority order; "tie-b" created after "tie-a"
	f.create(t, mk("late", 10, "from-late"))
	f.create(t, mk("tie-a", 5, "from-tie-a"))
	f.create(t, mk("tie-b", 5, "from-tie-b"))
	f.create(t, mk("first", 1, "from-first"))

	f.sink.Seed("tkt-300", nil)
	snap := &MapSnapshot{RecordID: "tkt-300", Fields: map[string]any{"status": "open"}}

	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if result.Matched != 4 {
		t.Fatalf("Expected 4 matches, got %d", result.Matched)
	}

	wantNames := []string{"first", "tie-a", "tie-b", "late"}
	for i, o := range result.Outcomes {
		if o.TriggerName != wantNames[i] {
			t.Errorf("Position %d: expected %q, got %q", i, wantNames[i], o.TriggerName)
		}
	}

	// Later triggers observe earlier mutations: the last writer wins
	if got := f.sink.Record("tkt-300").Fields["status"]; got != "from-late" {
		t.Errorf("Expected final status 'from-late', got %q", got)
	}
}

// TestFire_ActionFailureIsolation tests that one failing action stops
// neither the trigger's remaining actions nor later triggers.
func TestFire_ActionFailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := &rule.Trigger{
		Name:     "first",
		Event:    "ticket_created",
		IsActive: true,
		Priority: 1,
		Actions: []rule.Action{
			{Type: rule.ActionSetStatus, Config: rule.ActionConfig{Value: "poisoned"}},
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "survived"}},
		},
	}
	second := &rule.Trigger{
		Name:     "second",
		Event:    "ticket_created",
		IsActive: true,
		Priority: 2,
		Actions: []rule.Action{
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "second-ran"}},
		},
	}
	f.create(t, first)
	f.create(t, second)

	f.sink.Seed("tkt-400", nil)
	f.sink.FailMutate = func(recordID string, m sink.Mutation) error {
		if m.Field == "status" {
			return errors.New("status backend down")
		}
		return nil
	}

	snap := &MapSnapshot{RecordID: "tkt-400", Fields: map[string]any{"status": "open"}}
	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() must not fail on action errors: %v", err)
	}
	if result.Matched != 2 {
		t.Fatalf("Expected 2 matches, got %d", result.Matched)
	}

	firstOutcome := result.Outcomes[0]
	if firstOutcome.Actions[0].OK {
		t.Error("Expected first action to fail")
	}
	if !firstOutcome.Actions[1].OK {
		t.Error("Expected second action of the same trigger to run")
	}

	tags := f.sink.Record("tkt-400").Lists["tags"]
	if len(tags) != 2 {
		t.Errorf("Expected both surviving tags, got %v", tags)
	}

	// The failed action is recorded in the log entry
	entries, _ := f.history.List(ctx, nil)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	var failedEntry *history.Entry
	for _, e := range entries {
		if e.ActionsFailed > 0 {
			failedEntry = e
		}
	}
	if failedEntry == nil {
		t.Fatal("Expected an entry recording the failed action")
	}
	if failedEntry.ActionsAttempted != 2 || failedEntry.ActionsFailed != 1 {
		t.Errorf("Expected 2 attempted / 1 failed, got %d / %d",
			failedEntry.ActionsAttempted, failedEntry.ActionsFailed)
	}
}

// TestFire_MatchWithFailedActionsStillCounts tests that a match with
// failing actions still increments the counter and logs.
func TestFire_MatchWithFailedActionsStillCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, &rule.Trigger{
		Name:     "always fails",
		Event:    "ticket_created",
		IsActive: true,
		Actions: []rule.Action{
			{Type: rule.ActionSetStatus, Config: rule.ActionConfig{Value: "x"}},
		},
	})

	f.sink.Seed("tkt-500", nil)
	f.sink.FailMutate = func(string, sink.Mutation) error {
		return errors.New("down")
	}

	snap := &MapSnapshot{RecordID: "tkt-500", Fields: map[string]any{"status": "open"}}
	if _, err := f.engine.Fire(ctx, "ticket_created", snap); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	stored, _ := f.store.Get(ctx, created.ID)
	if stored.ExecutionCount != 1 {
		t.Errorf("Expected execution count 1 despite failed actions, got %d", stored.ExecutionCount)
	}
	if f.history.Size() != 1 {
		t.Errorf("Expected 1 log entry despite failed actions, got %d", f.history.Size())
	}
}

// TestFire_TypeMismatchDoesNotAbort tests that a numeric comparison against
// a non-numeric value fails the condition but not the call.
func TestFire_TypeMismatchDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, &rule.Trigger{
		Name:     "numeric guard",
		Event:    "ticket_created",
		IsActive: true,
		Conditions: rule.ConditionGroup{
			All: []rule.Condition{
				{Field: "custom_field", Key: "age_hours", Operator: rule.OperatorGreaterThan, Value: rule.NumberValue(24)},
			},
		},
		Actions: []rule.Action{
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "stale"}},
		},
	})

	f.sink.Seed("tkt-600", nil)
	snap := &MapSnapshot{
		RecordID: "tkt-600",
		Fields:   map[string]any{"status": "open"},
		Custom:   map[string]any{"age_hours": "not a number"},
	}

	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() must not fail on a type mismatch: %v", err)
	}
	if result.Matched != 0 {
		t.Error("Mismatched condition must not match")
	}

	outcome := result.Outcomes[0]
	if len(outcome.Conditions) != 1 || !outcome.Conditions[0].TypeMismatch {
		t.Errorf("Expected a recorded type mismatch, got %+v", outcome.Conditions)
	}
}

// TestFire_ZeroActionTriggerCounts tests that an actionless trigger can
// match and still counts a firing.
func TestFire_ZeroActionTriggerCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, &rule.Trigger{
		Name:     "inert",
		Event:    "ticket_created",
		IsActive: true,
	})

	snap := &MapSnapshot{RecordID: "tkt-700", Fields: map[string]any{"status": "open"}}
	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("Expected the actionless trigger to match, got %d matches", result.Matched)
	}

	stored, _ := f.store.Get(ctx, created.ID)
	if stored.ExecutionCount != 1 {
		t.Errorf("Expected execution count 1, got %d", stored.ExecutionCount)
	}
	entries, _ := f.history.List(ctx, nil)
	if len(entries) != 1 || entries[0].ActionsAttempted != 0 {
		t.Errorf("Expected one entry with zero actions, got %+v", entries)
	}
}

// TestFire_ContextCancellationStopsBetweenTriggers tests that cancellation
// stops before the next trigger and keeps completed work.
func TestFire_ContextCancellationStopsBetweenTriggers(t *testing.T) {
	f := newFixture(t)

	cancelled := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first trigger's action cancels the context; the second trigger
	// must then never be evaluated.
	f.create(t, &rule.Trigger{
		Name:     "canceller",
		Event:    "ticket_created",
		IsActive: true,
		Priority: 1,
		Actions: []rule.Action{
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "first"}},
		},
	})
	f.create(t, &rule.Trigger{
		Name:     "never reached",
		Event:    "ticket_created",
		IsActive: true,
		Priority: 2,
		Actions: []rule.Action{
			{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "second"}},
		},
	})

	f.sink.Seed("tkt-800", nil)
	f.sink.FailMutate = func(string, sink.Mutation) error {
		cancel()
		close(cancelled)
		return nil
	}

	snap := &MapSnapshot{RecordID: "tkt-800", Fields: map[string]any{"status": "open"}}
	result, err := f.engine.Fire(ctx, "ticket_created", snap)

	<-cancelled
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Evaluated != 1 {
		t.Errorf("Expected 1 completed evaluation, got %d", result.Evaluated)
	}
	if f.history.Size() != 1 {
		t.Errorf("Completed firing should still be logged, got %d entries", f.history.Size())
	}
}

// TestFire_LogFailurePropagates tests that an unwritable execution log is
// an infrastructure error.
func TestFire_LogFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, &rule.Trigger{
		Name:     "any",
		Event:    "ticket_created",
		IsActive: true,
	})

	// Closing the storage makes Append fail
	if err := f.history.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	snap := &MapSnapshot{RecordID: "tkt-900", Fields: map[string]any{"status": "open"}}
	_, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err == nil {
		t.Fatal("Expected an error from the unwritable log")
	}
	var logErr *LogError
	if !errors.As(err, &logErr) {
		t.Errorf("Expected a LogError, got %T: %v", err, err)
	}
}

// TestFire_RequiresDependencies tests constructor validation.
func TestFire_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{Sink: sink.NewMemory()}); !errors.Is(err, ErrNoStore) {
		t.Errorf("Expected ErrNoStore, got %v", err)
	}
	if _, err := New(Options{Store: store.NewMemory()}); !errors.Is(err, ErrNoSink) {
		t.Errorf("Expected ErrNoSink, got %v", err)
	}
}

// TestFire_DurationRecorded tests that the result carries a duration.
func TestFire_DurationRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, &rule.Trigger{Name: "t", Event: "ticket_created", IsActive: true})
	snap := &MapSnapshot{RecordID: "tkt-1", Fields: map[string]any{}}

	result, err := f.engine.Fire(ctx, "ticket_created", snap)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if result.Duration <= 0 {
		t.Errorf("Expected positive duration, got %v", result.Duration)
	}
}
