package history

import (
	"context"
	"testing"
	"time"
)

// TestRecorder_WritesAsync tests that appended entries reach storage.
func TestRecorder_WritesAsync(t *testing.T) {
	storage := NewMemoryStorage()
	recorder := NewRecorder(storage, nil)
	ctx := context.Background()

	entry := &Entry{
		TriggerID: "trig-1",
		Event:     "ticket_created",
		Timestamp: time.Now(),
		Matched:   true,
	}
	if err := recorder.Append(ctx, entry); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("Append() should assign an ID before enqueueing")
	}

	// Close drains the channel
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if storage.Size() != 1 {
		t.Fatalf("Expected 1 stored entry after drain, got %d", storage.Size())
	}
}

// TestRecorder_DrainsOnClose tests that buffered entries are flushed at
// shutdown rather than dropped.
func TestRecorder_DrainsOnClose(t *testing.T) {
	storage := NewMemoryStorage()
	recorder := NewRecorder(storage, &RecorderConfig{
		AsyncBuffer:  64,
		WriteTimeout: time.Second,
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		e := &Entry{
			TriggerID: "trig-1",
			Event:     "ticket_created",
			Timestamp: time.Now(),
			Matched:   true,
		}
		if err := recorder.Append(ctx, e); err != nil {
			t.Fatalf("Append() %d failed: %v", i, err)
		}
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if storage.Size() != 10 {
		t.Errorf("Expected 10 stored entries after drain, got %d", storage.Size())
	}
}

// TestSweeper_Sweep tests age-based pruning.
func TestSweeper_Sweep(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	now := time.Now()
	seed := []*Entry{
		{TriggerID: "trig-1", Event: "ticket_created", Timestamp: now.Add(-100 * 24 * time.Hour), Matched: true},
		{TriggerID: "trig-1", Event: "ticket_created", Timestamp: now, Matched: true},
	}
	for _, e := range seed {
		if err := storage.Append(ctx, e); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	sweeper := NewSweeper(storage, &RetentionConfig{MaxAge: 90 * 24 * time.Hour})

	deleted, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted entry, got %d", deleted)
	}
	if storage.Size() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", storage.Size())
	}
}

// TestSweeper_InvalidSchedule tests that a bad cron expression is rejected.
func TestSweeper_InvalidSchedule(t *testing.T) {
	storage := NewMemoryStorage()
	sweeper := NewSweeper(storage, &RetentionConfig{
		MaxAge:   time.Hour,
		Schedule: "not a cron expression",
	})

	if err := sweeper.Start(context.Background()); err == nil {
		t.Fatal("Expected error for invalid cron schedule")
	}
	if sweeper.IsRunning() {
		t.Error("Sweeper should not be running after failed Start")
	}
}

// TestSweeper_DisabledWithoutSchedule tests that an empty schedule is a
// no-op.
func TestSweeper_DisabledWithoutSchedule(t *testing.T) {
	storage := NewMemoryStorage()
	sweeper := NewSweeper(storage, &RetentionConfig{MaxAge: time.Hour})

	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if sweeper.IsRunning() {
		t.Error("Sweeper should not run without a schedule")
	}
}
