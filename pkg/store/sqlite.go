package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"orbit-erp/triggerkit/pkg/rule"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS triggers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	event TEXT NOT NULL,
	conditions TEXT NOT NULL,
	actions TEXT NOT NULL,
	is_active INTEGER NOT NULL,
	priority INTEGER NOT NULL,
	execution_count INTEGER NOT NULL DEFAULT 0,
	last_triggered_at INTEGER,
	version INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triggers_event ON triggers(event);
CREATE INDEX IF NOT EXISTS idx_triggers_event_active ON triggers(event, is_active);
`

// SQLiteConfig configures the SQLite trigger store.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLite implements Store using SQLite for persistence. It is suitable for
// single-instance deployments that need triggers to survive restarts.
//
// The store uses WAL mode and a single writer connection; RecordFiring is
// an atomic SQL increment, so concurrent firings never lose a count.
type SQLite struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once
	closeErr  error

	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	firingStmt *sql.Stmt
}

// NewSQLite creates a SQLite trigger store with default settings.
func NewSQLite(dbPath string) (*SQLite, error) {
	return NewSQLiteWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteWithConfig creates a SQLite trigger store with custom
// configuration.
func NewSQLiteWithConfig(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db, dbPath: cfg.DBPath}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT id, name, description, event, conditions, actions, is_active,
		       priority, execution_count, last_triggered_at, version, seq,
		       created_at, updated_at
		FROM triggers WHERE id = ?
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare_get", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM triggers WHERE id = ?`)
	if err != nil {
		return NewStorageError("sqlite", "prepare_delete", err)
	}

	s.firingStmt, err = s.db.Prepare(`
		UPDATE triggers
		SET execution_count = execution_count + 1, last_triggered_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare_firing", err)
	}

	return nil
}

// Create validates and stores a new trigger.
func (s *SQLite) Create(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := t.Clone()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}

	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.Version = 1
	cp.ExecutionCount = 0
	cp.LastTriggeredAt = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "create", err)
	}
	defer tx.Rollback()

	if t.ID != "" {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM triggers WHERE id = ?`, cp.ID,
		).Scan(&n); err != nil {
			return nil, NewStorageError("sqlite", "create", err)
		}
		if n > 0 {
			return nil, NewStorageError("sqlite", "create",
				&DuplicateIDError{ID: cp.ID})
		}
	}

	if cp.Priority == rule.PriorityUnset {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM triggers WHERE event = ?`, cp.Event,
		).Scan(&n); err != nil {
			return nil, NewStorageError("sqlite", "create", err)
		}
		cp.Priority = n
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM triggers`).Scan(&maxSeq); err != nil {
		return nil, NewStorageError("sqlite", "create", err)
	}
	cp.Seq = maxSeq.Int64 + 1

	conditions, actions, err := encodeRule(cp)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO triggers (
			id, name, description, event, conditions, actions, is_active,
			priority, execution_count, last_triggered_at, version, seq,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?)`,
		cp.ID, cp.Name, cp.Description, cp.Event, conditions, actions,
		boolToInt(cp.IsActive), cp.Priority, cp.Version, cp.Seq,
		cp.CreatedAt.Unix(), cp.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "create", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "create", err)
	}
	return cp, nil
}

// Update replaces the definition of an existing trigger.
func (s *SQLite) Update(ctx context.Context, t *rule.Trigger) (*rule.Trigger, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	cp := t.Clone()
	cp.Seq = cur.Seq
	cp.CreatedAt = cur.CreatedAt
	cp.ExecutionCount = cur.ExecutionCount
	cp.LastTriggeredAt = cur.LastTriggeredAt
	cp.Version = cur.Version + 1
	cp.UpdatedAt = time.Now()

	if err := s.writeLocked(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Delete removes a trigger.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.deleteStmt.ExecContext(ctx, id)
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Toggle activates or deactivates a trigger.
func (s *SQLite) Toggle(ctx context.Context, id string, active bool) (*rule.Trigger, error) {
	return s.mutate(ctx, id, func(t *rule.Trigger) error {
		t.IsActive = active
		return nil
	})
}

// SetPriority changes a trigger's priority.
func (s *SQLite) SetPriority(ctx context.Context, id string, priority int) (*rule.Trigger, error) {
	return s.mutate(ctx, id, func(t *rule.Trigger) error {
		t.Priority = priority
		return nil
	})
}

// Get returns a single trigger by ID.
func (s *SQLite) Get(ctx context.Context, id string) (*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx, id)
}

// List returns all triggers in stable order.
func (s *SQLite) List(ctx context.Context) ([]*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, `
		SELECT id, name, description, event, conditions, actions, is_active,
		       priority, execution_count, last_triggered_at, version, seq,
		       created_at, updated_at
		FROM triggers
		ORDER BY event, priority, created_at, seq
	`)
}

// ListActive returns the active triggers for an event in evaluation order.
func (s *SQLite) ListActive(ctx context.Context, event string) ([]*rule.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, `
		SELECT id, name, description, event, conditions, actions, is_active,
		       priority, execution_count, last_triggered_at, version, seq,
		       created_at, updated_at
		FROM triggers
		WHERE event = ? AND is_active = 1
		ORDER BY priority, created_at, seq
	`, event)
}

// RecordFiring atomically increments the execution counter.
func (s *SQLite) RecordFiring(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.firingStmt.ExecContext(ctx, at.Unix(), id)
	if err != nil {
		return NewStorageError("sqlite", "record_firing", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "record_firing", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddCondition appends a condition to one of the trigger's condition lists.
func (s *SQLite) AddCondition(ctx context.Context, id string, group rule.GroupKind, c rule.Condition) (*rule.Trigger, error) {
	return s.mutate(ctx, id, func(t *rule.Trigger) error {
		return applyConditionEdit(t, group, &c, 0)
	})
}

// RemoveCondition removes the condition at index from one of the trigger's
// condition lists.
func (s *SQLite) RemoveCondition(ctx context.Context, id string, group rule.GroupKind, index int) (*rule.Trigger, error) {
	return s.mutate(ctx, id, func(t *rule.Trigger) error {
		return applyConditionEdit(t, group, nil, index)
	})
}

// ReorderActions rearranges the trigger's actions.
func (s *SQLite) ReorderActions(ctx context.Context, id string, order []int) (*rule.Trigger, error) {
	return s.mutate(ctx, id, func(t *rule.Trigger) error {
		return reorderActions(t, order)
	})
}

// Close releases any resources held by the store. Close is idempotent.
func (s *SQLite) Close() error {
	s.closeOnce.Do(func() {
		if s.getStmt != nil {
			s.getStmt.Close()
		}
		if s.deleteStmt != nil {
			s.deleteStmt.Close()
		}
		if s.firingStmt != nil {
			s.firingStmt.Close()
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

// mutate reads the trigger, applies fn to it, bumps Version, and writes it
// back under the store lock.
func (s *SQLite) mutate(ctx context.Context, id string, fn func(*rule.Trigger) error) (*rule.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(cur); err != nil {
		return nil, err
	}
	cur.Version++
	cur.UpdatedAt = time.Now()

	if err := s.writeLocked(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *SQLite) getLocked(ctx context.Context, id string) (*rule.Trigger, error) {
	row := s.getStmt.QueryRowContext(ctx, id)
	t, err := scanTrigger(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return t, nil
}

func (s *SQLite) writeLocked(ctx context.Context, t *rule.Trigger) error {
	conditions, actions, err := encodeRule(t)
	if err != nil {
		return err
	}

	var lastTriggered interface{}
	if t.LastTriggeredAt != nil {
		lastTriggered = t.LastTriggeredAt.Unix()
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE triggers SET
			name = ?, description = ?, event = ?, conditions = ?, actions = ?,
			is_active = ?, priority = ?, execution_count = ?,
			last_triggered_at = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Description, t.Event, conditions, actions,
		boolToInt(t.IsActive), t.Priority, t.ExecutionCount,
		lastTriggered, t.Version, t.UpdatedAt.Unix(), t.ID,
	)
	if err != nil {
		return NewStorageError("sqlite", "update", err)
	}
	return nil
}

func (s *SQLite) list(ctx context.Context, query string, args ...interface{}) ([]*rule.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []*rule.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows.Scan)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	return out, nil
}

func encodeRule(t *rule.Trigger) (conditions, actions string, err error) {
	condJSON, err := json.Marshal(t.Conditions)
	if err != nil {
		return "", "", NewStorageError("sqlite", "encode_conditions", err)
	}
	actJSON, err := json.Marshal(t.Actions)
	if err != nil {
		return "", "", NewStorageError("sqlite", "encode_actions", err)
	}
	return string(condJSON), string(actJSON), nil
}

func scanTrigger(scan func(dest ...interface{}) error) (*rule.Trigger, error) {
	var (
		t             rule.Trigger
		description   sql.NullString
		conditions    string
		actions       string
		isActive      int
		lastTriggered sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)

	err := scan(
		&t.ID, &t.Name, &description, &t.Event, &conditions, &actions,
		&isActive, &t.Priority, &t.ExecutionCount, &lastTriggered,
		&t.Version, &t.Seq, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.IsActive = isActive != 0
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	if lastTriggered.Valid {
		at := time.Unix(lastTriggered.Int64, 0)
		t.LastTriggeredAt = &at
	}

	if err := json.Unmarshal([]byte(conditions), &t.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &t.Actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
