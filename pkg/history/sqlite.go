package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
)

// SchemaVersion is the current execution log schema version.
const SchemaVersion = 1

const schema = `
-- Execution log entries, append-only
CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    trigger_id TEXT NOT NULL,
    trigger_name TEXT NOT NULL,
    event TEXT NOT NULL,
    record_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    matched BOOLEAN NOT NULL,
    actions_attempted INTEGER NOT NULL,
    actions_failed INTEGER NOT NULL,
    actions TEXT,
    simulated BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp);
CREATE INDEX IF NOT EXISTS idx_executions_trigger_id ON executions(trigger_id);
CREATE INDEX IF NOT EXISTS idx_executions_event ON executions(event);
`

// SQLiteConfig contains configuration for the SQLite execution log.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/executions.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, enables WAL mode if configured, and
// creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "history.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("execution log storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now')) ON CONFLICT(version) DO NOTHING;`,
		SchemaVersion,
	); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	return nil
}

// Append persists an entry, assigning an ID if absent.
func (s *SQLiteStorage) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	actions, err := json.Marshal(e.Actions)
	if err != nil {
		return NewStorageError("sqlite", "encode_actions", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, trigger_id, trigger_name, event, record_id,
			timestamp, matched, actions_attempted, actions_failed, actions, simulated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TriggerID, e.TriggerName, e.Event, e.RecordID,
		e.Timestamp, e.Matched, e.ActionsAttempted, e.ActionsFailed, string(actions), e.Simulated,
	)
	if err != nil {
		return NewStorageError("sqlite", "append", err)
	}

	return nil
}

// List returns matching entries, newest first.
func (s *SQLiteStorage) List(ctx context.Context, q *Query) ([]*Entry, error) {
	where, args := buildWhere(q)

	query := "SELECT id, trigger_id, trigger_name, event, record_id, timestamp, matched, actions_attempted, actions_failed, actions, simulated FROM executions"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"

	limit := 100
	if q != nil && q.Limit > 0 {
		limit = q.Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if q != nil && q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}

	return entries, nil
}

// ListRecent returns the newest entries up to limit.
func (s *SQLiteStorage) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.List(ctx, &Query{Limit: limit})
}

// Count returns the number of entries matching the query.
func (s *SQLiteStorage) Count(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhere(q)

	query := "SELECT COUNT(*) FROM executions"
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes entries matching the query.
func (s *SQLiteStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhere(q)

	query := "DELETE FROM executions"
	if where != "" {
		query += " WHERE " + where
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func buildWhere(q *Query) (string, []interface{}) {
	if q == nil {
		return "", nil
	}

	var conds []string
	var args []interface{}

	if q.TriggerID != "" {
		conds = append(conds, "trigger_id = ?")
		args = append(args, q.TriggerID)
	}
	if q.Event != "" {
		conds = append(conds, "event = ?")
		args = append(args, q.Event)
	}
	if q.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, *q.Until)
	}

	where := ""
	for i, c := range conds {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var e Entry
	var recordID sql.NullString
	var actions string

	err := rows.Scan(
		&e.ID, &e.TriggerID, &e.TriggerName, &e.Event, &recordID,
		&e.Timestamp, &e.Matched, &e.ActionsAttempted, &e.ActionsFailed, &actions, &e.Simulated,
	)
	if err != nil {
		return nil, err
	}

	if recordID.Valid {
		e.RecordID = recordID.String
	}
	if actions != "" {
		if err := json.Unmarshal([]byte(actions), &e.Actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	}

	return &e, nil
}
