// Package store persists trigger definitions and their runtime counters.
//
// The Store interface covers the full lifecycle of a trigger: create,
// update, delete, activate/deactivate, priority changes, and the
// command-style condition and action edits the authoring surface uses.
// RecordFiring is the engine's write path; it must be atomic under
// concurrent firings of the same trigger.
//
// Two backends exist:
//
//   - Memory: mutex-guarded map, for tests and single-process setups.
//   - SQLite (modernc.org/sqlite): durable single-writer store with WAL.
//
// Both hand out deep copies; callers never share memory with the store.
package store
