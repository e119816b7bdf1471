// Package history is the append-only execution log of trigger firings.
//
// Every real (non-simulated) firing produces exactly one Entry recording
// which trigger fired, for which event, and how its actions fared. Entries
// are immutable after creation and survive trigger deletion: they snapshot
// the trigger name so the audit view stays meaningful when the definition
// is gone.
//
// # Layers
//
//  1. Storage persists entries (SQLite for deployments, memory for tests)
//  2. Recorder is an optional async appender that decouples Fire latency
//     from log writes
//  3. Sweeper is the cron-scheduled retention enforcement
//
// The engine appends through the Appender interface, which Storage
// satisfies directly (synchronous, errors propagate to Fire's caller as
// infrastructure failures) and Recorder satisfies asynchronously.
package history
