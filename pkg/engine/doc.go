// Package engine evaluates triggers against record snapshots and executes
// their actions.
//
// # Architecture
//
// The engine is composed of focused components:
//
//   - Evaluator: decides whether a condition group holds for a snapshot,
//     producing per-condition outcomes for the audit trail.
//   - Executor: dispatches a trigger's actions through the injected Sink.
//   - Engine: orchestrates Fire. It selects active triggers for an event
//     in priority order, then evaluates, executes, counts, and logs.
//   - Simulator: Simulate runs the identical selection and evaluation path
//     but records planned actions instead of dispatching them, writes no
//     log entries, and mutates no counters.
//
// # Error taxonomy
//
// Three kinds of failure flow through the engine:
//
//   - Rule errors (type mismatches, unknown fields or operators) make the
//     condition evaluate false and are recorded on the outcome; they never
//     abort the firing.
//   - Action errors are recorded per action; a failed action never stops
//     later actions or later triggers.
//   - Infrastructure errors (trigger store or execution log unavailable)
//     are the only errors Fire returns.
package engine
