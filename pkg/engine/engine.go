package engine

import (
	"context"
	"log/slog"
	"time"

	"orbit-erp/triggerkit/pkg/history"
	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/rule/vocab"
	"orbit-erp/triggerkit/pkg/sink"
	"orbit-erp/triggerkit/pkg/store"
	"orbit-erp/triggerkit/pkg/telemetry/metrics"
)

// Engine fires events against the stored triggers.
type Engine struct {
	store     store.Store
	log       history.Appender
	evaluator *Evaluator
	executor  *Executor
	config    *Config
	metrics   *metrics.TriggerMetrics
	logger    *slog.Logger
}

// Options carries the engine's dependencies. Store and Sink are required;
// everything else has a working default.
type Options struct {
	// Store is the trigger store the engine reads and counts against.
	Store store.Store

	// Sink receives the side effects of matched triggers.
	Sink sink.Sink

	// Log receives one execution entry per matched trigger. Nil disables
	// audit logging; deployments that require the audit trail pass a
	// synchronous history.Storage so log failures abort the firing.
	Log history.Appender

	// Vocab is the vocabulary registry; nil uses the built-in default.
	Vocab *vocab.Registry

	// Config tunes evaluation; nil uses DefaultConfig.
	Config *Config

	// Metrics receives counters; nil disables them.
	Metrics *metrics.TriggerMetrics

	// Logger is the structured logger; nil uses slog.Default.
	Logger *slog.Logger
}

// New creates an engine from the options.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Sink == nil {
		return nil, ErrNoSink
	}
	if opts.Config == nil {
		opts.Config = DefaultConfig()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:     opts.Store,
		log:       opts.Log,
		evaluator: NewEvaluator(opts.Vocab, logger),
		executor:  NewExecutor(opts.Sink, logger),
		config:    opts.Config,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "engine"),
	}, nil
}

// Fire evaluates every active trigger subscribed to event against the
// snapshot, in priority order, executing the actions of each match.
//
// A failed action is recorded on the outcome and never stops later actions
// or later triggers. For every matched trigger the engine increments its
// execution counter and appends one execution log entry; failures of
// either are infrastructure errors and abort the call. Context
// cancellation stops before the next trigger; completed evaluations are
// kept in the returned result alongside the context error.
func (e *Engine) Fire(ctx context.Context, event string, snap Snapshot) (*FireResult, error) {
	start := time.Now()

	result := &FireResult{
		Event:    event,
		RecordID: snap.ID(),
	}

	triggers, err := e.store.ListActive(ctx, event)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("firing event",
		"event", event,
		"record_id", snap.ID(),
		"candidate_triggers", len(triggers),
	)

	for _, t := range triggers {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		outcome := e.fireOne(ctx, t, event, snap)
		result.Evaluated++
		result.Outcomes = append(result.Outcomes, outcome)
		e.metrics.RecordEvaluation(event)

		if !outcome.Matched {
			e.metrics.RecordMiss(t.ID)
			continue
		}
		e.metrics.RecordHit(t.ID)
		result.Matched++

		now := time.Now()
		if err := e.store.RecordFiring(ctx, t.ID, now); err != nil {
			result.Duration = time.Since(start)
			return result, &CounterError{TriggerID: t.ID, Cause: err}
		}

		if e.log != nil {
			entry := &history.Entry{
				TriggerID:        t.ID,
				TriggerName:      t.Name,
				Event:            event,
				RecordID:         snap.ID(),
				Timestamp:        now,
				Matched:          true,
				ActionsAttempted: len(outcome.Actions),
				ActionsFailed:    outcome.ActionsFailed(),
				Actions:          actionRecords(outcome.Actions),
			}
			if err := e.log.Append(ctx, entry); err != nil {
				result.Duration = time.Since(start)
				return result, &LogError{TriggerID: t.ID, Cause: err}
			}
		}

		e.logger.Info("trigger fired",
			"trigger_id", t.ID,
			"trigger_name", t.Name,
			"event", event,
			"record_id", snap.ID(),
			"actions_attempted", len(outcome.Actions),
			"actions_failed", outcome.ActionsFailed(),
		)
	}

	result.Duration = time.Since(start)
	e.metrics.ObserveFire(event, result.Duration)
	return result, nil
}

// fireOne evaluates one trigger and, on match, executes its actions.
func (e *Engine) fireOne(ctx context.Context, t *rule.Trigger, event string, snap Snapshot) *TriggerOutcome {
	outcome := &TriggerOutcome{
		TriggerID:   t.ID,
		TriggerName: t.Name,
		Priority:    t.Priority,
	}

	matched, conditions := e.evaluator.EvaluateGroup(t.Conditions, snap)
	outcome.Matched = matched
	outcome.Conditions = conditions
	if !matched {
		return outcome
	}

	for _, a := range t.Actions {
		actionCtx := ctx
		var cancel context.CancelFunc
		if e.config.ActionTimeout > 0 {
			actionCtx, cancel = context.WithTimeout(ctx, e.config.ActionTimeout)
		}

		res := e.executor.Execute(actionCtx, snap.ID(), a)
		if cancel != nil {
			cancel()
		}

		outcome.Actions = append(outcome.Actions, res)
		e.metrics.RecordAction(string(a.Type), res.OK)
	}

	return outcome
}

func actionRecords(results []ActionResult) []history.ActionRecord {
	records := make([]history.ActionRecord, 0, len(results))
	for _, r := range results {
		records = append(records, history.ActionRecord{
			Type:   string(r.Type),
			OK:     r.OK,
			Reason: r.Error,
		})
	}
	return records
}
