package engine

import (
	"context"
)

// Simulate runs a dry evaluation of event against the snapshot.
//
// Trigger selection, ordering, and condition evaluation are the same code
// paths Fire uses, so a simulation that reports a match is a trigger that
// would fire. Actions are planned instead of dispatched: each one is
// config-validated and recorded, but the sink is never called. Simulate
// writes no execution log entries and mutates no counters.
func (e *Engine) Simulate(ctx context.Context, event string, snap Snapshot) (*SimulationResult, error) {
	result := &SimulationResult{
		Event:    event,
		RecordID: snap.ID(),
	}

	triggers, err := e.store.ListActive(ctx, event)
	if err != nil {
		return nil, err
	}

	for _, t := range triggers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := &TriggerOutcome{
			TriggerID:   t.ID,
			TriggerName: t.Name,
			Priority:    t.Priority,
		}

		matched, conditions := e.evaluator.EvaluateGroup(t.Conditions, snap)
		outcome.Matched = matched
		outcome.Conditions = conditions
		result.Evaluated++

		if matched {
			result.WouldFire++
			for _, a := range t.Actions {
				plan := ActionResult{Type: a.Type, OK: true}
				if err := a.Validate(); err != nil {
					plan.OK = false
					plan.Error = err.Error()
				}
				outcome.Actions = append(outcome.Actions, plan)
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	e.metrics.RecordSimulation(event)

	e.logger.Debug("simulation complete",
		"event", event,
		"record_id", snap.ID(),
		"evaluated", result.Evaluated,
		"would_fire", result.WouldFire,
	)

	return result, nil
}
