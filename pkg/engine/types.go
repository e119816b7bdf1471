package engine

import (
	"time"

	"orbit-erp/triggerkit/pkg/rule"
)

// ConditionOutcome explains how one condition evaluated. Simulate returns
// these so rule authors can see exactly why a condition held or failed;
// Fire collects them for debug logging.
type ConditionOutcome struct {
	// Group says which list the condition came from (all / any).
	Group rule.GroupKind `json:"group"`

	Field    string        `json:"field"`
	Key      string        `json:"key,omitempty"`
	Operator rule.Operator `json:"operator"`

	// Expected is the display form of the condition's literal; Actual is
	// the display form of the snapshot value it was compared against.
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`

	// Holds reports whether the condition matched.
	Holds bool `json:"holds"`

	// Error carries the rule-error reason when the condition evaluated
	// false for a reason other than an honest comparison: a type mismatch,
	// an unknown field, or an unknown operator.
	Error string `json:"error,omitempty"`

	// TypeMismatch distinguishes a numeric comparison against a
	// non-numeric operand from a condition that is simply false.
	TypeMismatch bool `json:"type_mismatch,omitempty"`
}

// ActionResult is the outcome of one executed (or, under simulation,
// planned) action.
type ActionResult struct {
	Type rule.ActionType `json:"type"`

	// OK is true when the sink accepted the action; under simulation it is
	// true when the action would be dispatched.
	OK bool `json:"ok"`

	// Error explains a failure or, under simulation, a config error that
	// would prevent dispatch.
	Error string `json:"error,omitempty"`
}

// TriggerOutcome is the result of evaluating one trigger against a
// snapshot.
type TriggerOutcome struct {
	TriggerID   string `json:"trigger_id"`
	TriggerName string `json:"trigger_name"`
	Priority    int    `json:"priority"`

	Matched bool `json:"matched"`

	// Conditions holds per-condition explanations in evaluation order.
	Conditions []ConditionOutcome `json:"conditions,omitempty"`

	// Actions holds per-action results; empty when the trigger did not
	// match.
	Actions []ActionResult `json:"actions,omitempty"`
}

// ActionsFailed counts the failed actions in the outcome.
func (o *TriggerOutcome) ActionsFailed() int {
	n := 0
	for _, a := range o.Actions {
		if !a.OK {
			n++
		}
	}
	return n
}

// FireResult summarizes one Fire call.
type FireResult struct {
	Event    string `json:"event"`
	RecordID string `json:"record_id"`

	// Evaluated counts the triggers evaluated; Matched counts those that
	// fired.
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`

	Outcomes []*TriggerOutcome `json:"outcomes,omitempty"`

	Duration time.Duration `json:"duration"`
}

// SimulationResult summarizes one Simulate call. Outcomes carry planned
// actions rather than executed ones.
type SimulationResult struct {
	Event    string `json:"event"`
	RecordID string `json:"record_id"`

	Evaluated int `json:"evaluated"`

	// WouldFire counts the triggers that would have matched.
	WouldFire int `json:"would_fire"`

	Outcomes []*TriggerOutcome `json:"outcomes,omitempty"`
}
