package rule

import (
	"fmt"
	"time"
)

// PriorityUnset marks a trigger whose priority has not been chosen by the
// author. The store replaces it on create with the current trigger count
// for the event, so new triggers run last by default.
const PriorityUnset = -1

// Trigger is a named, user-authored automation rule bound to one event.
//
// Ordering among triggers for the same event is (Priority ascending,
// CreatedAt ascending, Seq ascending); lower priority values evaluate
// first and ties preserve creation order.
type Trigger struct {
	// ID is an opaque identifier, immutable once created.
	ID string `json:"id" yaml:"id"`

	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Event is the single domain event this trigger subscribes to.
	Event string `json:"event" yaml:"event"`

	Conditions ConditionGroup `json:"conditions" yaml:"conditions"`

	// Actions run in list order on match. A trigger with zero actions is
	// legal but inert: it can match, and it still counts a firing.
	Actions []Action `json:"actions,omitempty" yaml:"actions,omitempty"`

	IsActive bool `json:"is_active" yaml:"is_active"`

	// Priority orders evaluation; lower values run first.
	Priority int `json:"priority" yaml:"priority"`

	// ExecutionCount and LastTriggeredAt are mutated only by the engine
	// after a real (non-simulated) firing.
	ExecutionCount  int64      `json:"execution_count" yaml:"-"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty" yaml:"-"`

	// Version is incremented by the store on every update so callers can
	// detect stale reads. Updates are last-write-wins.
	Version int64 `json:"version" yaml:"-"`

	// Seq is assigned by the store at creation and breaks priority ties
	// when CreatedAt timestamps collide.
	Seq int64 `json:"-" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Matchable reports whether the trigger participates in evaluation.
func (t *Trigger) Matchable() bool {
	return t.IsActive
}

// HasConditions reports whether the trigger has any conditions. A trigger
// without conditions matches unconditionally.
func (t *Trigger) HasConditions() bool {
	return !t.Conditions.IsEmpty()
}

// Validate checks structural validity of the trigger definition: a name,
// an event, and save-time-valid action configs. Field and event names are
// checked against the vocabulary by the caller, not here.
func (t *Trigger) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("trigger name is required")
	}
	if t.Event == "" {
		return fmt.Errorf("trigger event is required")
	}
	for i, a := range t.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	for i, c := range append(append([]Condition{}, t.Conditions.All...), t.Conditions.Any...) {
		if c.Field == "" {
			return fmt.Errorf("condition %d: field is required", i)
		}
		if c.Operator == "" {
			return fmt.Errorf("condition %d: operator is required", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the trigger. Stores hand out clones so
// callers cannot mutate stored definitions in place.
func (t *Trigger) Clone() *Trigger {
	c := *t
	c.Conditions.All = append([]Condition(nil), t.Conditions.All...)
	c.Conditions.Any = append([]Condition(nil), t.Conditions.Any...)
	c.Actions = append([]Action(nil), t.Actions...)
	if t.LastTriggeredAt != nil {
		at := *t.LastTriggeredAt
		c.LastTriggeredAt = &at
	}
	return &c
}
