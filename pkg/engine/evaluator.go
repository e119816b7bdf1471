package engine

import (
	"log/slog"

	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/rule/vocab"
)

// Evaluator decides whether condition groups hold for a snapshot. It is
// stateless apart from the vocabulary registry and safe for concurrent use.
type Evaluator struct {
	vocab  *vocab.Registry
	logger *slog.Logger
}

// NewEvaluator creates an evaluator consulting the given vocabulary
// registry. A nil registry falls back to the built-in default vocabulary.
func NewEvaluator(registry *vocab.Registry, logger *slog.Logger) *Evaluator {
	if registry == nil {
		registry = vocab.NewRegistry(vocab.Default())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		vocab:  registry,
		logger: logger.With("component", "engine.evaluator"),
	}
}

// EvaluateGroup evaluates a trigger's condition group against a snapshot.
//
// The group holds iff every condition in all holds (vacuously true when
// empty) and at least one condition in any holds (vacuously true when
// empty). A trigger with no conditions at all therefore always matches.
//
// Every condition is evaluated even after the outcome is decided, so the
// returned outcomes explain the full group to rule authors.
func (e *Evaluator) EvaluateGroup(group rule.ConditionGroup, snap Snapshot) (bool, []ConditionOutcome) {
	v := e.vocab.Current()

	outcomes := make([]ConditionOutcome, 0, group.Len())

	allHold := true
	for _, c := range group.All {
		o := e.evaluate(v, rule.GroupAll, c, snap)
		outcomes = append(outcomes, o)
		if !o.Holds {
			allHold = false
		}
	}

	anyHolds := len(group.Any) == 0
	for _, c := range group.Any {
		o := e.evaluate(v, rule.GroupAny, c, snap)
		outcomes = append(outcomes, o)
		if o.Holds {
			anyHolds = true
		}
	}

	return allHold && anyHolds, outcomes
}

// EvaluateCondition evaluates a single condition against a snapshot using
// the active vocabulary.
func (e *Evaluator) EvaluateCondition(c rule.Condition, snap Snapshot) ConditionOutcome {
	return e.evaluate(e.vocab.Current(), rule.GroupAll, c, snap)
}

func (e *Evaluator) evaluate(v *vocab.Vocabulary, group rule.GroupKind, c rule.Condition, snap Snapshot) ConditionOutcome {
	outcome := ConditionOutcome{
		Group:    group,
		Field:    c.Field,
		Key:      c.Key,
		Operator: c.Operator,
		Expected: c.Value.String(),
	}

	def, known := v.Field(c.Field)
	if !known {
		outcome.Error = (&UnknownFieldError{Field: c.Field}).Error()
		e.logger.Warn("condition references unknown field",
			"field", c.Field,
			"operator", string(c.Operator),
		)
		return outcome
	}

	if c.Operator.IsChange() {
		return e.evaluateChange(def, c, snap, outcome)
	}

	actual, present := e.lookup(def, c, snap)
	outcome.Actual = display(actual)

	switch c.Operator {
	case rule.OperatorIs:
		outcome.Holds = present && equalValue(actual, c.Value, def.Type)

	case rule.OperatorIsNot:
		// An absent field is not the expected value.
		outcome.Holds = !present || !equalValue(actual, c.Value, def.Type)

	case rule.OperatorContains:
		outcome.Holds = present && containsValue(actual, c.Value, def.Type)

	case rule.OperatorNotContains:
		outcome.Holds = !present || !containsValue(actual, c.Value, def.Type)

	case rule.OperatorGreaterThan, rule.OperatorLessThan:
		e.evaluateNumeric(c, actual, present, &outcome)

	default:
		outcome.Error = (&UnknownOperatorError{Operator: c.Operator}).Error()
		e.logger.Warn("condition uses unknown operator",
			"field", c.Field,
			"operator", string(c.Operator),
		)
	}

	return outcome
}

// evaluateNumeric handles greater_than / less_than. A non-numeric operand
// on either side records a type mismatch: the condition is false, but the
// outcome distinguishes the mismatch from an honest comparison.
func (e *Evaluator) evaluateNumeric(c rule.Condition, actual any, present bool, outcome *ConditionOutcome) {
	if !present {
		return
	}

	a, okActual := coerceNumber(actual)
	if !okActual {
		outcome.TypeMismatch = true
		outcome.Error = (&TypeMismatchError{Field: c.Field, Operator: c.Operator, Value: display(actual)}).Error()
		e.logger.Warn("numeric comparison against non-numeric value",
			"field", c.Field,
			"operator", string(c.Operator),
			"actual", display(actual),
		)
		return
	}

	exp, okExpected := conditionNumber(c.Value)
	if !okExpected {
		outcome.TypeMismatch = true
		outcome.Error = (&TypeMismatchError{Field: c.Field, Operator: c.Operator, Value: c.Value.String()}).Error()
		e.logger.Warn("numeric comparison against non-numeric literal",
			"field", c.Field,
			"operator", string(c.Operator),
			"expected", c.Value.String(),
		)
		return
	}

	if c.Operator == rule.OperatorGreaterThan {
		outcome.Holds = a > exp
	} else {
		outcome.Holds = a < exp
	}
}

// evaluateChange handles changed_to / changed_from. Both need the snapshot
// to carry a before/after pair for the field; without one (creation-style
// events) the condition evaluates false.
func (e *Evaluator) evaluateChange(def vocab.FieldDef, c rule.Condition, snap Snapshot, outcome ConditionOutcome) ConditionOutcome {
	// Keyed fields carry their before values per key, not under the
	// pseudo-field name.
	name := c.Field
	if def.Keyed {
		name = c.Key
	}
	before, hasBefore := snap.Previous(name)
	after, hasAfter := e.lookup(def, c, snap)
	outcome.Actual = display(after)

	if !hasBefore || !hasAfter {
		return outcome
	}

	beforeStr := display(before)
	afterStr := display(after)
	if beforeStr == afterStr {
		// The field did not change during this event.
		return outcome
	}

	switch c.Operator {
	case rule.OperatorChangedTo:
		outcome.Holds = equalValue(after, c.Value, def.Type)
	case rule.OperatorChangedFrom:
		outcome.Holds = equalValue(before, c.Value, def.Type)
	}

	return outcome
}

// lookup resolves a condition's field on the snapshot, routing keyed fields
// through the custom field accessor.
func (e *Evaluator) lookup(def vocab.FieldDef, c rule.Condition, snap Snapshot) (any, bool) {
	if def.Keyed {
		return snap.CustomField(c.Key)
	}
	return snap.Field(c.Field)
}
