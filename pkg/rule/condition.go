package rule

// Operator represents a comparison operator in a trigger condition.
type Operator string

const (
	OperatorIs          Operator = "is"
	OperatorIsNot       Operator = "is_not"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorChangedTo   Operator = "changed_to"
	OperatorChangedFrom Operator = "changed_from"
)

// Operators lists every operator the rule language defines, in a stable order.
func Operators() []Operator {
	return []Operator{
		OperatorIs,
		OperatorIsNot,
		OperatorContains,
		OperatorNotContains,
		OperatorGreaterThan,
		OperatorLessThan,
		OperatorChangedTo,
		OperatorChangedFrom,
	}
}

// IsNumeric reports whether the operator requires numeric operands.
func (o Operator) IsNumeric() bool {
	return o == OperatorGreaterThan || o == OperatorLessThan
}

// IsChange reports whether the operator compares against the record's
// before/after pair rather than its current value.
func (o Operator) IsChange() bool {
	return o == OperatorChangedTo || o == OperatorChangedFrom
}

// Condition is a single field/operator/value predicate.
//
// Field names come from the injected vocabulary (status, priority, tags, ...).
// A condition on the custom_field pseudo-field additionally carries the
// custom field key in Key.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    Value    `json:"value" yaml:"value"`
}

// ConditionGroup holds the two condition lists of a trigger.
// All must every hold; Any must have at least one hold. Either list may
// be empty, in which case it is vacuously satisfied.
type ConditionGroup struct {
	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

// IsEmpty reports whether the group has no conditions at all.
func (g ConditionGroup) IsEmpty() bool {
	return len(g.All) == 0 && len(g.Any) == 0
}

// Len returns the total number of conditions in the group.
func (g ConditionGroup) Len() int {
	return len(g.All) + len(g.Any)
}

// GroupKind identifies one of a trigger's two condition lists, used by
// the store's condition commands.
type GroupKind string

const (
	GroupAll GroupKind = "all"
	GroupAny GroupKind = "any"
)
