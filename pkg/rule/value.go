package rule

import (
	"fmt"
	"strconv"
)

// ValueKind represents the type of a condition literal.
// The rule language has three literal types; which one a condition uses
// depends on its field and operator.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueList   ValueKind = "list"
)

// Value is a typed literal used as the right-hand side of a condition.
// Exactly one of Str, Num, or List is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind `json:"kind" yaml:"kind"`
	Str  string    `json:"str,omitempty" yaml:"str,omitempty"`
	Num  float64   `json:"num,omitempty" yaml:"num,omitempty"`
	List []string  `json:"list,omitempty" yaml:"list,omitempty"`
}

// StringValue returns a string literal.
func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

// NumberValue returns a numeric literal.
func NumberValue(n float64) Value {
	return Value{Kind: ValueNumber, Num: n}
}

// ListValue returns a list literal.
func ListValue(items ...string) Value {
	return Value{Kind: ValueList, List: items}
}

// IsZero reports whether the value carries no literal at all.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// String returns a display representation of the literal.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueList:
		return fmt.Sprintf("%v", v.List)
	default:
		return "<empty>"
	}
}

// UnmarshalYAML decodes a scalar or sequence into a typed Value, so trigger
// files can write `value: urgent`, `value: 5`, or `value: [a, b]` directly.
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var num float64
	if err := unmarshal(&num); err == nil {
		*v = NumberValue(num)
		return nil
	}

	var str string
	if err := unmarshal(&str); err == nil {
		*v = StringValue(str)
		return nil
	}

	var list []string
	if err := unmarshal(&list); err == nil {
		*v = ListValue(list...)
		return nil
	}

	return fmt.Errorf("condition value must be a string, number, or list of strings")
}
