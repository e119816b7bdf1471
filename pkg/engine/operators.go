package engine

import (
	"fmt"
	"strconv"
	"strings"

	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/rule/vocab"
)

// coerceString renders a snapshot value as a string for equality and
// substring comparisons.
func coerceString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

// coerceNumber parses a snapshot value as a float64 for ordered
// comparisons. Strings are parsed; anything else non-numeric fails.
func coerceNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceList renders a snapshot value as a string list for membership
// comparisons.
func coerceList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := coerceString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A scalar is a one-element list for membership purposes.
		return []string{x}, true
	default:
		return nil, false
	}
}

// display renders a snapshot value for condition outcomes.
func display(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := coerceString(v); ok {
		return s
	}
	if list, ok := coerceList(v); ok {
		return "[" + strings.Join(list, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}

// conditionNumber extracts the numeric operand from a condition literal.
func conditionNumber(v rule.Value) (float64, bool) {
	switch v.Kind {
	case rule.ValueNumber:
		return v.Num, true
	case rule.ValueString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// equalValue compares a snapshot value against a condition literal for the
// is / is_not / changed_to / changed_from operators. Email fields compare
// case-insensitively; numbers compare numerically regardless of their
// lexical form.
func equalValue(actual any, expected rule.Value, fieldType vocab.FieldType) bool {
	switch fieldType {
	case vocab.FieldEmail:
		a, ok := coerceString(actual)
		if !ok {
			return false
		}
		return strings.EqualFold(a, expected.Str)

	case vocab.FieldNumber:
		a, okA := coerceNumber(actual)
		e, okE := conditionNumber(expected)
		if okA && okE {
			return a == e
		}
		// Fall back to string comparison when either side is not numeric.
		s, ok := coerceString(actual)
		return ok && s == expected.String()

	case vocab.FieldList:
		a, okA := coerceList(actual)
		if !okA {
			return false
		}
		e := expected.List
		if expected.Kind != rule.ValueList {
			e = []string{expected.String()}
		}
		return sameMembers(a, e)

	default:
		a, ok := coerceString(actual)
		if !ok {
			return false
		}
		return a == expected.String()
	}
}

// containsValue implements contains for the two shapes it has: substring on
// strings, membership on lists.
func containsValue(actual any, expected rule.Value, fieldType vocab.FieldType) bool {
	if fieldType == vocab.FieldList {
		list, ok := coerceList(actual)
		if !ok {
			return false
		}
		for _, item := range list {
			if item == expected.String() {
				return true
			}
		}
		return false
	}

	a, ok := coerceString(actual)
	if !ok {
		return false
	}
	return strings.Contains(a, expected.String())
}

// sameMembers reports set equality of two string lists, ignoring order and
// duplicates.
func sameMembers(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}
