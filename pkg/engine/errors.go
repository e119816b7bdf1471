package engine

import (
	"errors"
	"fmt"

	"orbit-erp/triggerkit/pkg/rule"
)

// ErrNoStore indicates the engine was constructed without a trigger store.
var ErrNoStore = errors.New("engine requires a trigger store")

// ErrNoSink indicates the engine was constructed without a sink.
var ErrNoSink = errors.New("engine requires a sink")

// TypeMismatchError indicates a numeric comparison against a value that
// could not be coerced to a number. The condition evaluates false and the
// mismatch is recorded on the outcome; the firing continues.
type TypeMismatchError struct {
	Field    string
	Operator rule.Operator
	Value    string
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("condition %s %s: value %q is not numeric", e.Field, e.Operator, e.Value)
}

// UnknownFieldError indicates a condition referenced a field the active
// vocabulary does not define. The condition evaluates false with a warning.
type UnknownFieldError struct {
	Field string
}

// Error returns the error message.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// UnknownOperatorError indicates a condition used an operator the engine
// does not implement. The condition evaluates false with a warning.
type UnknownOperatorError struct {
	Operator rule.Operator
}

// Error returns the error message.
func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// LogError wraps an execution log failure. The engine treats log failures
// as infrastructure errors: an unwritable audit trail aborts Fire.
type LogError struct {
	TriggerID string
	Cause     error
}

// Error returns the error message.
func (e *LogError) Error() string {
	return fmt.Sprintf("execution log write for trigger %s failed: %v", e.TriggerID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LogError) Unwrap() error {
	return e.Cause
}

// CounterError wraps a trigger store failure while recording a firing.
type CounterError struct {
	TriggerID string
	Cause     error
}

// Error returns the error message.
func (e *CounterError) Error() string {
	return fmt.Sprintf("recording firing of trigger %s failed: %v", e.TriggerID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CounterError) Unwrap() error {
	return e.Cause
}
