package engine

import (
	"context"
	"fmt"
	"log/slog"

	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/sink"
)

// Executor dispatches trigger actions through the injected sink.
//
// Action configs are validated again at execution time even though the
// store validates them at save time: stored triggers may predate a
// vocabulary change, and the engine must degrade to a recorded failure
// rather than a crash.
type Executor struct {
	sink   sink.Sink
	logger *slog.Logger
}

// NewExecutor creates an executor writing side effects to the given sink.
func NewExecutor(s sink.Sink, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sink:   s,
		logger: logger.With("component", "engine.executor"),
	}
}

// Execute performs one action against the record and returns its result.
// Failures are returned in the result, never as an error: the caller's
// contract is that one bad action cannot stop the rest of the trigger.
func (x *Executor) Execute(ctx context.Context, recordID string, a rule.Action) ActionResult {
	result := ActionResult{Type: a.Type}

	if err := a.Validate(); err != nil {
		result.Error = err.Error()
		x.logger.Warn("action failed config validation",
			"action", string(a.Type),
			"record_id", recordID,
			"error", err,
		)
		return result
	}

	var err error
	if a.Type.IsMutation() {
		err = x.mutate(ctx, recordID, a)
	} else {
		err = x.deliver(ctx, recordID, a)
	}

	if err != nil {
		result.Error = err.Error()
		x.logger.Warn("action failed",
			"action", string(a.Type),
			"record_id", recordID,
			"error", err,
		)
		return result
	}

	result.OK = true
	return result
}

// mutate maps a mutation-style action onto the sink's mutation interface.
// Each mutation completes before the caller moves to the next action of
// the same trigger.
func (x *Executor) mutate(ctx context.Context, recordID string, a rule.Action) error {
	switch a.Type {
	case rule.ActionSetPriority:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "priority", Value: a.Config.Value, Op: sink.OpSet,
		})

	case rule.ActionSetStatus:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "status", Value: a.Config.Value, Op: sink.OpSet,
		})

	case rule.ActionAssignTo:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "assignee", Value: a.Config.Value, Op: sink.OpSet,
		})

	case rule.ActionAddTag:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "tags", Value: a.Config.Tag, Op: sink.OpAdd,
		})

	case rule.ActionRemoveTag:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "tags", Value: a.Config.Tag, Op: sink.OpRemove,
		})

	case rule.ActionAddCC:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "cc", Value: a.Config.To, Op: sink.OpAdd,
		})

	case rule.ActionRemoveCC:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "cc", Value: a.Config.To, Op: sink.OpRemove,
		})

	case rule.ActionSetCustomField:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "custom_field", Key: a.Config.Key, Value: a.Config.Value, Op: sink.OpSet,
		})

	case rule.ActionAddInternalNote:
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "notes", Value: a.Config.Body, Op: sink.OpAppend,
		})

	case rule.ActionEscalate:
		target := a.Config.Value
		if target == "" {
			target = "default"
		}
		if err := x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "escalated_to", Value: target, Op: sink.OpSet,
		}); err != nil {
			return err
		}
		return x.sink.Mutate(ctx, recordID, sink.Mutation{
			Field: "notes", Value: fmt.Sprintf("escalated to %s", target), Op: sink.OpAppend,
		})

	default:
		return &rule.ConfigError{Type: a.Type, Unknown: true}
	}
}

// deliver maps a messaging-style action onto the sink's messaging
// interface. Delivery is fire-and-forget: a nil return means the sink
// accepted the message, not that it arrived.
func (x *Executor) deliver(ctx context.Context, recordID string, a rule.Action) error {
	switch a.Type {
	case rule.ActionSendEmail:
		return x.sink.Deliver(ctx, sink.Message{
			Kind:    sink.KindEmail,
			To:      a.Config.To,
			Subject: a.Config.Subject,
			Body:    a.Config.Body,
		})

	case rule.ActionSendNotification:
		return x.sink.Deliver(ctx, sink.Message{
			Kind:    sink.KindNotification,
			To:      a.Config.To,
			Subject: a.Config.Subject,
			Body:    a.Config.Body,
		})

	case rule.ActionTriggerWebhook:
		// Copy the payload so the stored trigger's config stays untouched.
		payload := make(map[string]any, len(a.Config.Payload)+1)
		for k, v := range a.Config.Payload {
			payload[k] = v
		}
		payload["record_id"] = recordID
		return x.sink.Deliver(ctx, sink.Message{
			Kind:    sink.KindWebhook,
			URL:     a.Config.URL,
			Payload: payload,
		})

	default:
		return &rule.ConfigError{Type: a.Type, Unknown: true}
	}
}
