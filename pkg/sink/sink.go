package sink

import "context"

// MutationOp is the kind of change a mutation applies to a record field.
type MutationOp string

const (
	// OpSet replaces the field's value.
	OpSet MutationOp = "set"

	// OpAdd adds an element to a list field if not already present.
	// Re-applying the same add yields the same end state.
	OpAdd MutationOp = "add"

	// OpRemove removes an element from a list field if present.
	OpRemove MutationOp = "remove"

	// OpAppend appends an entry to an append-only field such as the
	// internal note thread.
	OpAppend MutationOp = "append"
)

// Mutation is a single field change to apply to a record.
type Mutation struct {
	// Field is the record field to change (status, priority, tags, ...).
	Field string

	// Key selects the concrete custom field when Field is custom_field.
	Key string

	// Value is the new value, the list element, or the appended entry,
	// depending on Op.
	Value string

	Op MutationOp
}

// MessageKind is the delivery channel for a message.
type MessageKind string

const (
	KindEmail        MessageKind = "email"
	KindNotification MessageKind = "notification"
	KindWebhook      MessageKind = "webhook"
)

// Message is an outbound dispatch to the sink's messaging interface.
// Delivery is fire-and-forget: the sink returns the initial accept or
// reject, not a delivery confirmation.
type Message struct {
	Kind    MessageKind
	To      string
	Subject string
	Body    string
	URL     string
	Payload map[string]any
}

// Sink is the abstraction through which the engine performs side effects.
// Both methods report failure with an error return; neither may panic.
// Implementations must tolerate concurrent calls for different records.
type Sink interface {
	// Mutate applies a field change to the record identified by recordID.
	// Mutations must be idempotent for OpSet, OpAdd, and OpRemove.
	Mutate(ctx context.Context, recordID string, m Mutation) error

	// Deliver dispatches a message. A nil return means the message was
	// accepted for delivery, not that it was delivered.
	Deliver(ctx context.Context, msg Message) error
}
