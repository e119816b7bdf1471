// Package sink defines the interface through which the trigger engine
// performs side effects it does not own: mutating the underlying record
// store and dispatching messages (email, in-app notification, webhook).
//
// The surrounding application implements Sink against its own record
// store and delivery infrastructure. The engine only requires that both
// halves return success or failure without panicking; delivery beyond the
// initial accept is the sink's concern.
//
// The package ships two implementations: Memory, which applies mutations
// to an in-memory record and records every call (used by tests), and
// WebhookDispatcher, an http-based messaging half for webhook delivery.
package sink
