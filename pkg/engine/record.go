package engine

// Snapshot is the read-only view of a record at the moment an event fires.
// The surrounding application builds one per event; the engine never loads
// records itself.
//
// Field and CustomField return the current value; Previous returns the
// value the field held before the event, when the event carries one.
// Update-style events provide before/after pairs; creation-style events
// provide none, so change operators can never hold for them.
type Snapshot interface {
	// ID identifies the record, for audit entries and sink mutations.
	ID() string

	// Field returns the current value of a named field.
	Field(name string) (any, bool)

	// CustomField returns the current value of a custom field by key.
	CustomField(key string) (any, bool)

	// Previous returns the field's value before the event, if the event
	// carries a before/after pair for it. Keyed custom fields are named
	// by their key.
	Previous(name string) (any, bool)
}

// MapSnapshot is a Snapshot backed by plain maps. The application layer and
// the simulator CLI build these from tickets or YAML fixtures.
type MapSnapshot struct {
	RecordID string

	// Fields holds current field values: strings, numbers, bools, or
	// string slices for list fields.
	Fields map[string]any

	// Custom holds custom field values by key.
	Custom map[string]any

	// Before holds prior values for fields the event changed.
	Before map[string]any
}

// ID returns the record identifier.
func (s *MapSnapshot) ID() string {
	return s.RecordID
}

// Field returns the current value of a named field.
func (s *MapSnapshot) Field(name string) (any, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// CustomField returns the current value of a custom field by key.
func (s *MapSnapshot) CustomField(key string) (any, bool) {
	v, ok := s.Custom[key]
	return v, ok
}

// Previous returns the field's value before the event.
func (s *MapSnapshot) Previous(name string) (any, bool) {
	v, ok := s.Before[name]
	return v, ok
}
