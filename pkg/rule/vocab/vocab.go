package vocab

import (
	"fmt"
	"sync"

	"orbit-erp/triggerkit/pkg/rule"
)

// FieldType declares how condition values against a field are compared.
type FieldType string

const (
	// FieldString compares as a case-sensitive string.
	FieldString FieldType = "string"

	// FieldEmail compares as a case-insensitive string.
	FieldEmail FieldType = "email"

	// FieldNumber compares numerically and is the only type legal for
	// greater_than / less_than conditions.
	FieldNumber FieldType = "number"

	// FieldList is a set of strings; contains tests membership.
	FieldList FieldType = "list"
)

// FieldDef describes one field of the record vocabulary.
type FieldDef struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`

	// Keyed marks the custom_field pseudo-field, whose conditions carry an
	// additional key selecting the concrete custom field.
	Keyed bool `yaml:"keyed,omitempty"`
}

// Vocabulary is one immutable version of the event/field/operator/action
// sets. Construct via Default or load from YAML; consult through a Registry
// when hot reload is needed.
type Vocabulary struct {
	Version     string            `yaml:"version"`
	Events      []string          `yaml:"events"`
	Fields      []FieldDef        `yaml:"fields"`
	ActionTypes []rule.ActionType `yaml:"action_types"`

	fieldsByName map[string]FieldDef
	eventSet     map[string]struct{}
	actionSet    map[rule.ActionType]struct{}
}

// Default returns the vocabulary the helpdesk modules ship with.
func Default() *Vocabulary {
	v := &Vocabulary{
		Version: "1",
		Events: []string{
			"ticket_created",
			"ticket_updated",
			"ticket_assigned",
			"ticket_commented",
			"ticket_reopened",
			"sla_warning",
			"sla_breached",
			"customer_replied",
			"agent_replied",
			"rating_submitted",
		},
		Fields: []FieldDef{
			{Name: "status", Type: FieldString},
			{Name: "priority", Type: FieldString},
			{Name: "assignee", Type: FieldString},
			{Name: "type", Type: FieldString},
			{Name: "channel", Type: FieldString},
			{Name: "tags", Type: FieldList},
			{Name: "subject", Type: FieldString},
			{Name: "requester_email", Type: FieldEmail},
			{Name: "group", Type: FieldString},
			{Name: "custom_field", Type: FieldString, Keyed: true},
		},
		ActionTypes: rule.ActionTypes(),
	}
	v.index()
	return v
}

// index builds the lookup maps. Must be called after any construction or
// unmarshal before the vocabulary is consulted.
func (v *Vocabulary) index() {
	v.fieldsByName = make(map[string]FieldDef, len(v.Fields))
	for _, f := range v.Fields {
		v.fieldsByName[f.Name] = f
	}
	v.eventSet = make(map[string]struct{}, len(v.Events))
	for _, e := range v.Events {
		v.eventSet[e] = struct{}{}
	}
	v.actionSet = make(map[rule.ActionType]struct{}, len(v.ActionTypes))
	for _, a := range v.ActionTypes {
		v.actionSet[a] = struct{}{}
	}
}

// KnowsEvent reports whether the event name is part of the vocabulary.
func (v *Vocabulary) KnowsEvent(event string) bool {
	_, ok := v.eventSet[event]
	return ok
}

// Field returns the definition for a field name.
func (v *Vocabulary) Field(name string) (FieldDef, bool) {
	f, ok := v.fieldsByName[name]
	return f, ok
}

// KnowsAction reports whether the action type is part of the vocabulary.
func (v *Vocabulary) KnowsAction(t rule.ActionType) bool {
	_, ok := v.actionSet[t]
	return ok
}

// Validate checks the vocabulary for internal consistency.
func (v *Vocabulary) Validate() error {
	if len(v.Events) == 0 {
		return fmt.Errorf("vocabulary declares no events")
	}
	if len(v.Fields) == 0 {
		return fmt.Errorf("vocabulary declares no fields")
	}
	for _, f := range v.Fields {
		switch f.Type {
		case FieldString, FieldEmail, FieldNumber, FieldList:
		default:
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}
	for _, a := range v.ActionTypes {
		if (rule.Action{Type: a}).Validate() == nil {
			continue // actions with no required fields validate clean
		}
		if _, ok := knownActionTypes[a]; !ok {
			return fmt.Errorf("unknown action type %q", a)
		}
	}
	return nil
}

var knownActionTypes = func() map[rule.ActionType]struct{} {
	m := make(map[rule.ActionType]struct{})
	for _, t := range rule.ActionTypes() {
		m[t] = struct{}{}
	}
	return m
}()

// Registry holds the active vocabulary and supports atomic replacement on
// hot reload. Reads take a shared lock; Fire-path callers should grab the
// snapshot once per call via Current.
type Registry struct {
	mu      sync.RWMutex
	current *Vocabulary
}

// NewRegistry creates a registry seeded with the given vocabulary, or the
// default vocabulary when nil.
func NewRegistry(v *Vocabulary) *Registry {
	if v == nil {
		v = Default()
	}
	return &Registry{current: v}
}

// Current returns the active vocabulary snapshot.
func (r *Registry) Current() *Vocabulary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Replace swaps in a new vocabulary after validating it.
func (r *Registry) Replace(v *Vocabulary) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("rejecting vocabulary: %w", err)
	}
	r.mu.Lock()
	r.current = v
	r.mu.Unlock()
	return nil
}
