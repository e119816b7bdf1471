package rule

import "fmt"

// ActionType represents the type of action a trigger performs on match.
type ActionType string

const (
	ActionSetPriority      ActionType = "set_priority"
	ActionSetStatus        ActionType = "set_status"
	ActionAssignTo         ActionType = "assign_to"
	ActionAddTag           ActionType = "add_tag"
	ActionRemoveTag        ActionType = "remove_tag"
	ActionSendEmail        ActionType = "send_email"
	ActionSendNotification ActionType = "send_notification"
	ActionAddInternalNote  ActionType = "add_internal_note"
	ActionEscalate         ActionType = "escalate"
	ActionTriggerWebhook   ActionType = "trigger_webhook"
	ActionSetCustomField   ActionType = "set_custom_field"
	ActionAddCC            ActionType = "add_cc"
	ActionRemoveCC         ActionType = "remove_cc"
)

// ActionTypes lists every action type the rule language defines, in a
// stable order.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionSetPriority,
		ActionSetStatus,
		ActionAssignTo,
		ActionAddTag,
		ActionRemoveTag,
		ActionSendEmail,
		ActionSendNotification,
		ActionAddInternalNote,
		ActionEscalate,
		ActionTriggerWebhook,
		ActionSetCustomField,
		ActionAddCC,
		ActionRemoveCC,
	}
}

// IsMutation reports whether the action type mutates the record through the
// sink's mutation interface. Non-mutation types dispatch through the sink's
// messaging interface instead.
func (t ActionType) IsMutation() bool {
	switch t {
	case ActionSendEmail, ActionSendNotification, ActionTriggerWebhook:
		return false
	default:
		return true
	}
}

// ActionConfig is the typed payload of an action. It is a tagged union keyed
// by the action's Type: each type reads its own subset of fields, and
// Action.Validate enforces that the required fields for that type are set.
type ActionConfig struct {
	// Value is the target value for set_priority, set_status, assign_to,
	// set_custom_field, and escalate (the escalation target, e.g. a group).
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Tag is the tag name for add_tag and remove_tag.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// Key is the custom field key for set_custom_field.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// To is the recipient for send_email, send_notification, add_cc,
	// and remove_cc.
	To string `json:"to,omitempty" yaml:"to,omitempty"`

	// Subject and Body carry message content for send_email,
	// send_notification, and add_internal_note.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`

	// URL and Payload configure trigger_webhook.
	URL     string         `json:"url,omitempty" yaml:"url,omitempty"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Action is a single side-effecting operation performed when a trigger
// matches. Actions run in list order.
type Action struct {
	Type   ActionType   `json:"type" yaml:"type"`
	Config ActionConfig `json:"config" yaml:"config"`
}

// Validate checks that the action's config carries the fields its type
// requires. The store calls this at save time; the executor repeats the
// check at execution time, since stored triggers may predate a vocabulary
// change.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSetPriority, ActionSetStatus, ActionAssignTo:
		if a.Config.Value == "" {
			return &ConfigError{Type: a.Type, Missing: "value"}
		}

	case ActionEscalate:
		// Escalation target is optional; an empty value escalates to the
		// default escalation group.

	case ActionAddTag, ActionRemoveTag:
		if a.Config.Tag == "" {
			return &ConfigError{Type: a.Type, Missing: "tag"}
		}

	case ActionSetCustomField:
		if a.Config.Key == "" {
			return &ConfigError{Type: a.Type, Missing: "key"}
		}

	case ActionSendEmail:
		if a.Config.To == "" {
			return &ConfigError{Type: a.Type, Missing: "to"}
		}
		if a.Config.Body == "" {
			return &ConfigError{Type: a.Type, Missing: "body"}
		}

	case ActionSendNotification:
		if a.Config.To == "" {
			return &ConfigError{Type: a.Type, Missing: "to"}
		}

	case ActionAddInternalNote:
		if a.Config.Body == "" {
			return &ConfigError{Type: a.Type, Missing: "body"}
		}

	case ActionAddCC, ActionRemoveCC:
		if a.Config.To == "" {
			return &ConfigError{Type: a.Type, Missing: "to"}
		}

	case ActionTriggerWebhook:
		if a.Config.URL == "" {
			return &ConfigError{Type: a.Type, Missing: "url"}
		}

	default:
		return &ConfigError{Type: a.Type, Unknown: true}
	}

	return nil
}

// ConfigError indicates a malformed or unknown action configuration.
// It is a configuration error in the engine's taxonomy: recorded as a
// failed action result, never a crash.
type ConfigError struct {
	Type    ActionType
	Missing string
	Unknown bool
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown action type: %q", e.Type)
	}
	return fmt.Sprintf("action %s: missing required config field %q", e.Type, e.Missing)
}
