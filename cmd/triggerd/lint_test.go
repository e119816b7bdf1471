package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/rule/vocab"
)

const validTriggersYAML = `triggers:
  - name: Escalate urgent VIP tickets
    event: ticket_created
    conditions:
      all:
        - field: priority
          operator: is
          value: urgent
      any:
        - field: tags
          operator: contains
          value: vip
    actions:
      - type: assign_to
        config:
          value: tier-2
      - type: add_tag
        config:
          tag: escalated
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadTriggerFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "triggers.yaml", validTriggersYAML)

	triggers, err := loadTriggerFile(path)
	if err != nil {
		t.Fatalf("loadTriggerFile() failed: %v", err)
	}
	if len(triggers) != 1 {
		t.Fatalf("Expected 1 trigger, got %d", len(triggers))
	}

	tr := triggers[0]
	if tr.Name != "Escalate urgent VIP tickets" {
		t.Errorf("Unexpected name: %q", tr.Name)
	}
	if !tr.IsActive {
		t.Error("Triggers should default to active")
	}
	if tr.Priority != rule.PriorityUnset {
		t.Errorf("Expected unset priority, got %d", tr.Priority)
	}
	if len(tr.Conditions.All) != 1 || len(tr.Conditions.Any) != 1 {
		t.Errorf("Unexpected condition counts: all=%d any=%d",
			len(tr.Conditions.All), len(tr.Conditions.Any))
	}
	if tr.Conditions.All[0].Value.Str != "urgent" {
		t.Errorf("Unexpected condition value: %+v", tr.Conditions.All[0].Value)
	}
	if len(tr.Actions) != 2 || tr.Actions[0].Type != rule.ActionAssignTo {
		t.Errorf("Unexpected actions: %+v", tr.Actions)
	}
}

func TestLoadTriggerFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "{{{"},
		{"empty", "triggers: []"},
		{"wrong shape", "triggers:\n  - 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.yaml", tt.content)
			if _, err := loadTriggerFile(path); err == nil {
				t.Error("Expected loadTriggerFile to fail")
			}
		})
	}
}

func TestCheckTrigger(t *testing.T) {
	v := vocab.Default()

	base := func() *rule.Trigger {
		return &rule.Trigger{
			Name:     "ok",
			Event:    "ticket_created",
			IsActive: true,
			Conditions: rule.ConditionGroup{
				All: []rule.Condition{
					{Field: "priority", Operator: rule.OperatorIs, Value: rule.StringValue("urgent")},
				},
			},
			Actions: []rule.Action{
				{Type: rule.ActionAddTag, Config: rule.ActionConfig{Tag: "vip"}},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*rule.Trigger)
		wantIssue string
	}{
		{"clean trigger", func(tr *rule.Trigger) {}, ""},
		{"unknown event", func(tr *rule.Trigger) { tr.Event = "order_shipped" }, "unknown event"},
		{"unknown field", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Field = "severity"
		}, "unknown field"},
		{"keyed field without key", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Field = "custom_field"
		}, "requires a key"},
		{"key on plain field", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Key = "region"
		}, "does not take a key"},
		{"numeric operator with string value", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Operator = rule.OperatorGreaterThan
		}, "needs a numeric value"},
		{"unknown operator", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Operator = "matches_regex"
		}, "unknown operator"},
		{"missing value", func(tr *rule.Trigger) {
			tr.Conditions.All[0].Value = rule.Value{}
		}, "missing value"},
		{"unknown action type", func(tr *rule.Trigger) {
			tr.Actions = []rule.Action{{Type: "launch_rocket"}}
		}, "not in vocabulary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := base()
			tt.mutate(tr)
			issues := checkTrigger(tr, v)

			if tt.wantIssue == "" {
				if len(issues) != 0 {
					t.Errorf("Expected no issues, got %v", issues)
				}
				return
			}

			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tt.wantIssue) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected an issue containing %q, got %v", tt.wantIssue, issues)
			}
		})
	}
}
