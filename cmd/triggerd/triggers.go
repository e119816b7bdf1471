package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"orbit-erp/triggerkit/pkg/engine"
	"orbit-erp/triggerkit/pkg/rule"
)

// triggerFile is the on-disk format for authored trigger definitions.
type triggerFile struct {
	Triggers []*rule.Trigger `yaml:"triggers"`
}

// loadTriggerFile parses a triggers YAML file. Triggers default to active
// unless the file says otherwise; authored files rarely spell it out.
func loadTriggerFile(path string) ([]*rule.Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triggers file %q: %w", path, err)
	}

	var raw struct {
		Triggers []yaml.Node `yaml:"triggers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse triggers file %q: %w", path, err)
	}
	if len(raw.Triggers) == 0 {
		return nil, fmt.Errorf("triggers file %q declares no triggers", path)
	}

	triggers := make([]*rule.Trigger, 0, len(raw.Triggers))
	for i, node := range raw.Triggers {
		t := &rule.Trigger{IsActive: true, Priority: rule.PriorityUnset}
		if err := node.Decode(t); err != nil {
			return nil, fmt.Errorf("trigger %d in %q: %w", i, path, err)
		}
		triggers = append(triggers, t)
	}
	return triggers, nil
}

// snapshotFile is the on-disk format for a record snapshot used by
// simulate: current field values, custom fields, and the pre-change
// values for update events.
type snapshotFile struct {
	RecordID string         `yaml:"record_id"`
	Fields   map[string]any `yaml:"fields"`
	Custom   map[string]any `yaml:"custom,omitempty"`
	Before   map[string]any `yaml:"before,omitempty"`
}

// loadSnapshotFile parses a record snapshot YAML file.
func loadSnapshotFile(path string) (*engine.MapSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file %q: %w", path, err)
	}

	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse record file %q: %w", path, err)
	}
	if f.RecordID == "" {
		return nil, fmt.Errorf("record file %q has no record_id", path)
	}

	return &engine.MapSnapshot{
		RecordID: f.RecordID,
		Fields:   f.Fields,
		Custom:   f.Custom,
		Before:   f.Before,
	}, nil
}
