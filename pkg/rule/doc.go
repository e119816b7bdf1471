// Package rule defines the declarative trigger rule language: triggers,
// condition groups, operators, actions, and typed literal values.
//
// A Trigger binds one domain event to two condition lists (ALL and ANY)
// and an ordered list of actions. The types in this package carry no
// evaluation logic; evaluation and execution live in pkg/engine.
//
// # Matching semantics
//
// A trigger matches a record when every condition in All holds and at
// least one condition in Any holds. An empty list is vacuously true, so
// a trigger with no conditions matches every record for its event.
//
// # Example
//
//	t := rule.Trigger{
//		Name:  "escalate urgent tickets",
//		Event: "ticket_created",
//		Conditions: rule.ConditionGroup{
//			All: []rule.Condition{
//				{Field: "priority", Operator: rule.OperatorIs, Value: rule.StringValue("urgent")},
//			},
//		},
//		Actions: []rule.Action{
//			{Type: rule.ActionSetStatus, Config: rule.ActionConfig{Value: "escalated"}},
//		},
//	}
package rule
