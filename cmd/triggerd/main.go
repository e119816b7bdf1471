// Triggerd is the trigger automation service of the triggerkit module.
//
// It evaluates user-authored trigger rules against domain events and runs
// their actions, providing:
//   - Event-condition-action rule evaluation with ALL/ANY groups
//   - Ordered, failure-isolated action execution
//   - An append-only execution log with scheduled retention
//   - Dry-run simulation with per-condition explanations
//
// Usage:
//
//	# Start the service with default configuration
//	triggerd run
//
//	# Start with a custom configuration file
//	triggerd run --config /path/to/config.yaml
//
//	# Validate a triggers file
//	triggerd lint --file triggers.yaml
//
//	# Simulate an event against a triggers file
//	triggerd simulate --triggers triggers.yaml --event ticket_created --record ticket.yaml
//
//	# Query the execution log
//	triggerd history --trigger-id 4f1c... --limit 20
//
//	# Show version information
//	triggerd version
package main

func main() {
	Execute()
}
