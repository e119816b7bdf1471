package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orbit-erp/triggerkit/pkg/cli"
	"orbit-erp/triggerkit/pkg/engine"
	"orbit-erp/triggerkit/pkg/rule/vocab"
	"orbit-erp/triggerkit/pkg/sink"
	"orbit-erp/triggerkit/pkg/store"
	"orbit-erp/triggerkit/pkg/telemetry/logging"
)

var simulateFlags struct {
	triggersPath string
	recordPath   string
	event        string
	vocabPath    string
	format       string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run an event against a triggers file",
	Long: `Simulate an event against a triggers file without executing actions.

Simulation uses the same selection and evaluation path as a real firing, so
a reported match is a trigger that would fire. For every condition the
output explains the comparison: field, operator, expected and actual value,
and whether it held. Matched triggers list the actions they would run.
Nothing is executed, logged, or counted.

Examples:
  # Simulate a ticket_created event
  triggerd simulate --triggers triggers.yaml --event ticket_created --record ticket.yaml

  # JSON output
  triggerd simulate --triggers triggers.yaml --event ticket_created --record ticket.yaml --format json`,
	RunE: simulateEvent,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateFlags.triggersPath, "triggers", "t", "", "triggers file (required)")
	simulateCmd.Flags().StringVarP(&simulateFlags.recordPath, "record", "r", "", "record snapshot file (required)")
	simulateCmd.Flags().StringVarP(&simulateFlags.event, "event", "e", "", "event name (required)")
	simulateCmd.Flags().StringVar(&simulateFlags.vocabPath, "vocabulary", "", "vocabulary file (default: built-in)")
	simulateCmd.Flags().StringVar(&simulateFlags.format, "format", "text", "output format: text, json")

	simulateCmd.MarkFlagRequired("triggers")
	simulateCmd.MarkFlagRequired("record")
	simulateCmd.MarkFlagRequired("event")
}

func simulateEvent(cmd *cobra.Command, args []string) error {
	triggers, err := loadTriggerFile(simulateFlags.triggersPath)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	snap, err := loadSnapshotFile(simulateFlags.recordPath)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	registry := vocab.NewRegistry(nil)
	if simulateFlags.vocabPath != "" {
		v, err := vocab.Load(simulateFlags.vocabPath)
		if err != nil {
			return cli.NewCommandError("simulate", err)
		}
		registry = vocab.NewRegistry(v)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "text", Writer: os.Stderr})
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	ctx := context.Background()
	memStore := store.NewMemory()
	for _, t := range triggers {
		if _, err := memStore.Create(ctx, t); err != nil {
			return cli.NewCommandError("simulate", fmt.Errorf("trigger %q: %w", t.Name, err))
		}
	}

	eng, err := engine.New(engine.Options{
		Store:  memStore,
		Sink:   sink.NewMemory(),
		Vocab:  registry,
		Logger: logger,
	})
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	result, err := eng.Simulate(ctx, simulateFlags.event, snap)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	if simulateFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}

	printSimulation(result)
	return nil
}

func printSimulation(result *engine.SimulationResult) {
	fmt.Printf("Event %s on record %s: %d trigger(s) evaluated, %d would fire\n\n",
		result.Event, result.RecordID, result.Evaluated, result.WouldFire)

	for _, outcome := range result.Outcomes {
		marker := "✗"
		if outcome.Matched {
			marker = "✓"
		}
		fmt.Printf("%s %s (priority %d)\n", marker, outcome.TriggerName, outcome.Priority)

		for _, c := range outcome.Conditions {
			held := "does not hold"
			if c.Holds {
				held = "holds"
			}
			field := c.Field
			if c.Key != "" {
				field = fmt.Sprintf("%s[%s]", c.Field, c.Key)
			}
			fmt.Printf("    [%s] %s %s %q: %s (actual: %q)",
				c.Group, field, c.Operator, c.Expected, held, c.Actual)
			if c.Error != "" {
				fmt.Printf(" (%s)", c.Error)
			}
			fmt.Println()
		}

		if outcome.Matched {
			for _, a := range outcome.Actions {
				if a.OK {
					fmt.Printf("    would run: %s\n", a.Type)
				} else {
					fmt.Printf("    would fail: %s (%s)\n", a.Type, a.Error)
				}
			}
		}
		fmt.Println()
	}
}
