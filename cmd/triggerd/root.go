package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "triggerd",
	Short: "Triggerd - event-condition-action trigger automation service",
	Long: `Triggerd runs user-authored trigger rules against domain events.

A trigger subscribes to one event, declares ALL/ANY condition groups over the
record snapshot, and lists ordered actions to run on match. Triggerd provides:
  - Rule evaluation with typed operators and change detection
  - Ordered, failure-isolated action execution through a sink
  - An append-only execution log with scheduled retention
  - Dry-run simulation with per-condition explanations`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
