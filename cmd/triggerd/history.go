package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"orbit-erp/triggerkit/pkg/cli"
	"orbit-erp/triggerkit/pkg/history"
)

var historyFlags struct {
	db        string
	triggerID string
	event     string
	since     time.Duration
	limit     int
	format    string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the execution log",
	Long: `Query the execution log for past trigger firings.

Each entry records the trigger, the event, the record, and the per-action
results of one firing.

Examples:
  # Last 20 firings
  triggerd history --limit 20

  # Firings of one trigger over the last day
  triggerd history --trigger-id 4f1c9f... --since 24h

  # Firings for one event, as JSON
  triggerd history --event ticket_created --format json`,
	RunE: queryHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFlags.db, "db", "", "execution log database path (default: from config)")
	historyCmd.Flags().StringVar(&historyFlags.triggerID, "trigger-id", "", "filter by trigger ID")
	historyCmd.Flags().StringVar(&historyFlags.event, "event", "", "filter by event name")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only entries newer than this (e.g. 24h)")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 50, "maximum entries to return")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json")
}

func queryHistory(cmd *cobra.Command, args []string) error {
	dbPath := historyFlags.db
	if dbPath == "" {
		cfg, err := loadConfig()
		if err != nil {
			return cli.NewConfigError("", err.Error())
		}
		if cfg.History.Backend != "sqlite" {
			return fmt.Errorf("history querying needs the sqlite backend (configured: %s)", cfg.History.Backend)
		}
		dbPath = cfg.History.SQLitePath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return cli.NewCommandError("history", fmt.Errorf("execution log %q not found", dbPath))
	}

	sqliteCfg := history.DefaultSQLiteConfig()
	sqliteCfg.Path = dbPath
	storage, err := history.NewSQLiteStorage(sqliteCfg)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer storage.Close()

	query := &history.Query{Limit: historyFlags.limit}
	if historyFlags.triggerID != "" {
		query.TriggerID = historyFlags.triggerID
	}
	if historyFlags.event != "" {
		query.Event = historyFlags.event
	}
	if historyFlags.since > 0 {
		since := time.Now().Add(-historyFlags.since)
		query.Since = &since
	}

	ctx := context.Background()
	entries, err := storage.List(ctx, query)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	if historyFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, entries)
	}

	if len(entries) == 0 {
		fmt.Println("No entries")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-20s  %-24s  record=%s  actions=%d  failed=%d\n",
			e.Timestamp.Format(time.RFC3339),
			e.Event,
			e.TriggerName,
			e.RecordID,
			e.ActionsAttempted,
			e.ActionsFailed,
		)
	}
	fmt.Printf("%d entries\n", len(entries))
	return nil
}
