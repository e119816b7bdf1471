package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"orbit-erp/triggerkit/pkg/cli"
	"orbit-erp/triggerkit/pkg/config"
	"orbit-erp/triggerkit/pkg/engine"
	"orbit-erp/triggerkit/pkg/history"
	"orbit-erp/triggerkit/pkg/rule/vocab"
	"orbit-erp/triggerkit/pkg/sink"
	"orbit-erp/triggerkit/pkg/store"
	"orbit-erp/triggerkit/pkg/telemetry/health"
	"orbit-erp/triggerkit/pkg/telemetry/logging"
	"orbit-erp/triggerkit/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel      string
	metricsListen string
	triggersFile  string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trigger service",
	Long: `Start the trigger service with the specified configuration.

The service reads newline-delimited JSON events from standard input, fires
each one through the rule engine, and writes one JSON result per event to
standard output. Each input line carries the event name and the record
snapshot:

  {"event": "ticket_created", "record_id": "tkt-1", "fields": {"priority": "urgent"}}

Alongside the event loop the service runs the configured infrastructure:
the trigger store, the execution log with its retention schedule, the
vocabulary watcher, and the Prometheus metrics endpoint.

Examples:
  # Start with default config
  triggerd run

  # Start with custom config
  triggerd run --config /etc/triggerd/config.yaml

  # Import authored triggers into the store on startup
  triggerd run --triggers triggers.yaml

  # Validate config without starting
  triggerd run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.metricsListen, "metrics-listen", "", "override metrics listen address")
	runCmd.Flags().StringVar(&runFlags.triggersFile, "triggers", "", "import triggers from a YAML file on startup")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

// inputEvent is one line of the stdin event stream.
type inputEvent struct {
	Event    string         `json:"event"`
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
	Custom   map[string]any `json:"custom,omitempty"`
	Before   map[string]any `json:"before,omitempty"`
}

// eventResult is the per-event summary written to stdout.
type eventResult struct {
	Event     string `json:"event"`
	RecordID  string `json:"record_id"`
	Evaluated int    `json:"evaluated"`
	Matched   int    `json:"matched"`
	Error     string `json:"error,omitempty"`
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	// Apply flag overrides
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if runFlags.metricsListen != "" {
		cfg.Metrics.ListenAddress = runFlags.metricsListen
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Writer:    os.Stderr,
	})
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Triggerd v%s\n", Version)

	// Trigger store
	triggerStore, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer triggerStore.Close()
	slog.Info("trigger store ready", "backend", cfg.Store.Backend)

	// Execution log, optional async recorder, retention sweeper
	logStorage, err := openHistory(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer logStorage.Close()

	var appender history.Appender = logStorage
	if cfg.History.Async {
		rec := history.NewRecorder(logStorage, &history.RecorderConfig{
			AsyncBuffer:  cfg.History.AsyncBuffer,
			WriteTimeout: cfg.History.WriteTimeout,
		})
		defer rec.Close()
		appender = rec
	}
	slog.Info("execution log ready", "backend", cfg.History.Backend, "async", cfg.History.Async)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if runFlags.triggersFile != "" {
		n, err := importTriggers(ctx, triggerStore, runFlags.triggersFile)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		slog.Info("triggers imported", "path", runFlags.triggersFile, "count", n)
	}

	if cfg.History.Retention.Schedule != "" && cfg.History.Retention.MaxAge > 0 {
		sweeper := history.NewSweeper(logStorage, &history.RetentionConfig{
			MaxAge:   cfg.History.Retention.MaxAge,
			Schedule: cfg.History.Retention.Schedule,
		})
		if err := sweeper.Start(ctx); err != nil {
			slog.Warn("failed to start retention sweeper", "error", err)
		} else {
			defer sweeper.Stop()
			if next := sweeper.NextRun(); next != nil {
				slog.Debug("retention sweeper started", "next_run", next)
			}
		}
	}

	// Vocabulary, optionally hot-reloaded
	registry, err := openVocabulary(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	// Metrics and health probes
	var triggerMetrics *metrics.TriggerMetrics
	if cfg.Metrics.Enabled {
		checker := health.New(0)
		checker.RegisterCheck("store", func(ctx context.Context) error {
			_, err := triggerStore.List(ctx)
			return err
		})
		checker.RegisterCheck("execution_log", func(ctx context.Context) error {
			_, err := logStorage.Count(ctx, nil)
			return err
		})

		promRegistry := prometheus.NewRegistry()
		triggerMetrics = metrics.NewTriggerMetrics(&cfg.Metrics, promRegistry)
		metricsServer := metrics.NewServer(&cfg.Metrics, promRegistry, checker)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(os.Stderr, "✓ Metrics on %s%s\n", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	// Engine with the service sink: mutations land in process, webhook
	// messages go out over HTTP
	eng, err := engine.New(engine.Options{
		Store:   triggerStore,
		Sink:    newServiceSink(cfg.Webhook.Timeout, logger),
		Log:     appender,
		Vocab:   registry,
		Config:  &engine.Config{ActionTimeout: cfg.Engine.ActionTimeout},
		Metrics: triggerMetrics,
		Logger:  logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(os.Stderr, "✓ Reading events from stdin (one JSON object per line)")

	// Cancel the event loop on shutdown signals
	go func() {
		sig := cli.WaitForShutdown()
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	return eventLoop(ctx, eng, os.Stdin, os.Stdout)
}

// eventLoop fires each stdin line through the engine and prints a result
// line per event. Malformed lines are reported and skipped.
func eventLoop(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev inputEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("skipping malformed event line", "error", err)
			continue
		}
		if ev.Event == "" || ev.RecordID == "" {
			slog.Warn("skipping event without event name or record_id")
			continue
		}

		snap := &engine.MapSnapshot{
			RecordID: ev.RecordID,
			Fields:   ev.Fields,
			Custom:   ev.Custom,
			Before:   ev.Before,
		}

		res := eventResult{Event: ev.Event, RecordID: ev.RecordID}
		fireResult, err := eng.Fire(ctx, ev.Event, snap)
		if fireResult != nil {
			res.Evaluated = fireResult.Evaluated
			res.Matched = fireResult.Matched
		}
		if err != nil {
			res.Error = err.Error()
		}
		if err := encoder.Encode(res); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}

// loadConfig loads the configured file, falling back to built-in defaults
// when the default config path does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if cfgFile == "config.yaml" {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file %q not found", cfgFile)
	}
	return config.LoadWithEnvOverrides(cfgFile)
}

// importTriggers loads an authored triggers file and creates each trigger
// in the store, so the daemon can start without a pre-populated database.
func importTriggers(ctx context.Context, s store.Store, path string) (int, error) {
	triggers, err := loadTriggerFile(path)
	if err != nil {
		return 0, err
	}
	for _, t := range triggers {
		if _, err := s.Create(ctx, t); err != nil {
			return 0, fmt.Errorf("failed to import trigger %q: %w", t.Name, err)
		}
	}
	return len(triggers), nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func openHistory(cfg *config.Config) (history.Storage, error) {
	switch cfg.History.Backend {
	case "sqlite":
		sqliteCfg := history.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.History.SQLitePath
		return history.NewSQLiteStorage(sqliteCfg)
	case "memory":
		return history.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.History.Backend)
	}
}

func openVocabulary(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*vocab.Registry, error) {
	if cfg.Vocab.Path == "" {
		return vocab.NewRegistry(nil), nil
	}

	v, err := vocab.Load(cfg.Vocab.Path)
	if err != nil {
		return nil, err
	}
	registry := vocab.NewRegistry(v)

	if cfg.Vocab.Watch {
		watcher := vocab.NewWatcher(cfg.Vocab.Path, registry, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("vocabulary watcher failed", "error", err)
			}
		}()
	}
	return registry, nil
}

// serviceSink routes webhook messages through the HTTP dispatcher and
// applies everything else to an in-process record set seeded per event.
// Embedding applications replace this with their own record backend.
type serviceSink struct {
	*sink.Memory
	webhooks *sink.WebhookDispatcher
}

func newServiceSink(webhookTimeout time.Duration, logger *slog.Logger) *serviceSink {
	return &serviceSink{
		Memory:   sink.NewMemory(),
		webhooks: sink.NewWebhookDispatcher(webhookTimeout, logger),
	}
}

func (s *serviceSink) Mutate(ctx context.Context, recordID string, m sink.Mutation) error {
	if s.Record(recordID) == nil {
		s.Seed(recordID, nil)
	}
	return s.Memory.Mutate(ctx, recordID, m)
}

func (s *serviceSink) Deliver(ctx context.Context, msg sink.Message) error {
	if msg.Kind == sink.KindWebhook {
		return s.webhooks.Deliver(ctx, msg)
	}
	return s.Memory.Deliver(ctx, msg)
}
