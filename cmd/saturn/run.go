package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"meridian-hq/saturn/pkg/cli"
	"meridian-hq/saturn/pkg/config"
	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/monitor/alerting"
	"meridian-hq/saturn/pkg/monitor/retention"
	"meridian-hq/saturn/pkg/quota"
	"meridian-hq/saturn/pkg/server"
	"meridian-hq/saturn/pkg/telemetry/health"
	"meridian-hq/saturn/pkg/telemetry/logging"
	"meridian-hq/saturn/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the governance service",
	Long: `Start the governance service with the specified configuration.

The service runs the retention scheduler, the configuration watcher, and
the ops HTTP server serving usage stats, alert resolution, health
probes, and Prometheus metrics.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/config.yaml

  # Override listen address
  saturn run --listen 0.0.0.0:8675

  # Validate config without starting the service
  saturn run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Saturn v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	tier, ok := config.TierFor(cfg.Limits.Tier)
	if !ok {
		return cli.NewConfigError("limits.tier", fmt.Sprintf("unknown tier %q", cfg.Limits.Tier))
	}

	// Quota ledger and usage recorder
	ledger := quota.NewLedger(tier)
	recorder := monitor.NewRecorder(monitor.RecorderConfig{
		MaxRecords: cfg.Monitor.MaxRecords,
		Retention:  cfg.Monitor.Retention,
	})
	fmt.Printf("✓ Quota ledger initialized (tier %s, %.0f points)\n", cfg.Limits.Tier, tier.MaxPoints)

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	// Health checks
	checker := health.New(0)
	checker.RegisterCheck("config", func(ctx context.Context) error {
		_, err := config.LoadConfigWithEnvOverrides(cfgFile)
		return err
	})

	// Alerting
	var engine *alerting.Engine
	if cfg.Alerting.Enabled {
		sinks := []alerting.Sink{alerting.NewLogSink()}

		if cfg.Alerting.Webhook.Enabled && cfg.Alerting.Webhook.URL != "" {
			sinks = append(sinks, alerting.NewWebhookSink(
				cfg.Alerting.Webhook.URL, cfg.Alerting.Webhook.Timeout))
		}

		if cfg.Alerting.SQLite.Enabled {
			sqliteSink, err := alerting.NewSQLiteSink(cfg.Alerting.SQLite.Path)
			if err != nil {
				return fmt.Errorf("failed to open alert history database: %w", err)
			}
			defer sqliteSink.Close()
			sinks = append(sinks, sqliteSink)
			checker.RegisterCheck("alert_store", func(ctx context.Context) error {
				_, err := sqliteSink.Count(ctx)
				return err
			})
		}

		dispatcher := alerting.NewDispatcher(sinks, cfg.Alerting.Webhook.Timeout)
		rules := alerting.DefaultRules(cfg.Alerting.FlaggedAccountSubstring)

		var alertMetrics alerting.Metrics
		if collector != nil {
			alertMetrics = collector
		}
		engine = alerting.NewEngine(rules, recorder, dispatcher, alertMetrics)
		recorder.SetObserver(engine.HandleRecord)
		recorder.SetAlertSource(engine)

		fmt.Printf("✓ Alerting initialized (%d rules, %d sinks)\n", len(rules), len(sinks))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention scheduler
	pruner := retention.NewPruner(recorder, engine, ledger, &retention.Config{
		Horizon:  cfg.Monitor.Retention,
		Schedule: cfg.Monitor.CleanupSchedule,
		// Idle quota state is safe to drop once both the decay window
		// and a possible block window have fully elapsed.
		LedgerIdleEviction: tier.DecayWindow + tier.BlockDuration,
	})
	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		slog.Debug("retention scheduler started", "next_run", next)
	}

	// Configuration watcher
	watcher, err := config.NewFileWatcher(&config.FileWatcherConfig{Path: cfgFile}, nil)
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			err := watcher.Watch(ctx, func() error {
				return config.ReloadConfig(cfgFile)
			})
			if err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Ops server
	opts := server.Options{
		Engine:      engine,
		Checker:     checker,
		StatsWindow: cfg.Monitor.StatsWindow,
	}
	if collector != nil {
		opts.Metrics = collector.Handler()
	}
	srv := server.NewServer(&cfg.Server, ledger, recorder, opts)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Stats endpoint: http://%s/api/v1/stats\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}
