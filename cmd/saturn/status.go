package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"meridian-hq/saturn/pkg/cli"
	"meridian-hq/saturn/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration",
	Long: `Load and validate the configuration, then print the effective
settings after defaults and environment overrides are applied.

Useful for verifying a deployment's tier and alerting setup before
starting the service.`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	tier, ok := config.TierFor(cfg.Limits.Tier)
	if !ok {
		return cli.NewConfigError("limits.tier", fmt.Sprintf("unknown tier %q", cfg.Limits.Tier))
	}

	fmt.Printf("Configuration: %s\n\n", cfgFile)

	fmt.Println("Limits:")
	fmt.Printf("  Tier:            %s\n", cfg.Limits.Tier)
	fmt.Printf("  Max points:      %.0f\n", tier.MaxPoints)
	fmt.Printf("  Decay window:    %s\n", tier.DecayWindow)
	fmt.Printf("  Block duration:  %s\n", tier.BlockDuration)
	fmt.Printf("  Read cost:       %.0f point(s)\n", tier.ReadCost)
	fmt.Printf("  Write cost:      %.0f point(s)\n", tier.WriteCost)
	fmt.Printf("  Max retries:     %d\n", cfg.Limits.MaxRetries)
	fmt.Printf("  Batch headroom:  %.0f%%\n", cfg.Limits.BatchHeadroom*100)
	fmt.Printf("  Backoff cap:     %s\n", cfg.Limits.BackoffCap)

	fmt.Println("\nMonitor:")
	fmt.Printf("  Max records:     %d\n", cfg.Monitor.MaxRecords)
	fmt.Printf("  Retention:       %s\n", cfg.Monitor.Retention)
	fmt.Printf("  Cleanup:         %s\n", cfg.Monitor.CleanupSchedule)
	fmt.Printf("  Stats window:    %s\n", cfg.Monitor.StatsWindow)

	fmt.Println("\nAlerting:")
	fmt.Printf("  Enabled:         %t\n", cfg.Alerting.Enabled)
	if cfg.Alerting.Enabled {
		fmt.Printf("  Webhook:         %t", cfg.Alerting.Webhook.Enabled)
		if cfg.Alerting.Webhook.Enabled {
			fmt.Printf(" (%s)", cfg.Alerting.Webhook.URL)
		}
		fmt.Println()
		fmt.Printf("  SQLite history:  %t", cfg.Alerting.SQLite.Enabled)
		if cfg.Alerting.SQLite.Enabled {
			fmt.Printf(" (%s)", cfg.Alerting.SQLite.Path)
		}
		fmt.Println()
	}

	fmt.Println("\nServer:")
	fmt.Printf("  Listen address:  %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Metrics:         %t\n", cfg.Telemetry.Metrics.Enabled)

	return nil
}
