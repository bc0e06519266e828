// Package retention enforces the retention horizon on usage records,
// resolved alerts, and idle quota state.
//
// # Retention Policy
//
// The pruner runs one cleanup cycle per invocation:
//
//   - Usage records older than the horizon are dropped from the recorder
//   - Resolved alerts older than the horizon are reaped from the engine
//   - Quota state idle longer than the configured eviction period is freed
//
// Active (unresolved) alerts and in-window quota state are never touched.
//
// # Basic Usage
//
//	pruner := retention.NewPruner(recorder, engine, ledger, &retention.Config{
//	    Horizon:  time.Hour,
//	    Schedule: "@every 10m",
//	})
//
//	scheduler := retention.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer scheduler.Stop()
//
// # Manual Pruning
//
// A cleanup cycle can also be triggered directly:
//
//	pruner.Prune()
//
// # Scheduling
//
// The scheduler accepts standard cron syntax plus the @every shorthand:
//
//   - "@every 10m":  Every 10 minutes (default)
//   - "0 * * * *":   Hourly on the hour
//   - "*/1 * * * *": Every minute (testing only)
//
// If no schedule is configured (empty Schedule), the scheduler does
// nothing and Start() returns immediately without error.
package retention
