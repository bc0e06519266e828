// Saturn is the outbound API governance layer for a multi-tenant ads
// dashboard. It sits between the dashboard backend and a quota-limited
// advertising API, providing:
//   - Per-subject quota enforcement with decaying point balances
//   - Governed call execution with retry, backoff, and throttle feedback
//   - Usage recording with windowed per-subject and system-wide stats
//   - Rule-based alerting with cooldowns and pluggable notification sinks
//
// Usage:
//
//	# Start the ops server and retention scheduler
//	saturn run
//
//	# Start with custom configuration file
//	saturn run --config /path/to/config.yaml
//
//	# Show the effective configuration
//	saturn status
//
//	# Show version information
//	saturn version
package main

func main() {
	Execute()
}
