// Package alerting detects anomalous upstream call patterns and raises
// deduplicated alerts.
//
// The engine subscribes to the usage recorder and evaluates a static
// rule set against each subject's recent window after every recorded
// outcome. A per-{rule, subject, account} cooldown skips rules that
// fired recently, bounding both alert volume and evaluation cost.
//
// Raised alerts fan out through the Dispatcher to pluggable sinks: the
// structured log, a chat webhook, and a durable SQLite history. Sink
// failures are logged and never propagate into the recording path.
package alerting
