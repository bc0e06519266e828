// Package cli provides shared helpers for the saturn command line:
// user-facing error types and signal handling for graceful shutdown.
package cli
