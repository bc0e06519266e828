package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"meridian-hq/saturn/pkg/config"
)

// tokenAttrs are attribute keys whose values are never written to logs.
// Access tokens for the upstream ads API are credentials.
var tokenAttrs = map[string]bool{
	"access_token": true,
	"token":        true,
	"api_key":      true,
}

const redactedValue = "[REDACTED]"

// New creates a slog.Logger from the logging configuration. The writer
// defaults to os.Stdout when nil.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactTokens,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return slog.New(handler), nil
}

// Setup creates a logger from the configuration and installs it as the
// process-wide default.
func Setup(cfg config.LoggingConfig) error {
	logger, err := New(cfg, nil)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// redactTokens replaces credential attribute values before they reach
// the handler output.
func redactTokens(_ []string, a slog.Attr) slog.Attr {
	if tokenAttrs[a.Key] {
		a.Value = slog.StringValue(redactedValue)
	}
	return a
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
