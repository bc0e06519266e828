package logging

import (
	"bytes"
	"strings"
	"testing"

	"meridian-hq/saturn/pkg/config"
)

// TestNew_Levels verifies level parsing and filtering.
func TestNew_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"}, buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info entry appeared despite warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn entry missing from output")
	}
}

// TestNew_InvalidConfig verifies bad levels and formats are rejected.
func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Error("New() accepted invalid level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("New() accepted invalid format")
	}
}

// TestNew_JSONFormat verifies the json handler is selected.
func TestNew_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("hello", "subject_id", "user-1")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected json output, got %q", out)
	}
}

// TestRedaction verifies credential attributes never reach the output.
func TestRedaction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("credential refreshed",
		"subject_id", "user-1",
		"access_token", "EAABsbCS1iHgBO...",
	)

	out := buf.String()
	if strings.Contains(out, "EAABsbCS1iHgBO") {
		t.Error("access token value leaked into log output")
	}
	if !strings.Contains(out, redactedValue) {
		t.Error("expected redaction marker in log output")
	}
	if !strings.Contains(out, "user-1") {
		t.Error("non-credential attribute was dropped")
	}
}
