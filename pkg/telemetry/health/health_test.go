package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestChecker_Liveness verifies the liveness probe always reports ok.
func TestChecker_Liveness(t *testing.T) {
	c := New(time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("liveness status = %d, want 200", rec.Code)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding liveness body: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

// TestChecker_ReadinessAllHealthy verifies 200 when all checks pass.
func TestChecker_ReadinessAllHealthy(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("config", func(ctx context.Context) error { return nil })
	c.RegisterCheck("alert_store", func(ctx context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("readiness status = %d, want 200", rec.Code)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding readiness body: %v", err)
	}
	if status.Status != "ready" {
		t.Errorf("readiness status = %q, want ready", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("readiness check count = %d, want 2", len(status.Checks))
	}
}

// TestChecker_ReadinessDegraded verifies 503 when a check fails.
func TestChecker_ReadinessDegraded(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("config", func(ctx context.Context) error { return nil })
	c.RegisterCheck("alert_store", func(ctx context.Context) error {
		return errors.New("database locked")
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readiness status = %d, want 503", rec.Code)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding readiness body: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("readiness status = %q, want degraded", status.Status)
	}
	if status.Checks["alert_store"].Message != "database locked" {
		t.Errorf("check message = %q, want database locked", status.Checks["alert_store"].Message)
	}
}

// TestChecker_MethodNotAllowed verifies probes reject non-GET methods.
func TestChecker_MethodNotAllowed(t *testing.T) {
	c := New(time.Second)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST liveness status = %d, want 405", rec.Code)
	}
}
