// Package server provides the ops HTTP server: usage stats, alert
// resolution, health probes, and the metrics endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"meridian-hq/saturn/pkg/config"
	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/monitor/alerting"
	"meridian-hq/saturn/pkg/quota"
	"meridian-hq/saturn/pkg/telemetry/health"
)

// Server is the ops HTTP server. It exposes the recorder's stats, the
// ledger's quota status, and alert resolution to the dashboard backend,
// plus health probes and Prometheus metrics for operators.
type Server struct {
	config      *config.ServerConfig
	ledger      *quota.Ledger
	recorder    *monitor.Recorder
	engine      *alerting.Engine
	checker     *health.Checker
	metrics     http.Handler
	statsWindow time.Duration

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	logger       *slog.Logger
}

// Options configures optional server collaborators.
type Options struct {
	// Engine enables the alert resolution endpoint and alert data in
	// stats responses. May be nil when alerting is disabled.
	Engine *alerting.Engine

	// Metrics is the Prometheus handler mounted at /metrics. May be
	// nil when metrics are disabled.
	Metrics http.Handler

	// Checker serves the readiness probe. A fresh checker with no
	// registered checks is used when nil.
	Checker *health.Checker

	// StatsWindow is the default aggregation window for stats
	// endpoints when the request does not specify one. Zero means 1h.
	StatsWindow time.Duration
}

// NewServer creates an ops server over the given ledger and recorder.
func NewServer(cfg *config.ServerConfig, ledger *quota.Ledger, recorder *monitor.Recorder, opts Options) *Server {
	checker := opts.Checker
	if checker == nil {
		checker = health.New(0)
	}
	window := opts.StatsWindow
	if window <= 0 {
		window = time.Hour
	}
	return &Server{
		config:      cfg,
		ledger:      ledger,
		recorder:    recorder,
		engine:      opts.Engine,
		checker:     checker,
		metrics:     opts.Metrics,
		statsWindow: window,
		logger:      slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting ops server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("ops server stopped")
	})

	return shutdownErr
}

// Handler returns the configured HTTP handler with the full middleware
// chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/stats", s.handleSystemStats)
	mux.HandleFunc("/api/v1/subjects/stats", s.handleSubjectStats)
	mux.HandleFunc("/api/v1/alerts/resolve", s.handleResolveAlert)
	mux.Handle("/healthz", s.checker.LivenessHandler())
	mux.Handle("/readyz", s.checker.ReadinessHandler())

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
