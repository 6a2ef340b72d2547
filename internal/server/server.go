// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

// Package server provides the status HTTP server: health probes and
// Prometheus metrics. There is no data API; the sync pipeline is headless.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trackbridge/trackbridge/internal/config"
	"github.com/trackbridge/trackbridge/internal/logging"
)

// ReadinessCheck reports whether a dependency is usable. Checks run on every
// /readyz request and must be cheap.
type ReadinessCheck func() error

// Server is the status HTTP server.
type Server struct {
	cfg    config.ServerConfig
	checks map[string]ReadinessCheck
	httpd  *http.Server
}

// New creates the status server. Readiness checks are keyed by dependency
// name and reported individually in the /readyz body.
func New(cfg config.ServerConfig, checks map[string]ReadinessCheck) *Server {
	s := &Server{
		cfg:    cfg,
		checks: checks,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s.httpd = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// Generous limit; these endpoints only serve probes and scrapers.
	r.Use(httprate.LimitByIP(1000, time.Minute))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleHealthz reports liveness: the process is up and serving.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness: all registered dependency checks pass.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	for name, check := range s.checks {
		if err := check(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = err.Error()
		} else {
			body[name] = "ok"
		}
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write status response")
	}
}

// Serve runs the HTTP server until the context is cancelled. It satisfies
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpd.Addr).Msg("Status server listening")
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpd.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("Status server shutdown failed")
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "status-server"
}
