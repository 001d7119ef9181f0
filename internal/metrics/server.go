package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether the served ledger is usable. A nil check
// always reports healthy.
type HealthCheck func() error

// Server exposes Prometheus metrics and a ledger health endpoint.
type Server struct {
	httpServer *http.Server
	check      HealthCheck
}

func NewServer(addr string, check HealthCheck) *Server {
	s := &Server{check: check}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.health)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if s.check != nil {
		if err := s.check(); err != nil {
			slog.Warn("health check failed", "error", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens in the background. Listen failures after Start returns are
// only logged.
func (s *Server) Start() error {
	slog.Info("metrics server starting", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown error", "error", err)
	}
	slog.Info("metrics server stopped")
}
