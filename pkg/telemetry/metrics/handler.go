package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orbit-erp/triggerkit/pkg/config"
	"orbit-erp/triggerkit/pkg/telemetry/health"
)

// Server exposes a Prometheus registry over HTTP, along with the service's
// health probes when a checker is provided.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics HTTP server for the registry. A non-nil
// checker additionally mounts /healthz and /readyz.
func NewServer(cfg *config.MetricsConfig, registry *prometheus.Registry, checker *health.Checker) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if checker != nil {
		mux.Handle("/healthz", checker.LivenessHandler())
		mux.Handle("/readyz", checker.ReadinessHandler())
	}

	return &Server{
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "metrics.server"),
	}
}

// Start serves the metrics endpoint until Shutdown. It blocks; run it in a
// goroutine.
func (s *Server) Start() error {
	s.logger.Info("metrics server listening", "address", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
