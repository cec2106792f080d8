// Package metrics exposes the Prometheus metrics of vktop.
// All metrics are defined in their respective packages (vkapi, ratelimit,
// pagination) via promauto to keep those packages self-contained.
//
// This package provides the /metrics endpoint and documents what it serves.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by vktop.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where metrics are served.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Server serves /metrics while a fetch runs. A scrape after the run sees the
// final counters until the process exits.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger.With().Str("component", "metrics").Logger(),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/vkapi):
//   - vk_requests_total{method, status} (Counter): Requests by API method and outcome
//   - vk_request_duration_seconds{method} (Histogram): Request duration by API method
//   - vk_errors_total{class} (Counter): Errors by class (rate_limit, access, client, malformed, network)
//
// Retry Metrics (pkg/vkapi):
//   - vk_retries_total{error_class} (Counter): Retry attempts by error class
//   - vk_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - vk_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cooldown Metrics (pkg/ratelimit):
//   - vk_rate_limit_cooldowns_total (Counter): Rate-limit responses that started or extended a cooldown
//   - vk_rate_limit_waits_total (Counter): Requests delayed by an active cooldown
//   - vk_rate_limit_cooldown_seconds (Histogram): Time spent waiting for a cooldown
//
// Fetch Metrics (pkg/pagination):
//   - vktop_segments_total{result} (Counter): Segments by result (ok, error, cancelled, panic)
//   - vktop_posts_scanned_total (Counter): Post records decoded
//   - vktop_early_aborts_total (Counter): Segments stopped by the date window
//   - vktop_fetch_duration_seconds (Histogram): Full wall fetch duration
//
// Example Prometheus Queries:
//
//   # Throttled share of requests
//   sum(rate(vk_errors_total{class="rate_limit"}[5m])) / sum(rate(vk_requests_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(vk_request_duration_seconds_bucket[5m]))
//
//   # Records scanned per early abort
//   rate(vktop_posts_scanned_total[5m]) / rate(vktop_early_aborts_total[5m])
