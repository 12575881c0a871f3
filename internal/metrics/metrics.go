package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for QueriesTotal.
const (
	OutcomeSuccess = "success"
	OutcomeRetried = "retried"
	OutcomeSkipped = "skipped"
)

// Layer labels for RetriesTotal.
const (
	LayerCall = "call"
	LayerTask = "task"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qparser_queries_total",
			Help: "Queries finished by a batch, by outcome",
		},
		[]string{"outcome"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qparser_retries_total",
			Help: "Retries performed after a recoverable failure, by layer",
		},
		[]string{"layer"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qparser_query_duration_seconds",
			Help:    "Duration of a query task including call-level retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	ResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qparser_results_total",
		Help: "Unique result links collected",
	})

	DomainsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qparser_result_domains_total",
		Help: "Distinct domains per session, summed over sessions",
	})

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qparser_enrichments_total",
			Help: "Enrichment attempts, by status",
		},
		[]string{"status"},
	)

	BatchCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qparser_batch_completed",
		Help: "Queries completed in the current batch",
	})

	BatchTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qparser_batch_total",
		Help: "Queries submitted in the current batch",
	})

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qparser_fetch_requests_total",
			Help: "HTTP fetches executed by providers and the probe enricher",
		},
		[]string{"status", "detection_src"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qparser_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordSession records the duration of the task that produced s and its
// result and domain counts. Result domains are unbounded, so they are never
// used as label values.
func RecordSession(s *session.Session, took time.Duration) {
	if s == nil {
		return
	}
	QueryDuration.Observe(took.Seconds())
	ResultsTotal.Add(float64(len(s.Results)))
	DomainsTotal.Add(float64(len(s.DomainStats)))
}

// RecordFetch records a single HTTP fetch. A zero status means the request
// failed before a response arrived.
func RecordFetch(status int, detectionSrc string) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}
	FetchRequestsTotal.WithLabelValues(statusStr, detectionSrc).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start listens on the given port and exposes /metrics. Port 0 picks a free port.
func Start(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, ln: ln}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
