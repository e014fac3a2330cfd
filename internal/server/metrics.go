package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint, not raw path.
const labelHandler = "handler"

// serverMetrics holds the Prometheus collectors owned by the HTTP server.
// Engine collectors live in internal/metrics.
type serverMetrics struct {
	// answerRequestsTotal counts /api/answer requests by outcome: ok, timeout, error.
	answerRequestsTotal *prometheus.CounterVec

	// answerDurationSeconds records /api/answer latency by outcome.
	answerDurationSeconds *prometheus.HistogramVec

	// ingestActive is 1 while an ingestion job started over HTTP is running.
	ingestActive prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers the server collectors against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "http_answer",
			Name:      "requests_total",
			Help:      "Total number of /api/answer requests, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scout",
			Subsystem: "http_answer",
			Name:      "duration_seconds",
			Help:      "Duration of /api/answer requests, partitioned by outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		ingestActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "scout",
			Subsystem: "http_ingest",
			Name:      "active",
			Help:      "Number of ingestion jobs currently running over HTTP.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scout",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument records request count and latency for the named handler.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
