// Package metrics registers the Prometheus collectors owned by the engine:
// ingestion batches and documents, retrieval requests, answer requests and
// tracking writes. A nil *Engine is valid and records nothing, so
// components can be constructed without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
	OutcomeSkipped  = "skipped"
	OutcomeIngested = "ingested"
)

// Engine holds the engine collectors.
type Engine struct {
	// ingestBatches counts import batches by outcome: "ok" or "error".
	ingestBatches *prometheus.CounterVec

	// ingestDocuments counts requested documents by outcome: "ingested",
	// "skipped" or "error".
	ingestDocuments *prometheus.CounterVec

	// retrievalRequests counts retrievals by outcome: "ok", "degraded"
	// (rerank dropped) or "error".
	retrievalRequests *prometheus.CounterVec

	// retrievalDuration records retrieval latency including any re-issue.
	retrievalDuration prometheus.Histogram

	// answerRequests counts answers by strategy: "direct", "manual" or "canned".
	answerRequests *prometheus.CounterVec

	// trackingWrites counts tracking backend writes by backend and outcome.
	trackingWrites *prometheus.CounterVec
}

// New registers the engine collectors against reg.
func New(reg prometheus.Registerer) *Engine {
	factory := promauto.With(reg)

	return &Engine{
		ingestBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Total number of import batches submitted, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents requested for ingestion, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of retrieval requests, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scout",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Latency of retrieval requests against the corpus service.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		answerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total number of synthesized answers, partitioned by strategy.",
		}, []string{"strategy"}),

		trackingWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "tracking",
			Name:      "writes_total",
			Help:      "Total number of tracking record writes, partitioned by backend and outcome.",
		}, []string{"backend", "outcome"}),
	}
}

// Batch records one import batch.
func (e *Engine) Batch(outcome string) {
	if e == nil {
		return
	}
	e.ingestBatches.WithLabelValues(outcome).Inc()
}

// Documents records n documents with the given outcome.
func (e *Engine) Documents(outcome string, n int) {
	if e == nil || n <= 0 {
		return
	}
	e.ingestDocuments.WithLabelValues(outcome).Add(float64(n))
}

// Retrieval records one retrieval request.
func (e *Engine) Retrieval(outcome string, elapsed time.Duration) {
	if e == nil {
		return
	}
	e.retrievalRequests.WithLabelValues(outcome).Inc()
	e.retrievalDuration.Observe(elapsed.Seconds())
}

// Answer records one answer by strategy.
func (e *Engine) Answer(strategy string) {
	if e == nil {
		return
	}
	e.answerRequests.WithLabelValues(strategy).Inc()
}

// TrackingWrite records one backend write.
func (e *Engine) TrackingWrite(backend string, ok bool) {
	if e == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeError
	}
	e.trackingWrites.WithLabelValues(backend, outcome).Inc()
}
