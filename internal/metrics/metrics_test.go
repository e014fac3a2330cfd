package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue returns the value of the counter family name with labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestEngine_Counters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Batch(OutcomeOK)
	m.Batch(OutcomeOK)
	m.Batch(OutcomeError)
	m.Documents(OutcomeIngested, 50)
	m.Documents(OutcomeSkipped, 0)
	m.Retrieval(OutcomeDegraded, 20*time.Millisecond)
	m.Answer("manual")
	m.TrackingWrite("sqlite", false)

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"scout_ingest_batches_total", map[string]string{"outcome": "ok"}, 2},
		{"scout_ingest_batches_total", map[string]string{"outcome": "error"}, 1},
		{"scout_ingest_documents_total", map[string]string{"outcome": "ingested"}, 50},
		{"scout_retrieval_requests_total", map[string]string{"outcome": "degraded"}, 1},
		{"scout_answer_requests_total", map[string]string{"strategy": "manual"}, 1},
		{"scout_tracking_writes_total", map[string]string{"backend": "sqlite", "outcome": "error"}, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, reg, c.name, c.labels); got != c.want {
			t.Errorf("%s%v: want %v, got %v", c.name, c.labels, c.want, got)
		}
	}
}

func TestEngine_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Engine
	m.Batch(OutcomeOK)
	m.Documents(OutcomeIngested, 3)
	m.Retrieval(OutcomeOK, time.Second)
	m.Answer("direct")
	m.TrackingWrite("sqlite", true)
}
