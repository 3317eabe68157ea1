package sandbox

import (
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by sessions. A nil
// *Metrics records nothing.
type Metrics struct {
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	Loads         *prometheus.CounterVec
	Resets        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsandbox",
			Name:      "queries_total",
			Help:      "Executed queries by outcome (ok or failure reason).",
		}, []string{"outcome"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqlsandbox",
			Name:      "query_duration_seconds",
			Help:      "Wall time of queries that reached the engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsandbox",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by outcome.",
		}, []string{"outcome"}),
		Resets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsandbox",
			Name:      "resets_total",
			Help:      "Session resets by outcome.",
		}, []string{"outcome"}),
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(core.ReasonOf(err))
}

func (m *Metrics) query(out core.Outcome) {
	if m == nil {
		return
	}
	label := "ok"
	if !out.Success {
		label = string(out.Reason)
	}
	m.Queries.WithLabelValues(label).Inc()
	if out.Reason != core.ReasonNotReady {
		m.QueryDuration.Observe(out.Elapsed.Seconds())
	}
}

func (m *Metrics) load(err error) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(outcomeLabel(err)).Inc()
}

func (m *Metrics) reset(err error) {
	if m == nil {
		return
	}
	m.Resets.WithLabelValues(outcomeLabel(err)).Inc()
}
