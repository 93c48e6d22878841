package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit trail.
type Metrics struct {
	EventsAppended   *prometheus.CounterVec
	AppendFailures   prometheus.Counter
	AppendDuration   prometheus.Histogram
	VerifyRuns       prometheus.Counter
	ChainBreaksFound prometheus.Counter
}

// New creates a new Metrics instance with all audit trail metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_audit_events_appended_total",
			Help: "Total number of audit events appended, by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_audit_append_failures_total",
			Help: "Total number of audit appends that failed to persist",
		}),
		AppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_audit_append_duration_seconds",
			Help:    "Time taken to link and persist an audit event",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		VerifyRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_audit_verify_runs_total",
			Help: "Total number of chain verifications performed",
		}),
		ChainBreaksFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_audit_chain_breaks_total",
			Help: "Total number of chain integrity errors found by verification",
		}),
	}
}

// IncAppended records one persisted event.
func (m *Metrics) IncAppended(action string) {
	m.EventsAppended.WithLabelValues(action).Inc()
}

// IncAppendFailures increments the append failures counter.
func (m *Metrics) IncAppendFailures() {
	m.AppendFailures.Inc()
}

// ObserveAppendDuration records append latency.
func (m *Metrics) ObserveAppendDuration(durationSeconds float64) {
	m.AppendDuration.Observe(durationSeconds)
}

// ObserveVerify records one verification and the number of breaks it found.
func (m *Metrics) ObserveVerify(breaks int) {
	m.VerifyRuns.Inc()
	m.ChainBreaksFound.Add(float64(breaks))
}
