package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for purge attempts.
type Metrics struct {
	Outcomes          *prometheus.CounterVec
	Duration          *prometheus.HistogramVec
	UnauditedFailures prometheus.Counter
}

// New registers and returns purge metrics collectors.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_purge_outcomes_total",
			Help: "Purge attempts labeled by record type and outcome",
		}, []string{"record_type", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataguard_purge_duration_seconds",
			Help:    "Time taken to delete or redact one record including its audit event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"record_type"}),
		UnauditedFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_purge_unaudited_failures_total",
			Help: "Failed purge attempts whose failure event could not be written to the audit trail",
		}),
	}
}

func (m *Metrics) ObserveOutcome(recordType, outcome string, seconds float64) {
	m.Outcomes.WithLabelValues(recordType, outcome).Inc()
	m.Duration.WithLabelValues(recordType).Observe(seconds)
}

func (m *Metrics) IncUnauditedFailure() {
	m.UnauditedFailures.Inc()
}
