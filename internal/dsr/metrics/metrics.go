package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the request lifecycle.
type Metrics struct {
	Submitted       *prometheus.CounterVec
	Refused         *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
	StaleRecovered  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_dsr_submitted_total",
			Help: "Data-subject requests accepted, labeled by kind",
		}, []string{"kind"}),
		Refused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_dsr_refused_total",
			Help: "Submissions refused before a request was created, labeled by reason",
		}, []string{"reason"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_dsr_transitions_total",
			Help: "Lifecycle transitions, labeled by the status entered",
		}, []string{"status"}),
		ProcessDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataguard_dsr_process_duration_seconds",
			Help:    "Time spent fulfilling a request, labeled by kind and final status",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"kind", "status"}),
		StaleRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_dsr_stale_recovered_total",
			Help: "Requests stuck in PROCESSING that were moved to FAILED",
		}),
	}
}

func (m *Metrics) IncSubmitted(kind string) {
	m.Submitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRefused(reason string) {
	m.Refused.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveProcess(kind, status string, seconds float64) {
	m.ProcessDuration.WithLabelValues(kind, status).Observe(seconds)
}

func (m *Metrics) IncStaleRecovered() {
	m.StaleRecovered.Inc()
}
