package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentsRecorded *prometheus.CounterVec
	StatusChecks     *prometheus.CounterVec
	RecordLatency    prometheus.Histogram
	IntakeMessages   *prometheus.CounterVec
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_consents_recorded_total",
			Help: "Total number of consent records appended, labeled by purpose and decision",
		}, []string{"purpose", "granted"}),
		StatusChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_consent_status_checks_total",
			Help: "Total number of consent status lookups, labeled by result",
		}, []string{"result"}),
		RecordLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_consent_record_duration_seconds",
			Help:    "Time taken to append a consent record and its audit event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		IntakeMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_consent_intake_messages_total",
			Help: "Consent events consumed from Kafka, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncRecorded(purpose string, granted bool) {
	label := "false"
	if granted {
		label = "true"
	}
	m.ConsentsRecorded.WithLabelValues(purpose, label).Inc()
}

func (m *Metrics) IncStatusCheck(result string) {
	m.StatusChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRecordLatency(seconds float64) {
	m.RecordLatency.Observe(seconds)
}

func (m *Metrics) IncIntake(outcome string) {
	m.IntakeMessages.WithLabelValues(outcome).Inc()
}
