package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for scheduled purge runs.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Records     *prometheus.CounterVec
	LeaseSkips  prometheus.Counter
	Escalations prometheus.Counter
	RunDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_retention_runs_total",
			Help: "Finished purge runs, labeled by final status",
		}, []string{"status"}),
		Records: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_retention_records_total",
			Help: "Candidate records seen by purge runs, labeled by what happened to them",
		}, []string{"result"}),
		LeaseSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_retention_lease_skips_total",
			Help: "Tenant runs skipped because another worker held the tenant lease",
		}),
		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_retention_escalations_total",
			Help: "Records that reached the purge retry bound",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_retention_run_duration_seconds",
			Help:    "Wall time of one tenant purge run",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 9),
		}),
	}
}

func (m *Metrics) IncRun(status string) {
	m.Runs.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRecord(result string) {
	m.Records.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLeaseSkip() {
	m.LeaseSkips.Inc()
}

func (m *Metrics) IncEscalation() {
	m.Escalations.Inc()
}

func (m *Metrics) ObserveRun(seconds float64) {
	m.RunDuration.Observe(seconds)
}
