package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fastBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics tracks how far the audit relay lags behind the audit tables.
type Metrics struct {
	backlog     prometheus.Gauge
	backlogAge  prometheus.Gauge
	relayed     *prometheus.CounterVec
	failed      *prometheus.CounterVec
	publishTime prometheus.Histogram
	batch       prometheus.Histogram
	cycle       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		backlog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dataguard_audit_relay_backlog",
			Help: "Audit events written but not yet relayed to the broker",
		}),
		backlogAge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dataguard_audit_relay_backlog_age_seconds",
			Help: "Age of the oldest audit event waiting to be relayed",
		}),
		relayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_audit_relay_published_total",
			Help: "Audit events relayed to the broker, by action",
		}, []string{"action"}),
		failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_audit_relay_failures_total",
			Help: "Relay attempts that failed, by stage",
		}, []string{"stage"}),
		publishTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_audit_relay_publish_seconds",
			Help:    "Broker round trip per relayed audit event",
			Buckets: fastBuckets,
		}),
		batch: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_audit_relay_batch_size",
			Help:    "Audit events picked up per relay cycle",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		cycle: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataguard_audit_relay_cycle_seconds",
			Help:    "Duration of one relay cycle including the fetch transaction",
			Buckets: fastBuckets,
		}),
	}
}

// Failure stages.
const (
	StageFetch   = "fetch"
	StagePublish = "publish"
	StageMark    = "mark"
)

func (m *Metrics) Backlog(count int64, oldestSeconds float64) {
	m.backlog.Set(float64(count))
	m.backlogAge.Set(oldestSeconds)
}

func (m *Metrics) Relayed(action string, seconds float64) {
	m.relayed.WithLabelValues(action).Inc()
	m.publishTime.Observe(seconds)
}

func (m *Metrics) Failed(stage string) {
	m.failed.WithLabelValues(stage).Inc()
}

// Cycle records one poll: how many entries it saw and how long it took.
func (m *Metrics) Cycle(size int, seconds float64) {
	if size > 0 {
		m.batch.Observe(float64(size))
	}
	m.cycle.Observe(seconds)
}
