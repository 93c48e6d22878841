package request

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataguard_http_request_duration_seconds",
			Help:    "Latency of HTTP endpoints by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(route string, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	m.EndpointLatency.WithLabelValues(route).Observe(seconds)
}
