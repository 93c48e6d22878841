package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsRegistered prometheus.Counter
	StatusChanges     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		TenantsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataguard_tenants_registered_total",
			Help: "Total number of tenants registered",
		}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataguard_tenant_status_changes_total",
			Help: "Tenant suspensions and reactivations, labeled by the new status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.TenantsRegistered.Inc()
}

func (m *Metrics) IncrementStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}
