package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a Track call.
const (
	outcomeRecorded = "recorded"
	outcomeSampled  = "sampled"
	outcomeShed     = "shed"
	outcomeFailed   = "failed"
)

type Metrics struct {
	Events       *prometheus.CounterVec
	BreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Events: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_audit_ops_events_total",
			Help: "Operational audit events by action and outcome (recorded, sampled, shed, failed)",
		}, []string{"action", "outcome"}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_audit_ops_breaker_state",
			Help: "Ops audit store breaker: 0 closed, 1 open, 2 half-open",
		}),
	}
}

func (m *Metrics) observe(action, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) setBreaker(state BreakerState) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}
