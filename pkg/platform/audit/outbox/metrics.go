package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkin_audit_outbox_published_total",
			Help: "Total number of outbox rows produced to Kafka",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkin_audit_outbox_relay_failures_total",
			Help: "Total number of outbox relay batches that failed and will be retried",
		}),
	}
}

func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

func (m *Metrics) IncFailures() {
	m.Failures.Inc()
}
