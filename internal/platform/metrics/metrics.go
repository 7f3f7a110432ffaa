package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics shared by all routers.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	PanicsRecovered prometheus.Counter
}

// New creates and registers all HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkin_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
		PanicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkin_http_panics_recovered_total",
			Help: "Total number of handler panics recovered by middleware",
		}),
	}
}

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}

// IncPanicsRecovered increments the recovered panics counter by 1.
func (m *Metrics) IncPanicsRecovered() {
	m.PanicsRecovered.Inc()
}
