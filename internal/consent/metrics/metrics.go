package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent module.
type Metrics struct {
	// Transition latency by operation and outcome
	TransitionLatency *prometheus.HistogramVec

	// Successful transitions by operation and trigger
	Transitions *prometheus.CounterVec

	// CAS commits that lost a race and were retried
	CASConflicts *prometheus.CounterVec

	// Transitions abandoned after every attempt conflicted
	StaleTransitions *prometheus.CounterVec

	// Access checks by derived status
	AccessChecks *prometheus.CounterVec
}

// New creates a new Metrics instance with all consent module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkin_consent_transition_duration_seconds",
			Help:    "Duration of consent transitions including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation", "outcome"}), // operation: "grant", "renew", "withdraw"

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_consent_transitions_total",
			Help: "Total committed consent transitions by operation and trigger",
		}, []string{"operation", "trigger"}),

		CASConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_consent_cas_conflicts_total",
			Help: "Total compare-and-swap conflicts observed while committing a transition",
		}, []string{"operation"}),

		StaleTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_consent_stale_transitions_total",
			Help: "Total transitions rejected after exhausting CAS retries",
		}, []string{"operation"}),

		AccessChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_consent_access_checks_total",
			Help: "Total access checks by derived consent status",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveTransition(operation, outcome string, d time.Duration) {
	if m != nil {
		m.TransitionLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncTransition(operation, trigger string) {
	if m != nil {
		m.Transitions.WithLabelValues(operation, trigger).Inc()
	}
}

func (m *Metrics) IncCASConflict(operation string) {
	if m != nil {
		m.CASConflicts.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncStale(operation string) {
	if m != nil {
		m.StaleTransitions.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncAccessCheck(status string) {
	if m != nil {
		m.AccessChecks.WithLabelValues(status).Inc()
	}
}
