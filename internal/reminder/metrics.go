package reminder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reminder sweeper.
type Metrics struct {
	RemindersSent  *prometheus.CounterVec
	AutoRenewals   prometheus.Counter
	RecordFailures prometheus.Counter
	SweepDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		RemindersSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_reminder_sent_total",
			Help: "Total reminders published by offset",
		}, []string{"offset"}),
		AutoRenewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkin_reminder_auto_renewals_total",
			Help: "Total consents auto-renewed by the sweeper",
		}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkin_reminder_record_failures_total",
			Help: "Total consents the sweeper failed to process",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_reminder_sweep_duration_seconds",
			Help:    "Duration of a full reminder sweep",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) IncSent(offset string) {
	if m != nil {
		m.RemindersSent.WithLabelValues(offset).Inc()
	}
}

func (m *Metrics) IncAutoRenewal() {
	if m != nil {
		m.AutoRenewals.Inc()
	}
}

func (m *Metrics) IncFailure() {
	if m != nil {
		m.RecordFailures.Inc()
	}
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}
