package app

import (
	"log/slog"

	"checkin/internal/platform/config"
	"checkin/pkg/platform/audit/outbox"
)

// NewRelay returns the audit outbox relay, or nil when audit events are not
// going through the Postgres outbox or there is no Kafka to relay to.
func NewRelay(cfg config.Config, infra *Infra, consent *Consent, m *outbox.Metrics, logger *slog.Logger) *outbox.Relay {
	if consent.Outbox == nil || infra.Producer == nil {
		return nil
	}
	return outbox.New(consent.Outbox, infra.Producer, cfg.Kafka.AuditTopic, logger,
		outbox.WithBatchSize(cfg.Sweeper.RelayBatch),
		outbox.WithInterval(cfg.Sweeper.RelayInterval),
		outbox.WithMetrics(m),
	)
}
