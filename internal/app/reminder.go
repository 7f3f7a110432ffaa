package app

import (
	"log/slog"

	"checkin/internal/platform/config"
	"checkin/internal/reminder"
)

// NewSweeper builds the reminder sweeper over the consent module. Redis backs
// the ledger when configured so concurrent sweeper runs share one history.
func NewSweeper(cfg config.Config, infra *Infra, consent *Consent, m *reminder.Metrics, logger *slog.Logger) (*reminder.Sweeper, error) {
	var ledger reminder.Ledger = reminder.NewMemoryLedger()
	if infra.Redis != nil {
		ledger = reminder.NewRedisLedger(infra.Redis)
	} else {
		logger.Warn("REDIS_URL not set, reminder ledger is process-local")
	}

	var notifier reminder.Notifier = reminder.NewLogNotifier(logger)
	if infra.Producer != nil {
		notifier = reminder.NewKafkaNotifier(infra.Producer, cfg.Kafka.ReminderTopic)
	}

	return reminder.NewSweeper(consent.Store, consent.Store, consent.Service, ledger, notifier,
		reminder.WithLogger(logger),
		reminder.WithMetrics(m),
		reminder.WithOpsTracker(consent.Ops),
		reminder.WithPageSize(cfg.Sweeper.PageSize),
		reminder.WithConcurrency(cfg.Sweeper.Concurrency),
	)
}
