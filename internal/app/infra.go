// Package app assembles the process-level dependencies shared by the API
// server and the sweeper. Every backend is optional: without a database URL
// the in-memory stores are used, without Redis the in-memory reminder ledger,
// and without Kafka brokers reminders are logged and the outbox relay is off.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"checkin/internal/platform/config"
	"checkin/internal/platform/database"
	"checkin/internal/platform/kafka"
	"checkin/internal/platform/redis"
)

// Infra holds the external connections opened for a process.
type Infra struct {
	DB       *sql.DB
	Redis    *redis.Client
	Producer *kafka.Producer
	logger   *slog.Logger
}

// Open connects to every configured backend and applies the schema.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Infra, error) {
	infra := &Infra{logger: logger}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "connected to postgres")
	} else {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}
	infra.DB = db

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Redis = rdb

	producer, err := kafka.NewProducer(ctx, cfg.Kafka, logger)
	if err != nil {
		infra.Close()
		return nil, err
	}
	if producer != nil {
		err := producer.EnsureTopics(ctx, cfg.Kafka.TopicPartition, cfg.Kafka.Replication,
			cfg.Kafka.ReminderTopic, cfg.Kafka.AuditTopic)
		if err != nil {
			producer.Close()
			infra.Close()
			return nil, err
		}
	}
	infra.Producer = producer
	return infra, nil
}

// Health reports the first unhealthy backend.
func (i *Infra) Health(ctx context.Context) error {
	var errs []error
	if i.DB != nil {
		errs = append(errs, i.DB.PingContext(ctx))
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Health(ctx))
	}
	if i.Producer != nil {
		errs = append(errs, i.Producer.Health(ctx))
	}
	return errors.Join(errs...)
}

// Close releases every open connection.
func (i *Infra) Close() {
	if i.Producer != nil {
		i.Producer.Close()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			i.logger.Warn("failed to close database", "error", err)
		}
	}
}
