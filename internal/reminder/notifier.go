package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"checkin/internal/consent/models"
	"checkin/internal/platform/kafka"
	id "checkin/pkg/domain"
)

// Reminder is the notification handed to the messaging channel. Delivery
// (email, SMS, portal banner) is the consumer's business.
type Reminder struct {
	ConsentID      id.ConsentID      `json:"consent_id"`
	PatientID      id.PatientID      `json:"patient_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Offset         string            `json:"offset"`
	Status         models.Status     `json:"status"`
	Urgency        models.Urgency    `json:"urgency"`
	DaysRemaining  *int              `json:"days_remaining"`
	ExpiresAt      *time.Time        `json:"expires_at"`
	Message        string            `json:"message"`
	RenewalCount   int               `json:"renewal_count"`
	SentAt         time.Time         `json:"sent_at"`
}

type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// Publisher produces records to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// KafkaNotifier publishes reminders keyed by patient so one patient's
// reminders stay ordered on a partition.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
}

func NewKafkaNotifier(publisher Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, reminder Reminder) error {
	value, err := json.Marshal(reminder)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	return n.publisher.Publish(ctx, n.topic, kafka.Message{
		Key:   []byte(reminder.PatientID.String()),
		Value: value,
		Headers: map[string]string{
			"offset":     reminder.Offset,
			"consent_id": reminder.ConsentID.String(),
		},
	})
}

// LogNotifier writes reminders to the log. It stands in for the messaging
// channel when no Kafka brokers are configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, reminder Reminder) error {
	n.logger.InfoContext(ctx, "consent reminder",
		"consent_id", reminder.ConsentID.String(),
		"patient_id", reminder.PatientID.String(),
		"offset", reminder.Offset,
		"status", reminder.Status.String(),
		"message", reminder.Message,
	)
	return nil
}
