// Package kafka wraps a franz-go client for the producers in this service:
// the audit outbox relay and the reminder notifier.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkin/internal/platform/config"
)

// Message is one record to produce.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer produces records synchronously so callers know a record is durable
// before they mark it done.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewProducer connects to the configured brokers. Returns nil, nil when no
// brokers are configured.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// EnsureTopics creates the topics that do not exist yet.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replication int16, topics ...string) error {
	admin := kadm.NewClient(p.client)
	existing, err := admin.ListTopics(ctx, topics...)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	var missing []string
	for _, topic := range topics {
		if detail, ok := existing[topic]; !ok || detail.Err != nil {
			missing = append(missing, topic)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, missing...)
	if err != nil {
		return fmt.Errorf("create kafka topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil {
			return fmt.Errorf("create kafka topic %s: %w", r.Topic, r.Err)
		}
		p.logger.InfoContext(ctx, "created kafka topic", "topic", r.Topic)
	}
	return nil
}

// Publish produces msgs to topic and waits for every acknowledgement.
func (p *Producer) Publish(ctx context.Context, topic string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, len(msgs))
	for i, msg := range msgs {
		rec := &kgo.Record{Topic: topic, Key: msg.Key, Value: msg.Value}
		for k, v := range msg.Headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records[i] = rec
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}
