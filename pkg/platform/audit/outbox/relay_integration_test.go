//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkin/internal/platform/config"
	"checkin/internal/platform/kafka"
	id "checkin/pkg/domain"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/outbox"
	"checkin/pkg/platform/audit/store/postgres"
	"checkin/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *postgres.Store
	producer *kafka.Producer
	topic    string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.store = postgres.New(s.postgres.DB)

	ctx := context.Background()
	producer, err := kafka.NewProducer(ctx, config.KafkaConfig{
		Brokers:  s.redpanda.Brokers,
		ClientID: "checkin-relay-test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.producer = producer
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
	s.topic = "consent.audit." + uuid.NewString()
	s.Require().NoError(s.producer.EnsureTopics(context.Background(), 1, 1, s.topic))
}

func (s *RelaySuite) TestRelaysCommittedEventsOnce() {
	ctx := context.Background()
	patient := id.PatientID(uuid.New())
	actions := []audit.AuditEvent{audit.EventConsentGranted, audit.EventConsentRenewed, audit.EventConsentWithdrawn}
	for _, action := range actions {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Category:  action.Category(),
			Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			PatientID: patient,
			ConsentID: uuid.NewString(),
			Action:    string(action),
		}))
	}

	relay := outbox.New(s.store, s.producer, s.topic, slog.New(slog.NewTextHandler(io.Discard, nil)),
		outbox.WithBatchSize(10))

	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(n, "published rows are not claimed again")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []string
	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for len(got) < len(actions) {
		fetches := consumer.PollFetches(pollCtx)
		s.Require().NoError(pollCtx.Err(), "timed out waiting for relayed records")
		fetches.EachRecord(func(r *kgo.Record) {
			var payload postgres.Payload
			s.Require().NoError(json.Unmarshal(r.Value, &payload))
			s.Equal(payload.ID, string(r.Key))
			s.Equal(patient.String(), payload.PatientID)
			got = append(got, payload.Action)
		})
	}
	s.ElementsMatch([]string{"consent_granted", "consent_renewed", "consent_withdrawn"}, got)
}
