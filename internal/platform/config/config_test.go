package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"CHECKIN_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "SWEEPER_PAGE_SIZE", "CONSENT_MAX_TRANSITION_ATTEMPTS"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "consent.reminders", cfg.Kafka.ReminderTopic)
	assert.Equal(t, 500, cfg.Sweeper.PageSize)
	assert.Equal(t, 3, cfg.Consent.MaxTransitionAttempts)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHECKIN_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("SWEEPER_INTERVAL", "15m")
	t.Setenv("SWEEPER_CONCURRENCY", "not-a-number")
	t.Setenv("CONSENT_ACCESS_CHECK_SAMPLE_RATE", "0.25")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 8, cfg.Sweeper.Concurrency)
	assert.InDelta(t, 0.25, cfg.Consent.AccessCheckSampleRate, 1e-9)
}

func TestFromEnv_RejectsRateOutsideUnitInterval(t *testing.T) {
	t.Setenv("CONSENT_ACCESS_CHECK_SAMPLE_RATE", "1.5")

	cfg := FromEnv()

	assert.InDelta(t, 1.0, cfg.Consent.AccessCheckSampleRate, 1e-9)
}

func TestFromEnv_RateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_READ", "0")
	t.Setenv("RATE_LIMIT_WRITE", "-3")
	t.Setenv("RATE_LIMIT_WINDOW", "")

	cfg := FromEnv()

	assert.Zero(t, cfg.RateLimit.ReadPerWindow, "zero disables the read limit")
	assert.Equal(t, 60, cfg.RateLimit.WritePerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}
