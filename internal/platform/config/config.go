package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Sweeper   SweeperConfig
	Consent   ConsentConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the reminder ledger backend. An empty URL selects
// the in-memory ledger.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the producer used for reminders and the audit relay.
// No brokers means reminders and audit events are only logged.
type KafkaConfig struct {
	Brokers        []string
	ClientID       string
	ReminderTopic  string
	AuditTopic     string
	TopicPartition int32
	Replication    int16
}

// SweeperConfig tunes the reminder and auto-renewal sweep.
type SweeperConfig struct {
	Interval      time.Duration
	PageSize      int
	Concurrency   int
	RelayInterval time.Duration
	RelayBatch    int
}

// ConsentConfig tunes the consent service.
type ConsentConfig struct {
	MaxTransitionAttempts int
	TxTimeout             time.Duration
	// AccessCheckSampleRate is the fraction of access checks written to the
	// operations audit trail.
	AccessCheckSampleRate float64
}

// RateLimitConfig is the per-caller allowance on the consent API. A zero
// limit leaves that class unlimited. Buckets live in Redis when it is
// configured, otherwise in process.
type RateLimitConfig struct {
	Window         time.Duration
	ReadPerWindow  int
	WritePerWindow int
}

// FromEnv builds the configuration from environment variables, loading a
// .env file first when one is present. Variables already set in the
// environment win over the file.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Addr:            getString("CHECKIN_ADDR", ":8080"),
			ShutdownTimeout: getDuration("CHECKIN_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getDuration("CHECKIN_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:        getList("KAFKA_BROKERS"),
			ClientID:       getString("KAFKA_CLIENT_ID", "checkin"),
			ReminderTopic:  getString("KAFKA_REMINDER_TOPIC", "consent.reminders"),
			AuditTopic:     getString("KAFKA_AUDIT_TOPIC", "consent.audit"),
			TopicPartition: int32(getInt("KAFKA_TOPIC_PARTITIONS", 3)),
			Replication:    int16(getInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Sweeper: SweeperConfig{
			Interval:      getDuration("SWEEPER_INTERVAL", time.Hour),
			PageSize:      getInt("SWEEPER_PAGE_SIZE", 500),
			Concurrency:   getInt("SWEEPER_CONCURRENCY", 8),
			RelayInterval: getDuration("OUTBOX_RELAY_INTERVAL", 2*time.Second),
			RelayBatch:    getInt("OUTBOX_RELAY_BATCH", 100),
		},
		Consent: ConsentConfig{
			MaxTransitionAttempts: getInt("CONSENT_MAX_TRANSITION_ATTEMPTS", 3),
			TxTimeout:             getDuration("CONSENT_TX_TIMEOUT", 5*time.Second),
			AccessCheckSampleRate: getRate("CONSENT_ACCESS_CHECK_SAMPLE_RATE", 1),
		},
		RateLimit: RateLimitConfig{
			Window:         getDuration("RATE_LIMIT_WINDOW", time.Minute),
			ReadPerWindow:  getLimit("RATE_LIMIT_READ", 600),
			WritePerWindow: getLimit("RATE_LIMIT_WRITE", 60),
		},
		LogLevel: getString("LOG_LEVEL", "info"),
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getLimit is getInt that also accepts 0, meaning unlimited.
func getLimit(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getRate(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
