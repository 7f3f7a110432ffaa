package app

import (
	"log/slog"

	consentmetrics "checkin/internal/consent/metrics"
	consentservice "checkin/internal/consent/service"
	consentstore "checkin/internal/consent/store"
	"checkin/internal/platform/config"
	"checkin/internal/platform/ratelimit"
	"checkin/internal/reminder"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/publishers/compliance"
	"checkin/pkg/platform/audit/publishers/ops"
	auditmemory "checkin/pkg/platform/audit/store/memory"
	auditpostgres "checkin/pkg/platform/audit/store/postgres"
)

// ConsentStore is everything the API and the sweeper need from a consent
// store implementation.
type ConsentStore interface {
	consentservice.Store
	consentservice.PolicyStore
	reminder.RecordLister
}

// Consent is the assembled consent module.
type Consent struct {
	Service *consentservice.Service
	Store   ConsentStore
	Audit   audit.Store
	// Outbox is set when audit events go through the Postgres outbox.
	Outbox  *auditpostgres.Store
	Ops     *ops.Tracker
	Limiter *ratelimit.Middleware
}

// Metrics bundles the per-module collectors. They register with the default
// Prometheus registry, so build them once per process.
type Metrics struct {
	Consent    *consentmetrics.Metrics
	Compliance *compliance.Metrics
	Ops        *ops.Metrics
	RateLimit  *ratelimit.Metrics
}

func NewMetrics() *Metrics {
	return &Metrics{
		Consent:    consentmetrics.New(),
		Compliance: compliance.NewMetrics(),
		Ops:        ops.NewMetrics(),
		RateLimit:  ratelimit.NewMetrics(),
	}
}

// NewConsent builds the consent service over Postgres when infra has a
// database and over the in-memory stores otherwise.
func NewConsent(cfg config.Config, infra *Infra, m *Metrics, logger *slog.Logger) (*Consent, error) {
	if m == nil {
		m = &Metrics{}
	}
	c := &Consent{}
	opts := []consentservice.Option{
		consentservice.WithLogger(logger),
		consentservice.WithMetrics(m.Consent),
		consentservice.WithMaxTransitionAttempts(cfg.Consent.MaxTransitionAttempts),
	}

	if infra.DB != nil {
		store := consentstore.NewPostgres(infra.DB)
		c.Outbox = auditpostgres.New(infra.DB)
		c.Store = store
		c.Audit = c.Outbox
		opts = append(opts, consentservice.WithTx(newConsentPostgresTx(infra.DB, store, cfg.Consent.TxTimeout)))
	} else {
		c.Store = consentstore.NewInMemory()
		c.Audit = auditmemory.NewInMemoryStore()
	}

	c.Ops = ops.NewTracker(c.Audit,
		ops.WithSampler(ops.NewSampler(1, map[string]float64{
			string(audit.EventConsentChecked): cfg.Consent.AccessCheckSampleRate,
		})),
		ops.WithMetrics(m.Ops),
		ops.WithLogger(logger),
	)
	opts = append(opts,
		consentservice.WithAuditPublisher(compliance.New(c.Audit,
			compliance.WithLogger(logger),
			compliance.WithMetrics(m.Compliance),
		)),
		consentservice.WithOpsTracker(c.Ops),
	)

	svc, err := consentservice.New(c.Store, c.Store, opts...)
	if err != nil {
		return nil, err
	}
	c.Service = svc

	var buckets ratelimit.Store = ratelimit.NewInMemoryStore()
	if infra.Redis != nil {
		buckets = ratelimit.NewRedisStore(infra.Redis)
	}
	c.Limiter = ratelimit.New(buckets, ratelimit.Limits{
		Window: cfg.RateLimit.Window,
		PerKey: map[ratelimit.Class]int{
			ratelimit.ClassRead:  cfg.RateLimit.ReadPerWindow,
			ratelimit.ClassWrite: cfg.RateLimit.WritePerWindow,
		},
	}, logger, ratelimit.WithMetrics(m.RateLimit))
	return c, nil
}
