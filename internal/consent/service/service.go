package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/metrics"
	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

// Store is the record side of consent persistence. Stores are pure I/O:
// lifecycle rules live in the lifecycle package and orchestration here.
type Store interface {
	Create(ctx context.Context, record *models.ConsentRecord) error
	FindByID(ctx context.Context, consentID id.ConsentID) (*models.ConsentRecord, error)
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ConsentRecord, error)
	ListByIDs(ctx context.Context, ids []id.ConsentID) ([]*models.ConsentRecord, error)
	CompareAndSwap(ctx context.Context, expected models.Version, next *models.ConsentRecord) error
}

type PolicyStore interface {
	SavePolicy(ctx context.Context, policy models.ConsentPolicy) error
	FindPolicy(ctx context.Context, formTemplateID id.FormTemplateID) (*models.ConsentPolicy, error)
}

// AuditPublisher persists compliance events. It must fail closed: a consent
// decision that cannot be audited is not committed.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// OpsTracker records best-effort operational events.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

const (
	defaultMaxTransitionAttempts = 3
	maxBatchStatusIDs            = 100
	tracerName                   = "checkin/internal/consent/service"
)

// Service is the single entry point for consent transitions. The patient path
// and the scheduler path both go through Renew and Withdraw, which load the
// record, run the pure transition and commit with compare-and-swap.
type Service struct {
	store       Store
	policies    PolicyStore
	tx          ConsentStoreTx
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       AuditPublisher
	ops         OpsTracker
	tracer      trace.Tracer
	clock       func() time.Time
	maxAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithOpsTracker(tracker OpsTracker) Option {
	return func(s *Service) {
		s.ops = tracker
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithClock overrides the time source used when the request carries no time.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithTx sets the transactional boundary. Without it the service serializes
// writes per consent with an in-process sharded lock.
func WithTx(tx ConsentStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithMaxTransitionAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// New constructs a Service.
func New(store Store, policies PolicyStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("consent store is required")
	}
	if policies == nil {
		return nil, errors.New("consent policy store is required")
	}
	s := &Service{
		store:       store,
		policies:    policies,
		logger:      slog.Default(),
		clock:       time.Now,
		maxAttempts: defaultMaxTransitionAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// now prefers the request-scoped time so one request sees one instant.
func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.Now(ctx); ok {
		return t
	}
	return s.clock()
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// authorizeOwner rejects a patient acting on another patient's consent.
// Calls without a patient in the context (staff, scheduler) pass.
func authorizeOwner(ctx context.Context, record *models.ConsentRecord) error {
	caller := requestcontext.PatientID(ctx)
	if caller.IsNil() || caller == record.PatientID {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "consent belongs to another patient")
}

func (s *Service) loadPolicy(ctx context.Context, formTemplateID id.FormTemplateID) (models.ConsentPolicy, error) {
	policy, err := s.policies.FindPolicy(ctx, formTemplateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ConsentPolicy{}, dErrors.New(dErrors.CodeNotFound, "consent policy not found for form template")
		}
		return models.ConsentPolicy{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent policy")
	}
	return *policy, nil
}

func (s *Service) loadRecord(ctx context.Context, store Store, consentID id.ConsentID) (*models.ConsentRecord, error) {
	record, err := store.FindByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent")
	}
	if err := authorizeOwner(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.ComplianceEvent) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent audit event")
	}
	return nil
}

func (s *Service) track(ctx context.Context, event audit.OpsEvent) {
	if s.ops != nil {
		s.ops.Track(ctx, event)
	}
}

func stateOf(record *models.ConsentRecord, policy models.ConsentPolicy, now time.Time) models.ConsentState {
	view := lifecycle.Compute(record, policy, now)
	return models.ConsentState{
		Record:       record,
		View:         view,
		Presentation: lifecycle.Present(view.Status),
	}
}
