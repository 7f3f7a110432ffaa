// Package reminder drives the scheduled side of the consent lifecycle: it
// auto-renews consents whose patient opted in and signals expiry reminders,
// each at most once per reminder cycle.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/requestcontext"
)

// SchedulerActor is recorded as the actor of every change the sweeper drives.
const SchedulerActor = "scheduler"

const (
	defaultPageSize    = 500
	defaultConcurrency = 4
)

// RecordLister pages through consents that carry an expiry.
type RecordLister interface {
	ListTimeBound(ctx context.Context, afterID id.ConsentID, limit int) ([]*models.ConsentRecord, error)
}

type PolicyStore interface {
	FindPolicy(ctx context.Context, formTemplateID id.FormTemplateID) (*models.ConsentPolicy, error)
}

// Renewer is the consent service entry point for renewals. Auto-renewals go
// through it so they share the patient path's conflict handling and audit.
type Renewer interface {
	Renew(ctx context.Context, consentID id.ConsentID, req models.RenewRequest) (models.ConsentState, error)
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Report summarises one sweep.
type Report struct {
	Scanned       int
	AutoRenewed   int
	RemindersSent int
	Skipped       int
	Failed        int
}

type Sweeper struct {
	records     RecordLister
	policies    PolicyStore
	renewer     Renewer
	ledger      Ledger
	notifier    Notifier
	logger      *slog.Logger
	metrics     *Metrics
	ops         OpsTracker
	pageSize    int
	concurrency int
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Sweeper) { s.ops = t }
}

func WithPageSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewSweeper(records RecordLister, policies PolicyStore, renewer Renewer, ledger Ledger, notifier Notifier, opts ...Option) (*Sweeper, error) {
	if records == nil || policies == nil || renewer == nil || ledger == nil || notifier == nil {
		return nil, errors.New("sweeper requires records, policies, renewer, ledger and notifier")
	}
	s := &Sweeper{
		records:     records,
		policies:    policies,
		renewer:     renewer,
		ledger:      ledger,
		notifier:    notifier,
		logger:      slog.Default(),
		pageSize:    defaultPageSize,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type outcome uint8

const (
	outcomeSkipped outcome = iota
	outcomeRenewed
	outcomeReminded
	outcomeFailed
)

// Run performs one full sweep as of now. Failures on individual consents are
// logged and counted; only listing errors and cancellation abort the sweep.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Report, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithActor(ctx, SchedulerActor)

	var (
		report   Report
		mu       sync.Mutex
		afterID  id.ConsentID
		policies = newPolicyCache(s.policies)
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := s.records.ListTimeBound(ctx, afterID, s.pageSize)
		if err != nil {
			return report, fmt.Errorf("list time-bound consents: %w", err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, record := range page {
			g.Go(func() error {
				result := s.process(gctx, record, policies, now)
				mu.Lock()
				report.add(result)
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		afterID = page[len(page)-1].ID
		if len(page) < s.pageSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "reminder sweep finished",
		"scanned", report.Scanned,
		"auto_renewed", report.AutoRenewed,
		"reminders_sent", report.RemindersSent,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (r *Report) add(o outcome) {
	r.Scanned++
	switch o {
	case outcomeRenewed:
		r.AutoRenewed++
	case outcomeReminded:
		r.RemindersSent++
	case outcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

func (s *Sweeper) process(ctx context.Context, record *models.ConsentRecord, policies *policyCache, now time.Time) outcome {
	logger := s.logger.With("consent_id", record.ID.String())

	policy, err := policies.get(ctx, record.FormTemplateID)
	if err != nil {
		logger.WarnContext(ctx, "no consent policy for reminder sweep", "error", err)
		s.metrics.IncFailure()
		return outcomeFailed
	}
	view := lifecycle.Compute(record, policy, now)

	if lifecycle.AutoRenewDue(record, policy, view) {
		return s.autoRenew(ctx, logger, record)
	}
	return s.remind(ctx, logger, record, view, now)
}

func (s *Sweeper) autoRenew(ctx context.Context, logger *slog.Logger, record *models.ConsentRecord) outcome {
	_, err := s.renewer.Renew(ctx, record.ID, models.RenewRequest{Trigger: models.TriggerAutoRenewal})
	switch {
	case err == nil:
		logger.InfoContext(ctx, "consent auto-renewed", "renewal_count", record.RenewalCount+1)
		s.metrics.IncAutoRenewal()
		return outcomeRenewed
	case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
		// Withdrawn or renewed by the patient since the page was read.
		logger.InfoContext(ctx, "auto-renewal no longer applicable", "error", err)
		return outcomeSkipped
	default:
		logger.ErrorContext(ctx, "auto-renewal failed", "error", err)
		s.metrics.IncFailure()
		return outcomeFailed
	}
}

func (s *Sweeper) remind(ctx context.Context, logger *slog.Logger, record *models.ConsentRecord, view models.StatusView, now time.Time) outcome {
	key := LedgerKey{ConsentID: record.ID, RenewalCount: record.RenewalCount}
	last, err := s.ledger.Last(ctx, key)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read reminder ledger", "error", err)
		s.metrics.IncFailure()
		return outcomeFailed
	}
	due := lifecycle.ReminderDue(view.DaysRemaining, view.Status, last)
	if due == nil {
		return outcomeSkipped
	}

	advanced, err := s.ledger.Advance(ctx, key, *due)
	if err != nil {
		logger.ErrorContext(ctx, "failed to advance reminder ledger", "error", err)
		s.metrics.IncFailure()
		return outcomeFailed
	}
	if !advanced {
		return outcomeSkipped
	}

	reminder := Reminder{
		ConsentID:      record.ID,
		PatientID:      record.PatientID,
		OrganizationID: record.OrganizationID,
		Offset:         due.String(),
		Status:         view.Status,
		Urgency:        view.RenewalUrgency,
		DaysRemaining:  view.DaysRemaining,
		ExpiresAt:      record.ExpiresAt,
		Message:        view.Message,
		RenewalCount:   record.RenewalCount,
		SentAt:         now,
	}
	if err := s.notifier.Notify(ctx, reminder); err != nil {
		logger.ErrorContext(ctx, "failed to publish reminder", "offset", due.String(), "error", err)
		if rerr := s.ledger.Revert(ctx, key, *due, last); rerr != nil {
			logger.ErrorContext(ctx, "failed to revert reminder ledger", "offset", due.String(), "error", rerr)
		}
		s.metrics.IncFailure()
		return outcomeFailed
	}

	logger.InfoContext(ctx, "consent reminder sent", "offset", due.String(), "status", view.Status.String())
	s.metrics.IncSent(due.String())
	if s.ops != nil {
		s.ops.Track(ctx, audit.OpsEvent{
			PatientID: record.PatientID,
			Subject:   record.ID.String(),
			Action:    string(audit.EventReminderSent),
			Decision:  due.String(),
		})
	}
	return outcomeReminded
}

// policyCache memoises policy lookups for the length of one sweep; most
// consents share a handful of form templates.
type policyCache struct {
	store   PolicyStore
	mu      sync.Mutex
	entries map[id.FormTemplateID]models.ConsentPolicy
}

func newPolicyCache(store PolicyStore) *policyCache {
	return &policyCache{store: store, entries: make(map[id.FormTemplateID]models.ConsentPolicy)}
}

func (c *policyCache) get(ctx context.Context, formTemplateID id.FormTemplateID) (models.ConsentPolicy, error) {
	c.mu.Lock()
	policy, ok := c.entries[formTemplateID]
	c.mu.Unlock()
	if ok {
		return policy, nil
	}
	found, err := c.store.FindPolicy(ctx, formTemplateID)
	if err != nil {
		return models.ConsentPolicy{}, fmt.Errorf("policy for form template %s: %w", formTemplateID, err)
	}
	c.mu.Lock()
	c.entries[formTemplateID] = *found
	c.mu.Unlock()
	return *found, nil
}
