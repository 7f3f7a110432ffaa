package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
)

// applyFunc computes the next state of a record. changed=false means there is
// nothing to commit and nothing to audit.
type applyFunc func(record *models.ConsentRecord, policy models.ConsentPolicy, now time.Time) (next *models.ConsentRecord, changed bool, err error)

// eventFunc describes a committed transition for the compliance log.
type eventFunc func(prev, next *models.ConsentRecord) audit.ComplianceEvent

// Withdraw withdraws a consent. Withdrawing twice is a no-op that returns the
// WITHDRAWN state without writing or auditing anything.
func (s *Service) Withdraw(ctx context.Context, consentID id.ConsentID, reason *string) (state models.ConsentState, err error) {
	reason, err = models.NormalizeReason(reason)
	if err != nil {
		return models.ConsentState{}, err
	}
	apply := func(record *models.ConsentRecord, _ models.ConsentPolicy, now time.Time) (*models.ConsentRecord, bool, error) {
		return lifecycle.Withdraw(record, now, reason)
	}
	event := func(_, next *models.ConsentRecord) audit.ComplianceEvent {
		e := audit.ComplianceEvent{
			PatientID: next.PatientID,
			ConsentID: next.ID.String(),
			Action:    string(audit.EventConsentWithdrawn),
			Decision:  "withdrawn",
		}
		if next.WithdrawalReason != nil {
			e.Reason = *next.WithdrawalReason
		}
		return e
	}
	return s.transition(ctx, "withdraw", "patient", consentID, apply, event)
}

// Renew extends a consent. The auto_renewal trigger is the scheduler's path:
// it additionally requires both opt-ins and an open auto-renew window.
func (s *Service) Renew(ctx context.Context, consentID id.ConsentID, req models.RenewRequest) (state models.ConsentState, err error) {
	if req.Trigger == "" {
		req.Trigger = models.TriggerPatient
	}
	if err := req.Validate(); err != nil {
		return models.ConsentState{}, err
	}
	apply := func(record *models.ConsentRecord, policy models.ConsentPolicy, now time.Time) (*models.ConsentRecord, bool, error) {
		if req.Trigger == models.TriggerAutoRenewal {
			view := lifecycle.Compute(record, policy, now)
			if !lifecycle.AutoRenewDue(record, policy, view) {
				return nil, false, dErrors.Newf(dErrors.CodeInvalidTransition, "auto-renewal is not due for a %s consent", view.Status)
			}
		}
		next, err := lifecycle.Renew(record, policy, now, req.Months)
		if err != nil {
			return nil, false, err
		}
		return next, true, nil
	}
	event := func(_, next *models.ConsentRecord) audit.ComplianceEvent {
		action := audit.EventConsentRenewed
		if req.Trigger == models.TriggerAutoRenewal {
			action = audit.EventConsentAutoRenewed
		}
		return audit.ComplianceEvent{
			PatientID: next.PatientID,
			ConsentID: next.ID.String(),
			Action:    string(action),
			Decision:  fmt.Sprintf("renewed:%dm", *next.DurationMonths),
		}
	}
	return s.transition(ctx, "renew", string(req.Trigger), consentID, apply, event)
}

// transition runs the read-compute-commit loop shared by every write. Each
// attempt reloads the record and re-checks legality against it, so a
// withdrawal that lands between read and commit turns a renewal into
// InvalidTransition on the next attempt instead of being overwritten.
func (s *Service) transition(ctx context.Context, operation, trigger string, consentID id.ConsentID, apply applyFunc, event eventFunc) (state models.ConsentState, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "consent."+operation,
		attribute.String("consent.id", consentID.String()),
		attribute.String("consent.trigger", trigger),
	)
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveTransition(operation, outcomeOf(err), time.Since(start))
	}()

	ctx = withTxKey(ctx, consentID)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var changed bool
		err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			record, err := s.loadRecord(ctx, store, consentID)
			if err != nil {
				return err
			}
			policy, err := s.loadPolicy(ctx, record.FormTemplateID)
			if err != nil {
				return err
			}
			now := s.now(ctx)
			next, ok, err := apply(record, policy, now)
			if err != nil {
				return err
			}
			if ok {
				if err := store.CompareAndSwap(ctx, record.Version(), next); err != nil {
					return err
				}
				e := event(record, next)
				e.Timestamp = now
				if err := s.emitAudit(ctx, e); err != nil {
					return err
				}
			}
			state, changed = stateOf(next, policy, now), ok
			return nil
		})
		if err == nil {
			if changed {
				s.metrics.IncTransition(operation, trigger)
				s.logger.InfoContext(ctx, "consent transition committed",
					"consent_id", consentID,
					"operation", operation,
					"trigger", trigger,
					"status", state.View.Status.String(),
					"attempt", attempt,
				)
			}
			return state, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return models.ConsentState{}, translateCommitErr(err)
		}
		s.metrics.IncCASConflict(operation)
		s.logger.WarnContext(ctx, "consent changed concurrently, retrying",
			"consent_id", consentID,
			"operation", operation,
			"attempt", attempt,
		)
	}

	s.metrics.IncStale(operation)
	s.logger.WarnContext(ctx, "consent transition abandoned after repeated conflicts",
		"consent_id", consentID,
		"operation", operation,
		"attempts", s.maxAttempts,
	)
	return models.ConsentState{}, dErrors.Newf(dErrors.CodeStaleConsentState,
		"consent changed concurrently %d times; reload and retry", s.maxAttempts)
}

func translateCommitErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit consent transition")
}
