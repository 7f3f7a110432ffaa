package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
)

// Grant records the patient's consent answer for one form submission.
//
// A declined answer (Given=false) is still recorded, as a NEVER_GIVEN consent,
// so the submission has a definite consent state. The duration defaults to the
// policy default and must lie inside the policy range. Auto-renew can only be
// requested when the policy allows it.
func (s *Service) Grant(ctx context.Context, req models.GrantRequest) (state models.ConsentState, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "consent.grant",
		attribute.String("submission.id", req.SubmissionID.String()),
		attribute.Bool("consent.given", req.Given),
	)
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveTransition("grant", outcomeOf(err), time.Since(start))
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.ConsentState{}, err
	}
	if err := authorizeOwner(ctx, &models.ConsentRecord{PatientID: req.PatientID}); err != nil {
		return models.ConsentState{}, err
	}

	policy, err := s.loadPolicy(ctx, req.FormTemplateID)
	if err != nil {
		return models.ConsentState{}, err
	}
	now := s.now(ctx)
	record, err := newRecord(req, policy, now)
	if err != nil {
		return models.ConsentState{}, err
	}

	err = s.tx.RunInTx(withTxKey(ctx, record.ID), func(ctx context.Context, store Store) error {
		if err := store.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "consent already recorded for this submission")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create consent")
		}
		e := grantEvent(record)
		e.Timestamp = now
		return s.emitAudit(ctx, e)
	})
	if err != nil {
		return models.ConsentState{}, err
	}

	trigger := "given"
	if !record.Given {
		trigger = "declined"
	}
	s.metrics.IncTransition("grant", trigger)
	s.logger.InfoContext(ctx, "consent recorded",
		"consent_id", record.ID,
		"patient_id", record.PatientID,
		"given", record.Given,
	)
	return stateOf(record, policy, now), nil
}

func newRecord(req models.GrantRequest, policy models.ConsentPolicy, now time.Time) (*models.ConsentRecord, error) {
	record := &models.ConsentRecord{
		ID:             id.ConsentID(uuid.New()),
		SubmissionID:   req.SubmissionID,
		PatientID:      req.PatientID,
		FormTemplateID: req.FormTemplateID,
		OrganizationID: req.OrganizationID,
		ClauseVersion:  req.ClauseVersion,
		CreatedAt:      now.UTC(),
	}
	if !req.Given {
		return record, nil
	}

	months := policy.DefaultConsentDuration
	if req.DurationMonths != nil {
		months = *req.DurationMonths
	}
	if !policy.AllowsDuration(months) {
		return nil, dErrors.Newf(dErrors.CodeDurationOutOfRange,
			"consent duration must be between %d and %d months",
			policy.MinConsentDuration, policy.MaxConsentDuration)
	}
	if req.AutoRenew && !policy.AllowAutoRenewal {
		return nil, dErrors.New(dErrors.CodeValidation, "auto-renewal is not allowed for this form")
	}

	givenAt := now.UTC()
	expiresAt := lifecycle.AddMonths(givenAt, months)
	record.Given = true
	record.GivenAt = &givenAt
	record.ExpiresAt = &expiresAt
	record.DurationMonths = &months
	record.AutoRenew = req.AutoRenew
	return record, nil
}

func grantEvent(record *models.ConsentRecord) audit.ComplianceEvent {
	if !record.Given {
		return audit.ComplianceEvent{
			PatientID: record.PatientID,
			ConsentID: record.ID.String(),
			Action:    string(audit.EventConsentDeclined),
			Decision:  "declined",
		}
	}
	return audit.ComplianceEvent{
		PatientID: record.PatientID,
		ConsentID: record.ID.String(),
		Action:    string(audit.EventConsentGranted),
		Decision:  fmt.Sprintf("granted:%dm", *record.DurationMonths),
	}
}

// PutPolicy validates and stores the consent policy of a form template.
func (s *Service) PutPolicy(ctx context.Context, policy models.ConsentPolicy) error {
	if policy.FormTemplateID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "form_template_id is required")
	}
	if err := policy.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	if err := s.policies.SavePolicy(ctx, policy); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent policy")
	}
	s.logger.InfoContext(ctx, "consent policy saved",
		"form_template_id", policy.FormTemplateID,
		"grace_period_days", policy.GracePeriodDays,
	)
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
