package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/requestcontext"
)

// Status derives the current state of one consent.
func (s *Service) Status(ctx context.Context, consentID id.ConsentID) (state models.ConsentState, err error) {
	ctx, span := s.startSpan(ctx, "consent.status", attribute.String("consent.id", consentID.String()))
	defer func() { endSpan(span, err) }()

	record, err := s.loadRecord(ctx, s.store, consentID)
	if err != nil {
		return models.ConsentState{}, err
	}
	policy, err := s.loadPolicy(ctx, record.FormTemplateID)
	if err != nil {
		return models.ConsentState{}, err
	}
	return stateOf(record, policy, s.now(ctx)), nil
}

// ListByPatient returns every consent of a patient, newest first, each with
// its view at the same instant.
func (s *Service) ListByPatient(ctx context.Context, patientID id.PatientID) (states []models.ConsentState, err error) {
	ctx, span := s.startSpan(ctx, "consent.list_by_patient")
	defer func() { endSpan(span, err) }()

	if caller := requestcontext.PatientID(ctx); !caller.IsNil() && caller != patientID {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot list another patient's consents")
	}
	records, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return s.statesOf(ctx, records)
}

// StatusBatch derives the state of several consents at one instant. Unknown
// IDs are omitted from the result; a patient caller only sees their own.
func (s *Service) StatusBatch(ctx context.Context, ids []id.ConsentID) (states []models.ConsentState, err error) {
	ctx, span := s.startSpan(ctx, "consent.status_batch", attribute.Int("consent.count", len(ids)))
	defer func() { endSpan(span, err) }()

	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one consent id is required")
	}
	if len(ids) > maxBatchStatusIDs {
		return nil, dErrors.Newf(dErrors.CodeValidation, "at most %d consent ids per request", maxBatchStatusIDs)
	}
	records, err := s.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consents")
	}
	visible := records[:0]
	for _, record := range records {
		if authorizeOwner(ctx, record) == nil {
			visible = append(visible, record)
		}
	}
	return s.statesOf(ctx, visible)
}

func (s *Service) statesOf(ctx context.Context, records []*models.ConsentRecord) ([]models.ConsentState, error) {
	now := s.now(ctx)
	policies := make(map[id.FormTemplateID]models.ConsentPolicy)
	states := make([]models.ConsentState, 0, len(records))
	for _, record := range records {
		policy, ok := policies[record.FormTemplateID]
		if !ok {
			var err error
			policy, err = s.loadPolicy(ctx, record.FormTemplateID)
			if err != nil {
				return nil, err
			}
			policies[record.FormTemplateID] = policy
		}
		states = append(states, stateOf(record, policy, now))
	}
	return states, nil
}

// CheckAccess is the gate in front of personal data: it returns
// CodeMissingConsent unless the consent is ACTIVE, EXPIRING or GRACE.
func (s *Service) CheckAccess(ctx context.Context, consentID id.ConsentID) (err error) {
	ctx, span := s.startSpan(ctx, "consent.check_access", attribute.String("consent.id", consentID.String()))
	defer func() { endSpan(span, err) }()

	state, err := s.Status(ctx, consentID)
	if err != nil {
		return err
	}
	status := state.View.Status
	s.metrics.IncAccessCheck(status.String())

	decision := "granted"
	if !state.View.IsAccessible {
		decision = "denied:" + status.String()
	}
	s.track(ctx, audit.OpsEvent{
		Timestamp: s.now(ctx),
		PatientID: state.Record.PatientID,
		Subject:   consentID.String(),
		Action:    string(audit.EventConsentChecked),
		Decision:  decision,
		RequestID: requestcontext.RequestID(ctx),
	})

	if !state.View.IsAccessible {
		return dErrors.Newf(dErrors.CodeMissingConsent, "consent is %s", status)
	}
	return nil
}
