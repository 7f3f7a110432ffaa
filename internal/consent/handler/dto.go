package handler

import (
	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// GrantConsentRequest is the body of POST /consents. The patient comes from
// the authenticated caller, never from the body.
type GrantConsentRequest struct {
	SubmissionID   string `json:"submission_id"`
	FormTemplateID string `json:"form_template_id"`
	OrganizationID string `json:"organization_id"`
	ClauseVersion  string `json:"clause_version"`
	Given          *bool  `json:"given"`
	DurationMonths *int   `json:"duration_months,omitempty"`
	AutoRenew      bool   `json:"auto_renew"`
}

func (r GrantConsentRequest) toModel(patientID id.PatientID) (models.GrantRequest, error) {
	sanitize(&r)
	if r.Given == nil {
		return models.GrantRequest{}, dErrors.New(dErrors.CodeValidation, "given is required")
	}
	submissionID, err := id.ParseSubmissionID(r.SubmissionID)
	if err != nil {
		return models.GrantRequest{}, err
	}
	formTemplateID, err := id.ParseFormTemplateID(r.FormTemplateID)
	if err != nil {
		return models.GrantRequest{}, err
	}
	organizationID, err := id.ParseOrganizationID(r.OrganizationID)
	if err != nil {
		return models.GrantRequest{}, err
	}
	return models.GrantRequest{
		SubmissionID:   submissionID,
		PatientID:      patientID,
		FormTemplateID: formTemplateID,
		OrganizationID: organizationID,
		ClauseVersion:  r.ClauseVersion,
		Given:          *r.Given,
		DurationMonths: r.DurationMonths,
		AutoRenew:      r.AutoRenew,
	}, nil
}

type WithdrawConsentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type RenewConsentRequest struct {
	DurationMonths *int `json:"duration_months,omitempty"`
}

type PolicyRequest struct {
	GracePeriodDays        int  `json:"grace_period_days"`
	DefaultConsentDuration int  `json:"default_consent_duration"`
	MinConsentDuration     int  `json:"min_consent_duration"`
	MaxConsentDuration     int  `json:"max_consent_duration"`
	AllowAutoRenewal       bool `json:"allow_auto_renewal"`
}

func (r PolicyRequest) toModel(formTemplateID id.FormTemplateID) models.ConsentPolicy {
	return models.ConsentPolicy{
		FormTemplateID:         formTemplateID,
		GracePeriodDays:        r.GracePeriodDays,
		DefaultConsentDuration: r.DefaultConsentDuration,
		MinConsentDuration:     r.MinConsentDuration,
		MaxConsentDuration:     r.MaxConsentDuration,
		AllowAutoRenewal:       r.AllowAutoRenewal,
	}
}

// ConsentResponse pairs the stored record with its freshly derived view.
type ConsentResponse struct {
	Consent      *models.ConsentRecord `json:"consent"`
	View         models.StatusView     `json:"view"`
	Presentation models.Presentation   `json:"presentation"`
}

type ConsentListResponse struct {
	Consents []ConsentResponse `json:"consents"`
}

func toConsentResponse(state models.ConsentState) ConsentResponse {
	return ConsentResponse{
		Consent:      state.Record,
		View:         state.View,
		Presentation: state.Presentation,
	}
}

func toListResponse(states []models.ConsentState) ConsentListResponse {
	out := ConsentListResponse{Consents: make([]ConsentResponse, 0, len(states))}
	for _, state := range states {
		out.Consents = append(out.Consents, toConsentResponse(state))
	}
	return out
}
