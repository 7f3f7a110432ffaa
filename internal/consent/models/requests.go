package models

import (
	"strings"
	"unicode/utf8"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// MaxWithdrawalReasonLength bounds the free-text reason kept on a withdrawal,
// counted in characters rather than bytes.
const MaxWithdrawalReasonLength = 500

// GrantRequest records the patient's answer on a submitted form.
type GrantRequest struct {
	SubmissionID   id.SubmissionID
	PatientID      id.PatientID
	FormTemplateID id.FormTemplateID
	OrganizationID id.OrganizationID
	ClauseVersion  string
	Given          bool
	DurationMonths *int
	AutoRenew      bool
}

func (r *GrantRequest) Normalize() {
	r.ClauseVersion = strings.TrimSpace(r.ClauseVersion)
}

func (r *GrantRequest) Validate() error {
	switch {
	case r.SubmissionID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "submission_id is required")
	case r.PatientID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "patient_id is required")
	case r.FormTemplateID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "form_template_id is required")
	case r.OrganizationID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "organization_id is required")
	case r.ClauseVersion == "":
		return dErrors.New(dErrors.CodeValidation, "clause_version is required")
	}
	if !r.Given && (r.DurationMonths != nil || r.AutoRenew) {
		return dErrors.New(dErrors.CodeValidation, "duration and auto-renew apply only to a given consent")
	}
	return nil
}

// RenewRequest asks for a renewal. Months nil means "same as before, if allowed".
type RenewRequest struct {
	Months  *int
	Trigger Trigger
}

func (r RenewRequest) Validate() error {
	if !r.Trigger.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown renewal trigger %q", r.Trigger)
	}
	return nil
}

// NormalizeReason trims a withdrawal reason and maps blank to nil.
func NormalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxWithdrawalReasonLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "withdrawal reason must be at most %d characters", MaxWithdrawalReasonLength)
	}
	return &trimmed, nil
}
