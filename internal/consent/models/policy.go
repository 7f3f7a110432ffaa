package models

import (
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// ConsentPolicy is the per-form-template consent configuration. The lifecycle
// engine only reads it.
type ConsentPolicy struct {
	FormTemplateID         id.FormTemplateID `json:"form_template_id"`
	GracePeriodDays        int               `json:"grace_period_days"`
	DefaultConsentDuration int               `json:"default_consent_duration"`
	MinConsentDuration     int               `json:"min_consent_duration"`
	MaxConsentDuration     int               `json:"max_consent_duration"`
	AllowAutoRenewal       bool              `json:"allow_auto_renewal"`
}

// Validate enforces 0 < min <= default <= max and a non-negative grace period.
func (p ConsentPolicy) Validate() error {
	if p.GracePeriodDays < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "grace period days cannot be negative")
	}
	if p.MinConsentDuration <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "minimum consent duration must be positive")
	}
	if p.MaxConsentDuration < p.MinConsentDuration {
		return dErrors.New(dErrors.CodeInvariantViolation, "maximum consent duration is below the minimum")
	}
	if p.DefaultConsentDuration < p.MinConsentDuration || p.DefaultConsentDuration > p.MaxConsentDuration {
		return dErrors.New(dErrors.CodeInvariantViolation, "default consent duration is outside the allowed range")
	}
	return nil
}

// AllowsDuration reports whether months is inside [min, max].
func (p ConsentPolicy) AllowsDuration(months int) bool {
	return months >= p.MinConsentDuration && months <= p.MaxConsentDuration
}
