package models

import "time"

// StatusView is the complete, freshly derived picture of a consent at one instant.
type StatusView struct {
	Status            Status     `json:"status"`
	IsAccessible      bool       `json:"is_accessible"`
	DaysRemaining     *int       `json:"days_remaining"`
	GracePeriodEndsAt *time.Time `json:"grace_period_ends_at"`
	CanRenew          bool       `json:"can_renew"`
	RenewalUrgency    Urgency    `json:"renewal_urgency"`
	Message           string     `json:"message"`
}

// Presentation is the display label and color token for a status.
type Presentation struct {
	Label      string `json:"label"`
	ColorToken string `json:"color_token"`
}

// ConsentState bundles a record with the view derived from it at one instant.
// It is what the read and transition paths hand back to callers.
type ConsentState struct {
	Record       *ConsentRecord
	View         StatusView
	Presentation Presentation
}

// Trigger names who initiated a renewal.
type Trigger string

const (
	TriggerPatient     Trigger = "patient"
	TriggerAutoRenewal Trigger = "auto_renewal"
)

func (t Trigger) IsValid() bool {
	return t == TriggerPatient || t == TriggerAutoRenewal
}
