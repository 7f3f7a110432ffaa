package models

import (
	"time"

	id "checkin/pkg/domain"
)

// ConsentRecord captures one patient's data-sharing consent, created once per
// form submission.
//
// Invariants:
//   - WithdrawnAt, once set, is never cleared
//   - ExpiresAt is non-nil only when Given is true; nil means the grant does not expire
//   - RenewalCount only ever increases, by exactly one per renewal
//   - ClauseVersion is fixed at grant time and survives renewal and withdrawal
//
// Records are mutated only through lifecycle.Renew and lifecycle.Withdraw and
// are never deleted: withdrawal is a state, not an erasure.
type ConsentRecord struct {
	ID             id.ConsentID      `json:"id"`
	SubmissionID   id.SubmissionID   `json:"submission_id"`
	PatientID      id.PatientID      `json:"patient_id"`
	FormTemplateID id.FormTemplateID `json:"form_template_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	ClauseVersion  string            `json:"clause_version"`

	Given            bool       `json:"given"`
	GivenAt          *time.Time `json:"given_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	WithdrawnAt      *time.Time `json:"withdrawn_at"`
	WithdrawalReason *string    `json:"withdrawal_reason"`
	DurationMonths   *int       `json:"duration_months"`
	AutoRenew        bool       `json:"auto_renew"`
	RenewedAt        *time.Time `json:"renewed_at"`
	RenewalCount     int        `json:"renewal_count"`

	CreatedAt time.Time `json:"created_at"`
}

// Version is the optimistic-concurrency token of a record: the tuple every
// transition reads and the store compares before committing.
type Version struct {
	ExpiresAt    *time.Time
	WithdrawnAt  *time.Time
	RenewalCount int
}

// Version snapshots the concurrency token.
func (c *ConsentRecord) Version() Version {
	return Version{
		ExpiresAt:    cloneTime(c.ExpiresAt),
		WithdrawnAt:  cloneTime(c.WithdrawnAt),
		RenewalCount: c.RenewalCount,
	}
}

// Matches reports whether the record still carries version v.
func (c *ConsentRecord) Matches(v Version) bool {
	return c.RenewalCount == v.RenewalCount &&
		sameInstant(c.ExpiresAt, v.ExpiresAt) &&
		sameInstant(c.WithdrawnAt, v.WithdrawnAt)
}

// IsWithdrawn reports whether the record has been withdrawn.
func (c *ConsentRecord) IsWithdrawn() bool {
	return c.WithdrawnAt != nil
}

// Clone returns a deep copy so callers can compute a new state without
// aliasing the stored one.
func (c *ConsentRecord) Clone() *ConsentRecord {
	if c == nil {
		return nil
	}
	out := *c
	out.GivenAt = cloneTime(c.GivenAt)
	out.ExpiresAt = cloneTime(c.ExpiresAt)
	out.WithdrawnAt = cloneTime(c.WithdrawnAt)
	out.RenewedAt = cloneTime(c.RenewedAt)
	if c.WithdrawalReason != nil {
		reason := *c.WithdrawalReason
		out.WithdrawalReason = &reason
	}
	if c.DurationMonths != nil {
		months := *c.DurationMonths
		out.DurationMonths = &months
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
