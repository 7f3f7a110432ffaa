package lifecycle

import (
	"time"

	"checkin/internal/consent/models"
	dErrors "checkin/pkg/domain-errors"
)

// AutoRenewLeadDays is how many days before expiry the scheduler may auto-renew.
const AutoRenewLeadDays = 7

// Renew computes the renewed state of record. It does not mutate record.
//
// Renewal is legal only in EXPIRING, GRACE and EXPIRED. The new expiry extends
// from the later of now and the current expiry, so an already-lapsed consent
// never compounds from its stale expiry. RenewalCount goes up by one and
// RenewedAt becomes now.
//
// Errors: CodeInvalidTransition when the status forbids renewal,
// CodeDurationOutOfRange when requestedMonths is outside the policy range.
func Renew(record *models.ConsentRecord, policy models.ConsentPolicy, now time.Time, requestedMonths *int) (*models.ConsentRecord, error) {
	view := Compute(record, policy, now)
	if err := checkRenewable(view.Status); err != nil {
		return nil, err
	}
	months, err := ResolveRenewalDuration(record, policy, requestedMonths)
	if err != nil {
		return nil, err
	}

	base := now
	if record.ExpiresAt != nil && record.ExpiresAt.After(now) {
		base = *record.ExpiresAt
	}
	expiresAt := AddMonths(base.UTC(), months)
	renewedAt := now.UTC()

	next := record.Clone()
	next.ExpiresAt = &expiresAt
	next.RenewedAt = &renewedAt
	next.DurationMonths = &months
	next.RenewalCount++
	return next, nil
}

// checkRenewable is the exhaustive transition table for renew.
func checkRenewable(s models.Status) error {
	switch s {
	case models.StatusExpiring, models.StatusGrace, models.StatusExpired:
		return nil
	case models.StatusActive:
		return dErrors.New(dErrors.CodeInvalidTransition, "consent is active and not yet due for renewal")
	case models.StatusNeverGiven:
		return dErrors.New(dErrors.CodeInvalidTransition, "consent was never given and cannot be renewed")
	case models.StatusWithdrawn:
		return dErrors.New(dErrors.CodeInvalidTransition, "withdrawn consent cannot be renewed")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unhandled consent status %s", s)
	}
}

// ResolveRenewalDuration picks the renewal length in months.
//
// An explicit request must lie in [MinConsentDuration, MaxConsentDuration];
// it is rejected rather than clamped. Without a request the previous grant's
// duration is reused while the current policy still allows it; otherwise the
// policy default applies.
func ResolveRenewalDuration(record *models.ConsentRecord, policy models.ConsentPolicy, requestedMonths *int) (int, error) {
	if requestedMonths != nil {
		if !policy.AllowsDuration(*requestedMonths) {
			return 0, dErrors.Newf(dErrors.CodeDurationOutOfRange,
				"renewal duration must be between %d and %d months",
				policy.MinConsentDuration, policy.MaxConsentDuration)
		}
		return *requestedMonths, nil
	}
	if record != nil && record.DurationMonths != nil && policy.AllowsDuration(*record.DurationMonths) {
		return *record.DurationMonths, nil
	}
	return policy.DefaultConsentDuration, nil
}

// AutoRenewDue reports whether the scheduler may auto-renew record now.
// Both the patient and the policy must opt in. The window is the last
// AutoRenewLeadDays before expiry, plus the grace period so a missed run can
// catch up; an EXPIRED consent is never auto-renewed.
func AutoRenewDue(record *models.ConsentRecord, policy models.ConsentPolicy, view models.StatusView) bool {
	if record == nil || !record.AutoRenew || !policy.AllowAutoRenewal {
		return false
	}
	switch view.Status {
	case models.StatusExpiring:
		return view.DaysRemaining != nil && *view.DaysRemaining <= AutoRenewLeadDays
	case models.StatusGrace:
		return true
	default:
		return false
	}
}
