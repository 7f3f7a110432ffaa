package lifecycle

import (
	"time"

	"checkin/internal/consent/models"
	dErrors "checkin/pkg/domain-errors"
)

// Withdraw computes the withdrawn state of record. It does not mutate record.
//
// Withdrawing an already withdrawn record is an idempotent no-op: it returns
// an unchanged copy with changed=false and no error. A consent that was never
// given cannot be withdrawn. Expiry, renewal count and clause version are kept
// as history.
func Withdraw(record *models.ConsentRecord, now time.Time, reason *string) (next *models.ConsentRecord, changed bool, err error) {
	if record == nil {
		return nil, false, dErrors.New(dErrors.CodeInvalidTransition, "consent was never given and cannot be withdrawn")
	}
	// Grace length does not affect which statuses may be withdrawn.
	status := Compute(record, models.ConsentPolicy{}, now).Status
	switch status {
	case models.StatusWithdrawn:
		return record.Clone(), false, nil
	case models.StatusNeverGiven:
		return nil, false, dErrors.New(dErrors.CodeInvalidTransition, "consent was never given and cannot be withdrawn")
	case models.StatusActive, models.StatusExpiring, models.StatusGrace, models.StatusExpired:
	default:
		return nil, false, dErrors.Newf(dErrors.CodeInvariantViolation, "unhandled consent status %s", status)
	}

	withdrawnAt := now.UTC()
	next = record.Clone()
	next.WithdrawnAt = &withdrawnAt
	if reason != nil {
		r := *reason
		next.WithdrawalReason = &r
	}
	return next, true, nil
}
