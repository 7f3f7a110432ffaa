package lifecycle

import (
	"time"

	"checkin/internal/consent/models"
)

const (
	day = 24 * time.Hour

	// ExpiringWindowDays is how close to expiry a consent becomes EXPIRING.
	// It is a platform constant, not part of ConsentPolicy.
	ExpiringWindowDays = 30
)

// Compute derives the status view of record under policy at now.
//
// It is total: every input, including a nil record or a negative grace period,
// yields a complete view. Decision order, first match wins:
//
//  1. WITHDRAWN when WithdrawnAt is set, regardless of expiry or now
//  2. NEVER_GIVEN when consent was not given
//  3. ACTIVE with no days remaining when the grant never expires
//  4. by days remaining: ACTIVE (>30), EXPIRING (1..30), GRACE (until
//     expiresAt + grace inclusive), EXPIRED afterwards
//
// The instant now == expiresAt is GRACE and now == grace end is still GRACE.
func Compute(record *models.ConsentRecord, policy models.ConsentPolicy, now time.Time) models.StatusView {
	if record == nil {
		return neverGivenView()
	}
	if record.WithdrawnAt != nil {
		return models.StatusView{
			Status:         models.StatusWithdrawn,
			RenewalUrgency: models.UrgencyNone,
			Message:        withdrawnMessage(*record.WithdrawnAt),
		}
	}
	if !record.Given {
		return neverGivenView()
	}
	if record.ExpiresAt == nil {
		return models.StatusView{
			Status:         models.StatusActive,
			IsAccessible:   true,
			RenewalUrgency: models.UrgencyNone,
			Message:        openEndedMessage(),
		}
	}

	expiresAt := record.ExpiresAt.UTC()
	graceEnd := GracePeriodEndsAt(expiresAt, policy)
	days := ceilDays(expiresAt.Sub(now))

	view := models.StatusView{
		DaysRemaining:     &days,
		GracePeriodEndsAt: &graceEnd,
	}
	switch {
	case days > ExpiringWindowDays:
		view.Status = models.StatusActive
	case days > 0:
		view.Status = models.StatusExpiring
	case !now.After(graceEnd):
		view.Status = models.StatusGrace
	default:
		view.Status = models.StatusExpired
	}
	view.IsAccessible = view.Status.IsAccessible()
	view.CanRenew = canRenew(view.Status)
	view.RenewalUrgency = urgencyFor(view.Status, days)
	view.Message = timeBoundMessage(view.Status, expiresAt, graceEnd, days)
	return view
}

// GracePeriodEndsAt derives expiresAt + grace days. A negative grace period is
// treated as zero. Calendar arithmetic keeps very long grace periods from
// overflowing time.Duration.
func GracePeriodEndsAt(expiresAt time.Time, policy models.ConsentPolicy) time.Time {
	grace := policy.GracePeriodDays
	if grace < 0 {
		grace = 0
	}
	return expiresAt.AddDate(0, 0, grace)
}

// AddMonths adds months to t, clamping the day to the end of the target
// month: Jan 31 plus one month is Feb 28 (Feb 29 in a leap year), never
// early March.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	h, mi, sec := t.Clock()
	return time.Date(first.Year(), first.Month(), d, h, mi, sec, t.Nanosecond(), t.Location())
}

func neverGivenView() models.StatusView {
	return models.StatusView{
		Status:         models.StatusNeverGiven,
		RenewalUrgency: models.UrgencyNone,
		Message:        neverGivenMessage(),
	}
}

// ceilDays rounds a duration up to whole days. Integer division truncates
// toward zero, which is already the ceiling for negative durations.
func ceilDays(d time.Duration) int {
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

func canRenew(s models.Status) bool {
	switch s {
	case models.StatusExpiring, models.StatusGrace, models.StatusExpired:
		return true
	case models.StatusNeverGiven, models.StatusActive, models.StatusWithdrawn:
		return false
	default:
		return false
	}
}

func urgencyFor(s models.Status, days int) models.Urgency {
	switch s {
	case models.StatusExpiring:
		switch {
		case days >= 15:
			return models.UrgencyLow
		case days >= 8:
			return models.UrgencyMedium
		default:
			return models.UrgencyHigh
		}
	case models.StatusGrace:
		return models.UrgencyHigh
	case models.StatusExpired:
		return models.UrgencyCritical
	default:
		return models.UrgencyNone
	}
}
