package lifecycle

import (
	"fmt"
	"time"

	"checkin/internal/consent/models"
)

// dateLayout renders dates in messages shown to patients and used in reminders.
const dateLayout = "2 January 2006"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func neverGivenMessage() string {
	return "Consent has not been given."
}

func openEndedMessage() string {
	return "Consent is active and does not expire."
}

func withdrawnMessage(at time.Time) string {
	return fmt.Sprintf("Consent was withdrawn on %s. Access to your data has ended.", formatDate(at))
}

func timeBoundMessage(s models.Status, expiresAt, graceEnd time.Time, days int) string {
	switch s {
	case models.StatusActive:
		return fmt.Sprintf("Consent is active until %s.", formatDate(expiresAt))
	case models.StatusExpiring:
		return fmt.Sprintf("Consent expires in %s on %s.", pluralDays(days), formatDate(expiresAt))
	case models.StatusGrace:
		return fmt.Sprintf("Consent expired on %s. Access continues during the grace period until %s.",
			formatDate(expiresAt), formatDate(graceEnd))
	case models.StatusExpired:
		return fmt.Sprintf("Consent expired on %s and the grace period ended on %s. Renew to restore access.",
			formatDate(expiresAt), formatDate(graceEnd))
	default:
		return ""
	}
}
