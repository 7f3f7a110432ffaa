package lifecycle

import (
	"fmt"

	"checkin/internal/consent/models"
)

// ReminderOffset is a reminder bucket. Buckets are ordered in time: each value
// fires later in a consent's life than the one before it.
type ReminderOffset uint8

const (
	Reminder30Days ReminderOffset = iota
	Reminder14Days
	Reminder7Days
	Reminder1Day
	ReminderGraceEntry
	ReminderGraceExpiry

	reminderOffsetCount
)

var reminderTokens = [reminderOffsetCount]string{
	Reminder30Days:      "30d",
	Reminder14Days:      "14d",
	Reminder7Days:       "7d",
	Reminder1Day:        "1d",
	ReminderGraceEntry:  "grace_entry",
	ReminderGraceExpiry: "grace_expiry",
}

func (o ReminderOffset) String() string {
	if o >= reminderOffsetCount {
		return fmt.Sprintf("ReminderOffset(%d)", uint8(o))
	}
	return reminderTokens[o]
}

// ParseReminderOffset maps a stored token back to an offset.
func ParseReminderOffset(token string) (ReminderOffset, error) {
	for i, t := range reminderTokens {
		if t == token {
			return ReminderOffset(i), nil
		}
	}
	return 0, fmt.Errorf("unknown reminder offset %q", token)
}

// ReminderDue returns the reminder that should fire now, or nil.
//
// The current bucket is the latest one the consent has reached: the 30/14/7/1
// day thresholds while EXPIRING, grace entry while in GRACE and grace expiry
// once EXPIRED. It is returned only when strictly later than lastSent, so
// calling again with the same lastSent never re-signals, and buckets skipped
// while the scheduler was not running are not back-filled.
func ReminderDue(daysRemaining *int, status models.Status, lastSent *ReminderOffset) *ReminderOffset {
	current, ok := currentBucket(daysRemaining, status)
	if !ok {
		return nil
	}
	if lastSent != nil && *lastSent >= current {
		return nil
	}
	return &current
}

func currentBucket(daysRemaining *int, status models.Status) (ReminderOffset, bool) {
	switch status {
	case models.StatusActive, models.StatusExpiring:
		if daysRemaining == nil {
			return 0, false
		}
		switch d := *daysRemaining; {
		case d <= 0:
			return 0, false
		case d <= 1:
			return Reminder1Day, true
		case d <= 7:
			return Reminder7Days, true
		case d <= 14:
			return Reminder14Days, true
		case d <= 30:
			return Reminder30Days, true
		default:
			return 0, false
		}
	case models.StatusGrace:
		return ReminderGraceEntry, true
	case models.StatusExpired:
		return ReminderGraceExpiry, true
	case models.StatusNeverGiven, models.StatusWithdrawn:
		return 0, false
	default:
		return 0, false
	}
}
