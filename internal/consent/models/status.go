package models

import (
	"fmt"
)

// Status is the derived lifecycle state of a consent. It is never persisted;
// every read recomputes it from the record's timestamps.
//
// The set is closed. StatusCount bounds lookup tables keyed by Status so that a
// new value without a table entry fails compilation (see lifecycle.Present).
type Status uint8

const (
	StatusNeverGiven Status = iota
	StatusActive
	StatusExpiring
	StatusGrace
	StatusExpired
	StatusWithdrawn

	// StatusCount is the number of statuses. Keep it last.
	StatusCount
)

var statusTokens = [StatusCount]string{
	StatusNeverGiven: "NEVER_GIVEN",
	StatusActive:     "ACTIVE",
	StatusExpiring:   "EXPIRING",
	StatusGrace:      "GRACE",
	StatusExpired:    "EXPIRED",
	StatusWithdrawn:  "WITHDRAWN",
}

// IsValid reports whether s is one of the six statuses.
func (s Status) IsValid() bool {
	return s < StatusCount
}

// IsAccessible reports whether personal data may be read in this status.
func (s Status) IsAccessible() bool {
	switch s {
	case StatusActive, StatusExpiring, StatusGrace:
		return true
	case StatusNeverGiven, StatusExpired, StatusWithdrawn:
		return false
	default:
		return false
	}
}

func (s Status) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusTokens[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid consent status %d", uint8(s))
	}
	return []byte(statusTokens[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a wire token back to a Status.
func ParseStatus(token string) (Status, error) {
	for i, t := range statusTokens {
		if t == token {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown consent status %q", token)
}

// Urgency is the coarse renewal signal used for reminder intensity and UI emphasis.
type Urgency uint8

const (
	UrgencyNone Urgency = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical

	UrgencyCount
)

var urgencyTokens = [UrgencyCount]string{
	UrgencyNone:     "none",
	UrgencyLow:      "low",
	UrgencyMedium:   "medium",
	UrgencyHigh:     "high",
	UrgencyCritical: "critical",
}

func (u Urgency) IsValid() bool {
	return u < UrgencyCount
}

func (u Urgency) String() string {
	if !u.IsValid() {
		return fmt.Sprintf("Urgency(%d)", uint8(u))
	}
	return urgencyTokens[u]
}

func (u Urgency) MarshalText() ([]byte, error) {
	if !u.IsValid() {
		return nil, fmt.Errorf("invalid renewal urgency %d", uint8(u))
	}
	return []byte(urgencyTokens[u]), nil
}

func (u *Urgency) UnmarshalText(b []byte) error {
	for i, t := range urgencyTokens {
		if t == string(b) {
			*u = Urgency(i)
			return nil
		}
	}
	return fmt.Errorf("unknown renewal urgency %q", string(b))
}
