package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func standardPolicy() models.ConsentPolicy {
	return models.ConsentPolicy{
		GracePeriodDays:        30,
		DefaultConsentDuration: 12,
		MinConsentDuration:     1,
		MaxConsentDuration:     24,
		AllowAutoRenewal:       true,
	}
}

// yearGrant is given 2024-01-01 and expires 2025-01-01.
func yearGrant() *models.ConsentRecord {
	return &models.ConsentRecord{
		Given:          true,
		GivenAt:        ptr(date(2024, 1, 1)),
		ExpiresAt:      ptr(date(2025, 1, 1)),
		DurationMonths: ptr(12),
	}
}

func TestCompute_Scenarios(t *testing.T) {
	policy := standardPolicy()

	t.Run("two weeks before expiry is expiring", func(t *testing.T) {
		view := lifecycle.Compute(yearGrant(), policy, date(2024, 12, 15))

		assert.Equal(t, models.StatusExpiring, view.Status)
		require.NotNil(t, view.DaysRemaining)
		assert.Equal(t, 17, *view.DaysRemaining)
		assert.True(t, view.CanRenew)
		assert.True(t, view.IsAccessible)
		assert.Equal(t, models.UrgencyLow, view.RenewalUrgency)
		assert.Equal(t, "Consent expires in 17 days on 1 January 2025.", view.Message)
	})

	t.Run("nine days after expiry is in grace", func(t *testing.T) {
		view := lifecycle.Compute(yearGrant(), policy, date(2025, 1, 10))

		assert.Equal(t, models.StatusGrace, view.Status)
		require.NotNil(t, view.DaysRemaining)
		assert.Equal(t, -9, *view.DaysRemaining)
		require.NotNil(t, view.GracePeriodEndsAt)
		assert.True(t, date(2025, 1, 31).Equal(*view.GracePeriodEndsAt))
		assert.True(t, view.IsAccessible)
		assert.True(t, view.CanRenew)
		assert.Equal(t, models.UrgencyHigh, view.RenewalUrgency)
		assert.Equal(t, "Consent expired on 1 January 2025. Access continues during the grace period until 31 January 2025.", view.Message)
	})

	t.Run("after the grace period it is expired", func(t *testing.T) {
		view := lifecycle.Compute(yearGrant(), policy, date(2025, 2, 5))

		assert.Equal(t, models.StatusExpired, view.Status)
		assert.False(t, view.IsAccessible)
		assert.True(t, view.CanRenew)
		assert.Equal(t, models.UrgencyCritical, view.RenewalUrgency)
	})

	t.Run("withdrawal overrides an otherwise active consent", func(t *testing.T) {
		record := yearGrant()
		record.WithdrawnAt = ptr(date(2024, 6, 1))

		view := lifecycle.Compute(record, policy, date(2024, 12, 15))

		assert.Equal(t, models.StatusWithdrawn, view.Status)
		assert.False(t, view.IsAccessible)
		assert.False(t, view.CanRenew)
		assert.Nil(t, view.DaysRemaining)
		assert.Nil(t, view.GracePeriodEndsAt)
		assert.Equal(t, models.UrgencyNone, view.RenewalUrgency)
		assert.Equal(t, "Consent was withdrawn on 1 June 2024. Access to your data has ended.", view.Message)
	})

	t.Run("declined consent is never given", func(t *testing.T) {
		view := lifecycle.Compute(&models.ConsentRecord{Given: false}, policy, date(2024, 12, 15))

		assert.Equal(t, models.StatusNeverGiven, view.Status)
		assert.False(t, view.IsAccessible)
		assert.False(t, view.CanRenew)
		assert.Nil(t, view.DaysRemaining)
	})
}

func TestCompute_Boundaries(t *testing.T) {
	policy := standardPolicy()
	expiresAt := date(2025, 1, 1)
	graceEnd := date(2025, 1, 31)

	cases := []struct {
		name   string
		now    time.Time
		status models.Status
		days   int
	}{
		{"one nanosecond before expiry is expiring", expiresAt.Add(-time.Nanosecond), models.StatusExpiring, 1},
		{"exact expiry instant begins grace", expiresAt, models.StatusGrace, 0},
		{"exact grace end is still grace", graceEnd, models.StatusGrace, -30},
		{"one second after grace end is expired", graceEnd.Add(time.Second), models.StatusExpired, -30},
		{"exactly thirty days out is expiring", expiresAt.Add(-30 * 24 * time.Hour), models.StatusExpiring, 30},
		{"just over thirty days out is active", expiresAt.Add(-30*24*time.Hour - time.Nanosecond), models.StatusActive, 31},
		{"thirty one days out is active", expiresAt.Add(-31 * 24 * time.Hour), models.StatusActive, 31},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view := lifecycle.Compute(yearGrant(), policy, tc.now)

			assert.Equal(t, tc.status, view.Status)
			require.NotNil(t, view.DaysRemaining)
			assert.Equal(t, tc.days, *view.DaysRemaining)
		})
	}
}

func TestCompute_Urgency(t *testing.T) {
	policy := standardPolicy()
	expiresAt := date(2025, 1, 1)

	cases := []struct {
		days    int
		urgency models.Urgency
	}{
		{60, models.UrgencyNone},
		{30, models.UrgencyLow},
		{15, models.UrgencyLow},
		{14, models.UrgencyMedium},
		{8, models.UrgencyMedium},
		{7, models.UrgencyHigh},
		{1, models.UrgencyHigh},
	}
	for _, tc := range cases {
		now := expiresAt.Add(-time.Duration(tc.days) * 24 * time.Hour)
		view := lifecycle.Compute(yearGrant(), policy, now)
		assert.Equal(t, tc.urgency, view.RenewalUrgency, "days=%d", tc.days)
	}
}

func TestCompute_OpenEndedGrant(t *testing.T) {
	record := &models.ConsentRecord{Given: true, GivenAt: ptr(date(2024, 1, 1))}

	view := lifecycle.Compute(record, standardPolicy(), date(2030, 1, 1))

	assert.Equal(t, models.StatusActive, view.Status)
	assert.True(t, view.IsAccessible)
	assert.False(t, view.CanRenew)
	assert.Nil(t, view.DaysRemaining)
	assert.Nil(t, view.GracePeriodEndsAt)
	assert.Equal(t, models.UrgencyNone, view.RenewalUrgency)
}

func TestCompute_DegenerateInputs(t *testing.T) {
	t.Run("nil record is never given", func(t *testing.T) {
		view := lifecycle.Compute(nil, standardPolicy(), date(2025, 1, 1))
		assert.Equal(t, models.StatusNeverGiven, view.Status)
	})

	t.Run("negative grace is treated as none", func(t *testing.T) {
		policy := standardPolicy()
		policy.GracePeriodDays = -5

		atExpiry := lifecycle.Compute(yearGrant(), policy, date(2025, 1, 1))
		after := lifecycle.Compute(yearGrant(), policy, date(2025, 1, 1).Add(time.Second))

		assert.Equal(t, models.StatusGrace, atExpiry.Status)
		assert.Equal(t, models.StatusExpired, after.Status)
	})

	t.Run("very long grace stays in grace after expiry", func(t *testing.T) {
		policy := standardPolicy()
		policy.GracePeriodDays = 200000

		view := lifecycle.Compute(yearGrant(), policy, date(2025, 1, 10))

		assert.Equal(t, models.StatusGrace, view.Status)
		assert.True(t, view.IsAccessible)
		require.NotNil(t, view.GracePeriodEndsAt)
		assert.True(t, view.GracePeriodEndsAt.After(date(2025, 1, 1)))
		assert.True(t, date(2025, 1, 1).AddDate(0, 0, 200000).Equal(*view.GracePeriodEndsAt))
	})

	t.Run("withdrawn wins even without a grant", func(t *testing.T) {
		record := &models.ConsentRecord{Given: false, WithdrawnAt: ptr(date(2024, 6, 1))}
		view := lifecycle.Compute(record, standardPolicy(), date(2025, 1, 1))
		assert.Equal(t, models.StatusWithdrawn, view.Status)
	})

	t.Run("non-UTC expiry reports grace end in UTC", func(t *testing.T) {
		loc := time.FixedZone("SAST", 2*60*60)
		record := yearGrant()
		record.ExpiresAt = ptr(time.Date(2025, 1, 1, 2, 0, 0, 0, loc))

		view := lifecycle.Compute(record, standardPolicy(), date(2025, 1, 10))

		require.NotNil(t, view.GracePeriodEndsAt)
		assert.Equal(t, time.UTC, view.GracePeriodEndsAt.Location())
		assert.True(t, date(2025, 1, 31).Equal(*view.GracePeriodEndsAt))
	})
}

func TestCompute_Properties(t *testing.T) {
	policy := standardPolicy()
	start := date(2024, 10, 1)
	withdrawnAt := date(2024, 11, 1)

	// Sweep a year in 6-hour steps across every status.
	for now := start; now.Before(date(2025, 3, 1)); now = now.Add(6 * time.Hour) {
		view := lifecycle.Compute(yearGrant(), policy, now)

		accessible := view.Status == models.StatusActive ||
			view.Status == models.StatusExpiring ||
			view.Status == models.StatusGrace
		require.Equal(t, accessible, view.IsAccessible, "now=%s status=%s", now, view.Status)

		renewable := view.Status == models.StatusExpiring ||
			view.Status == models.StatusGrace ||
			view.Status == models.StatusExpired
		require.Equal(t, renewable, view.CanRenew, "now=%s status=%s", now, view.Status)

		require.Equal(t, view, lifecycle.Compute(yearGrant(), policy, now), "compute must be deterministic")

		withdrawn := yearGrant()
		withdrawn.WithdrawnAt = &withdrawnAt
		require.Equal(t, models.StatusWithdrawn, lifecycle.Compute(withdrawn, policy, now).Status)
	}
}

func TestCompute_DoesNotMutateRecord(t *testing.T) {
	record := yearGrant()
	before := record.Clone()

	lifecycle.Compute(record, standardPolicy(), date(2025, 1, 10))

	assert.Equal(t, before, record)
}
