package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
	dErrors "checkin/pkg/domain-errors"
)

func TestRenew(t *testing.T) {
	policy := standardPolicy()

	t.Run("grace renewal extends from now", func(t *testing.T) {
		record := yearGrant()
		now := date(2025, 1, 10)

		next, err := lifecycle.Renew(record, policy, now, ptr(12))

		require.NoError(t, err)
		require.NotNil(t, next.ExpiresAt)
		assert.True(t, date(2026, 1, 10).Equal(*next.ExpiresAt))
		assert.Equal(t, 1, next.RenewalCount)
		require.NotNil(t, next.RenewedAt)
		assert.True(t, now.Equal(*next.RenewedAt))
		assert.Equal(t, 12, *next.DurationMonths)
		assert.Equal(t, models.StatusActive, lifecycle.Compute(next, policy, now).Status)
	})

	t.Run("expiring renewal extends from the current expiry", func(t *testing.T) {
		next, err := lifecycle.Renew(yearGrant(), policy, date(2024, 12, 15), ptr(6))

		require.NoError(t, err)
		assert.True(t, date(2025, 7, 1).Equal(*next.ExpiresAt))
	})

	t.Run("expired renewal never compounds from a stale expiry", func(t *testing.T) {
		now := date(2025, 6, 1)
		next, err := lifecycle.Renew(yearGrant(), policy, now, ptr(1))

		require.NoError(t, err)
		assert.True(t, date(2025, 7, 1).Equal(*next.ExpiresAt))
		assert.True(t, next.ExpiresAt.After(now))
	})

	t.Run("input record is left untouched", func(t *testing.T) {
		record := yearGrant()
		before := record.Clone()

		_, err := lifecycle.Renew(record, policy, date(2025, 1, 10), nil)

		require.NoError(t, err)
		assert.Equal(t, before, record)
	})

	t.Run("count increments by exactly one each time", func(t *testing.T) {
		record := yearGrant()
		record.RenewalCount = 4

		next, err := lifecycle.Renew(record, policy, date(2025, 1, 10), nil)

		require.NoError(t, err)
		assert.Equal(t, 5, next.RenewalCount)
	})

	t.Run("clause version and withdrawal fields are preserved", func(t *testing.T) {
		record := yearGrant()
		record.ClauseVersion = "privacy-v3"

		next, err := lifecycle.Renew(record, policy, date(2025, 1, 10), nil)

		require.NoError(t, err)
		assert.Equal(t, "privacy-v3", next.ClauseVersion)
		assert.Nil(t, next.WithdrawnAt)
	})
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"mid month", date(2025, 3, 15), 1, date(2025, 4, 15)},
		{"month end clamps to february", date(2025, 1, 31), 1, date(2025, 2, 28)},
		{"leap year february", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"thirty day month", date(2025, 3, 31), 1, date(2025, 4, 30)},
		{"across a year", date(2024, 12, 31), 14, date(2026, 2, 28)},
		{"leap day plus a year", date(2024, 2, 29), 12, date(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := lifecycle.AddMonths(tc.from, tc.months)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}

	t.Run("time of day is kept", func(t *testing.T) {
		from := time.Date(2025, 1, 31, 14, 30, 5, 7, time.UTC)
		assert.Equal(t, time.Date(2025, 2, 28, 14, 30, 5, 7, time.UTC), lifecycle.AddMonths(from, 1))
	})
}

func TestRenew_MonthEndExpiry(t *testing.T) {
	record := yearGrant()
	record.ExpiresAt = ptr(date(2025, 1, 31))

	next, err := lifecycle.Renew(record, standardPolicy(), date(2025, 1, 20), ptr(1))

	require.NoError(t, err)
	assert.True(t, date(2025, 2, 28).Equal(*next.ExpiresAt), "got %s", next.ExpiresAt)
}

func TestRenew_Rejections(t *testing.T) {
	policy := standardPolicy()

	cases := []struct {
		name   string
		record func() *models.ConsentRecord
		now    time.Time
	}{
		{"active", yearGrant, date(2024, 6, 1)},
		{"never given", func() *models.ConsentRecord { return &models.ConsentRecord{} }, date(2024, 6, 1)},
		{"open ended", func() *models.ConsentRecord {
			return &models.ConsentRecord{Given: true, GivenAt: ptr(date(2024, 1, 1))}
		}, date(2024, 6, 1)},
		{"withdrawn", func() *models.ConsentRecord {
			r := yearGrant()
			r.WithdrawnAt = ptr(date(2024, 12, 1))
			return r
		}, date(2025, 1, 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := lifecycle.Renew(tc.record(), policy, tc.now, ptr(12))

			require.Error(t, err)
			assert.Nil(t, next)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		})
	}

	t.Run("transition is checked before duration", func(t *testing.T) {
		_, err := lifecycle.Renew(yearGrant(), policy, date(2024, 6, 1), ptr(99))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestResolveRenewalDuration(t *testing.T) {
	policy := standardPolicy()

	t.Run("explicit in range is used", func(t *testing.T) {
		months, err := lifecycle.ResolveRenewalDuration(yearGrant(), policy, ptr(24))
		require.NoError(t, err)
		assert.Equal(t, 24, months)
	})

	t.Run("explicit out of range fails with the range", func(t *testing.T) {
		for _, requested := range []int{0, 25, -1} {
			_, err := lifecycle.ResolveRenewalDuration(yearGrant(), policy, ptr(requested))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeDurationOutOfRange))
			assert.Contains(t, err.Error(), "between 1 and 24 months")
		}
	})

	t.Run("previous duration is reused", func(t *testing.T) {
		record := yearGrant()
		record.DurationMonths = ptr(6)
		months, err := lifecycle.ResolveRenewalDuration(record, policy, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, months)
	})

	t.Run("previous duration outside the current policy falls back to default", func(t *testing.T) {
		record := yearGrant()
		record.DurationMonths = ptr(36)
		months, err := lifecycle.ResolveRenewalDuration(record, policy, nil)
		require.NoError(t, err)
		assert.Equal(t, 12, months)
	})

	t.Run("missing previous duration uses default", func(t *testing.T) {
		record := yearGrant()
		record.DurationMonths = nil
		months, err := lifecycle.ResolveRenewalDuration(record, policy, nil)
		require.NoError(t, err)
		assert.Equal(t, 12, months)
	})
}

func TestWithdraw(t *testing.T) {
	now := date(2024, 12, 15)

	t.Run("sets withdrawal and keeps history", func(t *testing.T) {
		record := yearGrant()
		record.RenewalCount = 2

		next, changed, err := lifecycle.Withdraw(record, now, ptr("moving provider"))

		require.NoError(t, err)
		assert.True(t, changed)
		require.NotNil(t, next.WithdrawnAt)
		assert.True(t, now.Equal(*next.WithdrawnAt))
		assert.Equal(t, "moving provider", *next.WithdrawalReason)
		assert.True(t, date(2025, 1, 1).Equal(*next.ExpiresAt))
		assert.Equal(t, 2, next.RenewalCount)
		assert.Nil(t, record.WithdrawnAt, "input must not be mutated")
	})

	t.Run("works from every given status", func(t *testing.T) {
		for _, at := range []time.Time{date(2024, 6, 1), date(2024, 12, 15), date(2025, 1, 10), date(2025, 6, 1)} {
			_, changed, err := lifecycle.Withdraw(yearGrant(), at, nil)
			require.NoError(t, err)
			assert.True(t, changed)
		}
	})

	t.Run("second withdrawal is a no-op", func(t *testing.T) {
		first, _, err := lifecycle.Withdraw(yearGrant(), now, ptr("first"))
		require.NoError(t, err)

		second, changed, err := lifecycle.Withdraw(first, now.Add(time.Hour), ptr("second"))

		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, now.Equal(*second.WithdrawnAt))
		assert.Equal(t, "first", *second.WithdrawalReason)
	})

	t.Run("never given cannot be withdrawn", func(t *testing.T) {
		_, _, err := lifecycle.Withdraw(&models.ConsentRecord{}, now, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		_, _, err = lifecycle.Withdraw(nil, now, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("withdrawn consent can never be renewed", func(t *testing.T) {
		withdrawn, _, err := lifecycle.Withdraw(yearGrant(), now, nil)
		require.NoError(t, err)

		for _, at := range []time.Time{date(2024, 12, 20), date(2025, 1, 10), date(2026, 1, 1)} {
			_, err := lifecycle.Renew(withdrawn, standardPolicy(), at, nil)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
	})
}

func TestAutoRenewDue(t *testing.T) {
	policy := standardPolicy()
	autoRecord := func() *models.ConsentRecord {
		r := yearGrant()
		r.AutoRenew = true
		return r
	}
	due := func(r *models.ConsentRecord, p models.ConsentPolicy, now time.Time) bool {
		return lifecycle.AutoRenewDue(r, p, lifecycle.Compute(r, p, now))
	}

	assert.False(t, due(autoRecord(), policy, date(2024, 12, 15)), "17 days out is too early")
	assert.True(t, due(autoRecord(), policy, date(2024, 12, 25)), "7 days out is due")
	assert.True(t, due(autoRecord(), policy, date(2025, 1, 10)), "grace catches up")
	assert.False(t, due(autoRecord(), policy, date(2025, 2, 5)), "expired is never auto-renewed")
	assert.False(t, due(yearGrant(), policy, date(2024, 12, 25)), "patient did not opt in")

	noAuto := policy
	noAuto.AllowAutoRenewal = false
	assert.False(t, due(autoRecord(), noAuto, date(2024, 12, 25)), "policy forbids auto renewal")

	withdrawn := autoRecord()
	withdrawn.WithdrawnAt = ptr(date(2024, 12, 20))
	assert.False(t, due(withdrawn, policy, date(2024, 12, 25)))
}
