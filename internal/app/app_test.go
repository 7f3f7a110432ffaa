package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consenthandler "checkin/internal/consent/handler"
	"checkin/internal/consent/models"
	"checkin/internal/platform/config"
	"checkin/internal/platform/metrics"
	"checkin/internal/reminder"
	id "checkin/pkg/domain"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/testutil"
)

// Collectors register globally, so the whole process is assembled once and
// every scenario runs against it.
func TestInMemoryApplication(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Kafka:     config.KafkaConfig{ReminderTopic: "consent.reminders", AuditTopic: "consent.audit"},
		Sweeper:   config.SweeperConfig{PageSize: 50, Concurrency: 2},
		Consent:   config.ConsentConfig{MaxTransitionAttempts: 3, AccessCheckSampleRate: 1},
		RateLimit: config.RateLimitConfig{Window: time.Hour, WritePerWindow: 5},
	}

	infra, err := Open(ctx, cfg, logger)
	require.NoError(t, err)
	defer infra.Close()
	require.Nil(t, infra.DB)

	consent, err := NewConsent(cfg, infra, NewMetrics(), logger)
	require.NoError(t, err)
	assert.Nil(t, NewRelay(cfg, infra, consent, nil, logger), "no relay without an outbox")

	router := NewRouter(cfg, infra, consent, metrics.New(), logger)
	patient := id.PatientID(uuid.New())
	template := id.FormTemplateID(uuid.New())

	t.Run("health and metrics", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "status", "ok")

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("staff sets the form template policy", func(t *testing.T) {
		body := map[string]any{
			"grace_period_days":        30,
			"default_consent_duration": 12,
			"min_consent_duration":     1,
			"max_consent_duration":     24,
			"allow_auto_renewal":       false,
		}
		path := "/form-templates/" + template.String() + "/consent-policy"

		rr := testutil.DoRequest(router, testutil.AsPatient(testutil.NewJSONRequest(t, http.MethodPut, path, body), patient))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

		rr = testutil.DoRequest(router, testutil.AsStaff(testutil.NewJSONRequest(t, http.MethodPut, path, body), "staff-7"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	grant := func(t *testing.T, months int) consenthandler.ConsentResponse {
		t.Helper()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/consents", map[string]any{
			"submission_id":    uuid.NewString(),
			"form_template_id": template.String(),
			"organization_id":  uuid.NewString(),
			"clause_version":   "privacy-v3",
			"given":            true,
			"duration_months":  months,
		})
		rr := testutil.DoRequest(router, testutil.AsPatient(req, patient))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		return *testutil.UnmarshalResponse[consenthandler.ConsentResponse](t, rr)
	}

	t.Run("grant, check, withdraw", func(t *testing.T) {
		granted := grant(t, 12)
		require.NotNil(t, granted.Consent)
		assert.Equal(t, models.StatusActive, granted.View.Status)
		consentPath := "/consents/" + granted.Consent.ID.String()

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, consentPath+"/access"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		req := testutil.NewJSONRequest(t, http.MethodPost, consentPath+"/withdraw", map[string]any{"reason": "  moving clinics  "})
		rr = testutil.DoRequest(router, testutil.AsPatient(req, patient))
		testutil.AssertStatus(t, rr, http.StatusOK)
		withdrawn := testutil.UnmarshalResponse[consenthandler.ConsentResponse](t, rr)
		assert.Equal(t, models.StatusWithdrawn, withdrawn.View.Status)
		require.NotNil(t, withdrawn.Consent.WithdrawalReason)
		assert.Equal(t, "moving clinics", *withdrawn.Consent.WithdrawalReason)

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, consentPath+"/access"))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "missing_consent")

		req = testutil.NewJSONRequest(t, http.MethodPost, consentPath+"/renew", map[string]any{})
		rr = testutil.DoRequest(router, testutil.AsPatient(req, patient))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")

		events, err := consent.Audit.ListByPatient(ctx, patient)
		require.NoError(t, err)
		var compliance []string
		for _, e := range events {
			if e.Category == audit.CategoryCompliance {
				compliance = append(compliance, e.Action)
			}
		}
		assert.Equal(t, []string{
			string(audit.EventConsentGranted),
			string(audit.EventConsentWithdrawn),
		}, compliance)
	})

	t.Run("patients only list their own consents", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/patients/"+patient.String()+"/consents")
		rr := testutil.DoRequest(router, testutil.AsPatient(req, id.PatientID(uuid.New())))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

		req = testutil.NewRequest(t, http.MethodGet, "/patients/"+patient.String()+"/consents")
		rr = testutil.DoRequest(router, testutil.AsPatient(req, patient))
		testutil.AssertStatus(t, rr, http.StatusOK)
		list := testutil.UnmarshalResponse[consenthandler.ConsentListResponse](t, rr)
		assert.Len(t, list.Consents, 1)
	})

	t.Run("sweeper reminds through the same stores", func(t *testing.T) {
		grant(t, 1)
		sweeper, err := NewSweeper(cfg, infra, consent, reminder.NewMetrics(), logger)
		require.NoError(t, err)

		report, err := sweeper.Run(ctx, time.Now().UTC().AddDate(0, 0, 20))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Scanned, "the withdrawn consent is not time-bound")
		assert.Equal(t, 1, report.RemindersSent)
	})

	t.Run("each patient has their own write allowance", func(t *testing.T) {
		busy := id.PatientID(uuid.New())
		renew := func() *http.Request {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/consents/"+uuid.NewString()+"/renew", map[string]any{})
			return testutil.AsPatient(req, busy)
		}
		for range 5 {
			testutil.AssertStatus(t, testutil.DoRequest(router, renew()), http.StatusNotFound)
		}
		rr := testutil.DoRequest(router, renew())
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/consents/"+uuid.NewString()+"/renew", map[string]any{})
		rr = testutil.DoRequest(router, testutil.AsPatient(req, id.PatientID(uuid.New())))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
