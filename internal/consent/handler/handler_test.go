package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/consent/handler/mocks"
	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
	"checkin/internal/platform/middleware"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service
type ConsentHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	patient id.PatientID
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func (s *ConsentHandlerSuite) SetupTest()    { s.setup() }
func (s *ConsentHandlerSuite) SetupSubTest() { s.setup() }

func (s *ConsentHandlerSuite) setup() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.patient = id.PatientID(uuid.New())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger, nil).Register(s.router)
}

// do sends a request as the test patient unless asPatient is false.
func (s *ConsentHandlerSuite) do(method, path string, body any, asPatient bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asPatient {
		req.Header.Set(middleware.PatientIDHeader, s.patient.String())
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func graceState(patientID id.PatientID) models.ConsentState {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	givenAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	record := &models.ConsentRecord{
		ID:             id.ConsentID(uuid.New()),
		SubmissionID:   id.SubmissionID(uuid.New()),
		PatientID:      patientID,
		FormTemplateID: id.FormTemplateID(uuid.New()),
		OrganizationID: id.OrganizationID(uuid.New()),
		ClauseVersion:  "privacy-v3",
		Given:          true,
		GivenAt:        &givenAt,
		ExpiresAt:      &expiresAt,
		CreatedAt:      givenAt,
	}
	policy := models.ConsentPolicy{GracePeriodDays: 30, DefaultConsentDuration: 12, MinConsentDuration: 1, MaxConsentDuration: 24}
	view := lifecycle.Compute(record, policy, now)
	return models.ConsentState{Record: record, View: view, Presentation: lifecycle.Present(view.Status)}
}

func (s *ConsentHandlerSuite) TestGetConsent() {
	s.Run("returns record, view and presentation", func() {
		state := graceState(s.patient)
		s.service.EXPECT().Status(gomock.Any(), state.Record.ID).Return(state, nil)

		w := s.do(http.MethodGet, "/consents/"+state.Record.ID.String(), nil, true)
		s.Equal(http.StatusOK, w.Code)

		var resp map[string]map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("GRACE", resp["view"]["status"])
		s.Equal(true, resp["view"]["is_accessible"])
		s.Equal(float64(-9), resp["view"]["days_remaining"])
		s.Equal("2026-01-31T00:00:00Z", resp["view"]["grace_period_ends_at"])
		s.Equal("high", resp["view"]["renewal_urgency"])
		s.Equal("Grace Period", resp["presentation"]["label"])
		s.Equal("privacy-v3", resp["consent"]["clause_version"])
	})

	s.Run("malformed id is a bad request", func() {
		w := s.do(http.MethodGet, "/consents/not-a-uuid", nil, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown consent is not found", func() {
		consentID := id.ConsentID(uuid.New())
		s.service.EXPECT().Status(gomock.Any(), consentID).Return(models.ConsentState{}, dErrors.New(dErrors.CodeNotFound, "consent not found"))

		w := s.do(http.MethodGet, "/consents/"+consentID.String(), nil, false)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestGrant() {
	body := map[string]any{
		"submission_id":    uuid.NewString(),
		"form_template_id": uuid.NewString(),
		"organization_id":  uuid.NewString(),
		"clause_version":   " privacy-v3 ",
		"given":            true,
		"duration_months":  6,
	}

	s.Run("patient comes from the caller identity", func() {
		s.service.EXPECT().Grant(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req models.GrantRequest) (models.ConsentState, error) {
				s.Equal(s.patient, req.PatientID)
				s.Equal("privacy-v3", req.ClauseVersion)
				s.Require().NotNil(req.DurationMonths)
				s.Equal(6, *req.DurationMonths)
				return graceState(s.patient), nil
			})

		w := s.do(http.MethodPost, "/consents", body, true)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("anonymous caller is unauthorized", func() {
		w := s.do(http.MethodPost, "/consents", body, false)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("missing given flag is a validation error", func() {
		w := s.do(http.MethodPost, "/consents", map[string]any{
			"submission_id":    uuid.NewString(),
			"form_template_id": uuid.NewString(),
			"organization_id":  uuid.NewString(),
			"clause_version":   "privacy-v3",
		}, true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "validation_error")
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(http.MethodPost, "/consents", map[string]any{"patient_id": uuid.NewString()}, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestWithdraw() {
	s.Run("blank reason is dropped", func() {
		state := graceState(s.patient)
		s.service.EXPECT().Withdraw(gomock.Any(), state.Record.ID, (*string)(nil)).Return(state, nil)

		w := s.do(http.MethodPost, "/consents/"+state.Record.ID.String()+"/withdraw", map[string]any{"reason": "   "}, true)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("empty body is accepted", func() {
		state := graceState(s.patient)
		s.service.EXPECT().Withdraw(gomock.Any(), state.Record.ID, (*string)(nil)).Return(state, nil)

		w := s.do(http.MethodPost, "/consents/"+state.Record.ID.String()+"/withdraw", nil, true)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("another patient's consent is forbidden", func() {
		consentID := id.ConsentID(uuid.New())
		s.service.EXPECT().Withdraw(gomock.Any(), consentID, gomock.Any()).
			Return(models.ConsentState{}, dErrors.New(dErrors.CodeForbidden, "consent belongs to another patient"))

		w := s.do(http.MethodPost, "/consents/"+consentID.String()+"/withdraw", nil, true)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestRenewErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid transition", dErrors.New(dErrors.CodeInvalidTransition, "withdrawn consent cannot be renewed"), http.StatusConflict, "invalid_transition"},
		{"duration out of range", dErrors.New(dErrors.CodeDurationOutOfRange, "renewal duration must be between 1 and 24 months"), http.StatusUnprocessableEntity, "duration_out_of_range"},
		{"stale state", dErrors.New(dErrors.CodeStaleConsentState, "consent changed concurrently"), http.StatusConflict, "stale_consent_state"},
		{"internal", dErrors.New(dErrors.CodeInternal, "db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			consentID := id.ConsentID(uuid.New())
			s.service.EXPECT().Renew(gomock.Any(), consentID, gomock.Any()).Return(models.ConsentState{}, tc.err)

			w := s.do(http.MethodPost, "/consents/"+consentID.String()+"/renew", map[string]any{"duration_months": 12}, true)
			s.Equal(tc.status, w.Code)

			var resp map[string]string
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
			s.Equal(tc.code, resp["error"])
			if tc.status == http.StatusInternalServerError {
				s.NotContains(w.Body.String(), "db down")
			}
		})
	}

	s.Run("renew passes patient trigger and months", func() {
		state := graceState(s.patient)
		s.service.EXPECT().Renew(gomock.Any(), state.Record.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.ConsentID, req models.RenewRequest) (models.ConsentState, error) {
				s.Equal(models.TriggerPatient, req.Trigger)
				s.Require().NotNil(req.Months)
				s.Equal(12, *req.Months)
				return state, nil
			})

		w := s.do(http.MethodPost, "/consents/"+state.Record.ID.String()+"/renew", map[string]any{"duration_months": 12}, true)
		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestCheckAccess() {
	s.Run("accessible consent is no content", func() {
		consentID := id.ConsentID(uuid.New())
		s.service.EXPECT().CheckAccess(gomock.Any(), consentID).Return(nil)

		w := s.do(http.MethodGet, "/consents/"+consentID.String()+"/access", nil, false)
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("inaccessible consent is forbidden", func() {
		consentID := id.ConsentID(uuid.New())
		s.service.EXPECT().CheckAccess(gomock.Any(), consentID).Return(dErrors.New(dErrors.CodeMissingConsent, "consent is EXPIRED"))

		w := s.do(http.MethodGet, "/consents/"+consentID.String()+"/access", nil, false)
		s.Equal(http.StatusForbidden, w.Code)
		s.Contains(w.Body.String(), "missing_consent")
	})
}

func (s *ConsentHandlerSuite) TestStatusBatch() {
	s.Run("accepts repeated and comma separated ids", func() {
		a, b, c := id.ConsentID(uuid.New()), id.ConsentID(uuid.New()), id.ConsentID(uuid.New())
		s.service.EXPECT().StatusBatch(gomock.Any(), []id.ConsentID{a, b, c}).Return(nil, nil)

		w := s.do(http.MethodGet, "/consents?id="+a.String()+","+b.String()+"&id="+c.String()+"&id="+a.String(), nil, false)
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"consents":[]}`, w.Body.String())
	})

	s.Run("malformed id", func() {
		w := s.do(http.MethodGet, "/consents?id=not-a-uuid", nil, false)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestPutPolicy() {
	formTemplateID := id.FormTemplateID(uuid.New())
	path := "/form-templates/" + formTemplateID.String() + "/consent-policy"
	body := map[string]any{
		"grace_period_days":        30,
		"default_consent_duration": 12,
		"min_consent_duration":     1,
		"max_consent_duration":     24,
		"allow_auto_renewal":       true,
	}

	s.Run("staff can set a policy", func() {
		s.service.EXPECT().PutPolicy(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p models.ConsentPolicy) error {
				s.Equal(formTemplateID, p.FormTemplateID)
				s.Equal(30, p.GracePeriodDays)
				return nil
			})
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.ActorHeader, "staff-42")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("patients cannot set policies", func() {
		w := s.do(http.MethodPut, path, body, true)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *ConsentHandlerSuite) TestContentType() {
	consentID := id.ConsentID(uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/consents/"+consentID.String()+"/renew", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(middleware.PatientIDHeader, s.patient.String())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}
