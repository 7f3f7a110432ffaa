package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"checkin/internal/consent/models"
	"checkin/internal/platform/metrics"
	"checkin/internal/platform/middleware"
	"checkin/internal/platform/ratelimit"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/platform/middleware/metadata"
	"checkin/pkg/platform/middleware/requesttime"
	strutil "checkin/pkg/platform/strings"
	"checkin/pkg/requestcontext"
)

// Service defines the interface for consent operations.
type Service interface {
	Grant(ctx context.Context, req models.GrantRequest) (models.ConsentState, error)
	Status(ctx context.Context, consentID id.ConsentID) (models.ConsentState, error)
	StatusBatch(ctx context.Context, ids []id.ConsentID) ([]models.ConsentState, error)
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]models.ConsentState, error)
	CheckAccess(ctx context.Context, consentID id.ConsentID) error
	Withdraw(ctx context.Context, consentID id.ConsentID, reason *string) (models.ConsentState, error)
	Renew(ctx context.Context, consentID id.ConsentID, req models.RenewRequest) (models.ConsentState, error)
	PutPolicy(ctx context.Context, policy models.ConsentPolicy) error
}

// Handler handles consent-related endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
	metrics *metrics.Metrics
	limiter *ratelimit.Middleware
	timeout time.Duration
}

type Option func(*Handler)

// WithRateLimiter caps each caller's reads and writes.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a new consent Handler.
func New(consent Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		consent: consent,
		metrics: metrics,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.Limit(class)
}

// Register registers the consent routes with the chi router.
//
// Patients act on their own consents; organizations read status and check
// access; staff manage per-template policies.
func (h *Handler) Register(r chi.Router) {
	consentRouter := chi.NewRouter()
	consentRouter.Use(middleware.Recovery(h.logger, h.metrics))
	consentRouter.Use(middleware.RequestID)
	consentRouter.Use(requesttime.Middleware)
	consentRouter.Use(metadata.ClientMetadata)
	consentRouter.Use(middleware.Logger(h.logger))
	consentRouter.Use(middleware.Timeout(h.timeout))
	consentRouter.Use(middleware.ContentTypeJSON)
	consentRouter.Use(middleware.LatencyMiddleware(h.metrics))
	consentRouter.Use(middleware.CallerIdentity(h.logger))

	consentRouter.Group(func(rr chi.Router) {
		rr.Use(h.limit(ratelimit.ClassRead))
		rr.Get("/consents", h.handleStatusBatch)
		rr.Get("/consents/{id}", h.handleGetConsent)
		rr.Get("/consents/{id}/access", h.handleCheckAccess)
	})

	consentRouter.Group(func(pr chi.Router) {
		pr.Use(middleware.RequirePatient(h.logger))
		pr.With(h.limit(ratelimit.ClassRead)).Get("/patients/{patientID}/consents", h.handleListByPatient)

		pr.Group(func(wr chi.Router) {
			wr.Use(h.limit(ratelimit.ClassWrite))
			wr.Post("/consents", h.handleGrant)
			wr.Post("/consents/{id}/withdraw", h.handleWithdraw)
			wr.Post("/consents/{id}/renew", h.handleRenew)
		})
	})

	consentRouter.Group(func(sr chi.Router) {
		sr.Use(middleware.RequireStaff(h.logger))
		sr.Use(h.limit(ratelimit.ClassWrite))
		sr.Put("/form-templates/{formTemplateID}/consent-policy", h.handlePutPolicy)
	})

	r.Mount("/", consentRouter)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body GrantConsentRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.writeError(ctx, w, "invalid grant request", err)
		return
	}
	req, err := body.toModel(requestcontext.PatientID(ctx))
	if err != nil {
		h.writeError(ctx, w, "invalid grant request", err)
		return
	}
	state, err := h.consent.Grant(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "failed to record consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toConsentResponse(state))
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "invalid consent id", err)
		return
	}
	state, err := h.consent.Status(ctx, consentID)
	if err != nil {
		h.writeError(ctx, w, "failed to load consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(state))
}

// handleStatusBatch serves GET /consents?id=a&id=b or ?id=a,b. Repeated IDs
// are answered once.
func (h *Handler) handleStatusBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var ids []id.ConsentID
	for _, raw := range strutil.SplitDedupe(r.URL.Query()["id"]) {
		consentID, err := id.ParseConsentID(raw)
		if err != nil {
			h.writeError(ctx, w, "invalid consent id", err)
			return
		}
		ids = append(ids, consentID)
	}
	states, err := h.consent.StatusBatch(ctx, ids)
	if err != nil {
		h.writeError(ctx, w, "failed to load consents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(states))
}

func (h *Handler) handleListByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		h.writeError(ctx, w, "invalid patient id", err)
		return
	}
	states, err := h.consent.ListByPatient(ctx, patientID)
	if err != nil {
		h.writeError(ctx, w, "failed to list consents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(states))
}

func (h *Handler) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "invalid consent id", err)
		return
	}
	if err := h.consent.CheckAccess(ctx, consentID); err != nil {
		h.writeError(ctx, w, "consent access denied", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "invalid consent id", err)
		return
	}
	var body WithdrawConsentRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.writeError(ctx, w, "invalid withdraw request", err)
		return
	}
	sanitize(&body)
	state, err := h.consent.Withdraw(ctx, consentID, body.Reason)
	if err != nil {
		h.writeError(ctx, w, "failed to withdraw consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(state))
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "invalid consent id", err)
		return
	}
	var body RenewConsentRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.writeError(ctx, w, "invalid renew request", err)
		return
	}
	state, err := h.consent.Renew(ctx, consentID, models.RenewRequest{
		Months:  body.DurationMonths,
		Trigger: models.TriggerPatient,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to renew consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(state))
}

func (h *Handler) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formTemplateID, err := id.ParseFormTemplateID(chi.URLParam(r, "formTemplateID"))
	if err != nil {
		h.writeError(ctx, w, "invalid form template id", err)
		return
	}
	var body PolicyRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.writeError(ctx, w, "invalid policy request", err)
		return
	}
	policy := body.toModel(formTemplateID)
	if err := h.consent.PutPolicy(ctx, policy); err != nil {
		h.writeError(ctx, w, "failed to save consent policy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// writeError logs at a level matching the failure and writes the coded error.
// Client mistakes are warnings; everything mapped to 500 is an error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := requestcontext.RequestID(ctx)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
