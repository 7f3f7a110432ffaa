package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

// Authentication happens at the edge gateway, which forwards the verified
// caller in these headers and strips any client-supplied copies.
const (
	PatientIDHeader = "X-Authenticated-Patient"
	ActorHeader     = "X-Authenticated-Actor"
)

// CallerIdentity copies the gateway-verified caller into the request context.
// A malformed patient header is rejected; an absent one is allowed so staff
// reads can pass through.
func CallerIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if raw := strings.TrimSpace(r.Header.Get(PatientIDHeader)); raw != "" {
				patientID, err := id.ParsePatientID(raw)
				if err != nil {
					logger.WarnContext(ctx, "rejected malformed caller identity",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid caller identity"))
					return
				}
				ctx = requestcontext.WithPatientID(ctx, patientID)
				ctx = requestcontext.WithActor(ctx, "patient")
			}
			if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
				ctx = requestcontext.WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePatient rejects requests that carry no authenticated patient.
func RequirePatient(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.PatientID(ctx).IsNil() {
				logger.WarnContext(ctx, "unauthorized access - missing patient identity",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "patient identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff rejects requests that do not come from a staff actor. Patients
// are never staff, even when the gateway also forwards an actor header.
func RequireStaff(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.PatientID(ctx).IsNil() || requestcontext.Actor(ctx) == "" {
				logger.WarnContext(ctx, "forbidden - staff identity required",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "staff identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
