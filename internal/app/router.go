package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consenthandler "checkin/internal/consent/handler"
	"checkin/internal/platform/config"
	"checkin/internal/platform/metrics"
	"checkin/pkg/platform/httputil"
)

// NewRouter mounts the consent API next to the operational endpoints.
func NewRouter(cfg config.Config, infra *Infra, consent *Consent, httpMetrics *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := infra.Health(req.Context()); err != nil {
			logger.WarnContext(req.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	consenthandler.New(consent.Service, logger, httpMetrics,
		consenthandler.WithRateLimiter(consent.Limiter),
		consenthandler.WithRequestTimeout(cfg.Server.RequestTimeout),
	).Register(r)
	return r
}
