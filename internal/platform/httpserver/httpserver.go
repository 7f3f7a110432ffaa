package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"checkin/internal/platform/config"
)

// New builds the API server. The write deadline leaves room past the
// per-request handler timeout so the timeout response can still be written.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
