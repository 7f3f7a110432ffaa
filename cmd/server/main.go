package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"checkin/internal/app"
	"checkin/internal/platform/config"
	"checkin/internal/platform/httpserver"
	"checkin/internal/platform/logger"
	"checkin/internal/platform/metrics"
	"checkin/pkg/platform/audit/outbox"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("checkin server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	consent, err := app.NewConsent(cfg, infra, app.NewMetrics(), log)
	if err != nil {
		return err
	}
	relay := app.NewRelay(cfg, infra, consent, outbox.NewMetrics(), log)
	router := app.NewRouter(cfg, infra, consent, metrics.New(), log)
	srv := httpserver.New(cfg.Server, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting checkin server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down checkin server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
