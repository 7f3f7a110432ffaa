package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"checkin/internal/app"
	"checkin/internal/platform/config"
	"checkin/internal/platform/logger"
	"checkin/internal/reminder"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sweeper",
		Short: "Send consent expiry reminders and run auto-renewals",
		Long: `Send consent expiry reminders and run auto-renewals.

Each sweep pages through every time-bound consent, auto-renews the ones whose
patient opted in and that are inside the renewal window, and publishes at most
one reminder per reminder bucket.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newWatchCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed.UTC()
			}
			return withSweeper(cmd.Context(), func(ctx context.Context, sw *reminder.Sweeper, log *slog.Logger) error {
				report, err := sw.Run(ctx, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d auto_renewed=%d reminders_sent=%d skipped=%d failed=%d\n",
					report.Scanned, report.AutoRenewed, report.RemindersSent, report.Skipped, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC 3339 instant instead of now")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sweep repeatedly until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSweeper(cmd.Context(), func(ctx context.Context, sw *reminder.Sweeper, log *slog.Logger) error {
				ticker := time.NewTicker(every)
				defer ticker.Stop()
				for {
					if _, err := sw.Run(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
						log.ErrorContext(ctx, "reminder sweep failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "interval between sweeps (default SWEEPER_INTERVAL)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if every <= 0 {
			every = config.FromEnv().Sweeper.Interval
		}
	}
	return cmd
}

func withSweeper(ctx context.Context, fn func(ctx context.Context, sw *reminder.Sweeper, log *slog.Logger) error) error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to open backends", "error", err)
		return err
	}
	defer infra.Close()
	if infra.DB == nil {
		log.WarnContext(ctx, "sweeping the in-memory store finds nothing; set DATABASE_URL")
	}

	consent, err := app.NewConsent(cfg, infra, app.NewMetrics(), log)
	if err != nil {
		return err
	}
	sw, err := app.NewSweeper(cfg, infra, consent, reminder.NewMetrics(), log)
	if err != nil {
		return err
	}
	if err := fn(ctx, sw, log); err != nil {
		log.ErrorContext(ctx, "sweeper stopped", "error", err)
		return err
	}
	return nil
}
