package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/requests"
)

// "run" is the manual trigger: reconcile, then process everything due
// right now. Safe to fire more than once per window — only pending
// requests are considered.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process due booking requests once, immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)
			slog.SetDefault(log)

			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			repo := requests.NewRepo(d)

			var api *tgbotapi.BotAPI
			if cfg.TelegramToken != "" {
				if api, err = tgbotapi.NewBotAPI(cfg.TelegramToken); err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
			}

			sched, err := buildScheduler(cfg, repo, buildNotifier(cfg, api, log), log)
			if err != nil {
				return err
			}
			if err := sched.Reconcile(ctx); err != nil {
				return err
			}
			return sched.RunDue(ctx, time.Now())
		},
	}
}
