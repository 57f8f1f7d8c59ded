package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/bot"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the chat bot, the daily scheduler and the operator UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)
			slog.SetDefault(log)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			hashKey, blockKey, err := cfg.CookieKeys()
			if err != nil {
				return err
			}
			authStore := auth.NewStore(d, hashKey, blockKey)
			repo := requests.NewRepo(d)

			var api *tgbotapi.BotAPI
			if cfg.TelegramToken != "" {
				api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
				if err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
			} else {
				log.Warn("TELEGRAM_BOT_TOKEN not set, chat front-end disabled")
			}

			notifier := buildNotifier(cfg, api, log)
			sched, err := buildScheduler(cfg, repo, notifier, log)
			if err != nil {
				return err
			}

			// Anything left in Processing by a previous run is failed and
			// reported before the trigger loop starts.
			if err := sched.Reconcile(ctx); err != nil {
				return err
			}
			go func() { _ = sched.Run(ctx) }()

			if api != nil {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				b := &bot.Bot{API: api, Repo: repo, Loc: loc, RunAt: cfg.RunAt, Log: log}
				go func() { _ = b.Run(ctx) }()
			}

			ws := &web.Server{Auth: authStore, Requests: repo}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
