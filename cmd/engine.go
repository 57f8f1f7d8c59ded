package cmd

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/court"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/scheduler"
)

// buildNotifier picks the delivery channels from config. With nothing
// configured (or DEV_NOTIFY set) outcomes go to the log only.
func buildNotifier(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger) notify.Notifier {
	if cfg.DevNotify {
		return &notify.Log{Logger: log}
	}
	var channels notify.Multi
	if api != nil {
		channels = append(channels, notify.NewTelegram(api))
	}
	if cfg.MailerSendAPIKey != "" && cfg.MailFrom != "" && cfg.MailTo != "" {
		channels = append(channels, notify.NewMailerSend(cfg.MailerSendAPIKey, cfg.MailFrom, cfg.MailTo))
	}
	if len(channels) == 0 {
		return &notify.Log{Logger: log}
	}
	return channels
}

func buildScheduler(cfg config.Config, repo *requests.Repo, notifier notify.Notifier, log *slog.Logger) (*scheduler.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	actor := court.New(court.Credentials{
		URL:      cfg.BookingURL,
		Username: cfg.BookingUsername,
		Password: cfg.BookingPassword,
	}, cfg.BrowserHeadless)

	return &scheduler.Scheduler{
		Store:          repo,
		Actor:          actor,
		Notifier:       notifier,
		RunAt:          cfg.RunAt,
		Location:       loc,
		Window:         cfg.Window(),
		AttemptTimeout: cfg.AttemptTimeout(),
		Log:            log,
	}, nil
}
