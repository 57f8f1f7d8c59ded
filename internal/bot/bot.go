// Package bot is the chat front-end: it turns Telegram commands into
// request store operations and replies with the outcome.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/court-scheduler/internal/requests"
)

const welcome = `Welcome to the court booking bot!

Commands:
/book <date> <time> [duration] [court] - request a booking
  Example: /book 2024-12-25 10:00 60 Court 1
/status - show your booking requests
/cancel <id> - cancel a pending request

Requests are executed automatically at %s, 48 hours before the slot.`

type Bot struct {
	API   *tgbotapi.BotAPI
	Repo  *requests.Repo
	Loc   *time.Location
	RunAt string
	Log   *slog.Logger
}

// Run consumes updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.API.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	owner := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(chatID, fmt.Sprintf(welcome, b.RunAt))
	case "book":
		b.handleBook(ctx, msg, owner)
	case "status":
		b.handleStatus(ctx, msg, owner)
	case "cancel":
		b.handleCancel(ctx, msg, owner)
	default:
		b.reply(chatID, "Unknown command. Try /start for help.")
	}
}

func (b *Bot) handleBook(ctx context.Context, msg *tgbotapi.Message, owner string) {
	args := strings.Fields(msg.CommandArguments())
	date, timeOfDay, duration, court, err := parseBookArgs(args)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}

	r, err := requests.New(owner, strconv.FormatInt(msg.Chat.ID, 10), date, timeOfDay, court, duration, b.Loc, time.Now())
	if err != nil {
		b.reply(msg.Chat.ID, "❌ "+strings.TrimPrefix(err.Error(), requests.ErrInvalidRequest.Error()+": "))
		return
	}

	id, err := b.Repo.Create(ctx, r)
	if err != nil {
		b.Log.Error("create request", "owner", owner, "error", err)
		b.reply(msg.Chat.ID, "❌ Could not save your request, please try again.")
		return
	}

	courtText := ""
	if court != "" {
		courtText = fmt.Sprintf(" (court: %s)", court)
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"✅ Booking request #%d created!\nDate: %s\nTime: %s%s\nDuration: %d minutes\n\nIt will be executed at %s, 48 hours in advance.",
		id, date, timeOfDay, courtText, r.DurationMinutes, b.RunAt))
	b.Log.Info("request created", "request_id", id, "owner", owner)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message, owner string) {
	rs, err := b.Repo.ListByOwner(ctx, owner)
	if err != nil {
		b.Log.Error("list requests", "owner", owner, "error", err)
		b.reply(msg.Chat.ID, "❌ Could not load your requests, please try again.")
		return
	}
	if len(rs) == 0 {
		b.reply(msg.Chat.ID, "You have no booking requests.")
		return
	}
	b.reply(msg.Chat.ID, formatStatus(rs))
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message, owner string) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		b.reply(msg.Chat.ID, "Usage: /cancel <request_id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "❌ Invalid request id, expected a number.")
		return
	}

	switch err := b.Repo.Cancel(ctx, id, owner); {
	case err == nil:
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Booking request #%d cancelled.", id))
	case errors.Is(err, requests.ErrNotFound):
		b.reply(msg.Chat.ID, fmt.Sprintf("❌ Request #%d not found.", id))
	case errors.Is(err, requests.ErrInvalidTransition):
		b.reply(msg.Chat.ID, fmt.Sprintf("❌ Request #%d has already been processed and cannot be cancelled.", id))
	default:
		b.Log.Error("cancel request", "request_id", id, "owner", owner, "error", err)
		b.reply(msg.Chat.ID, "❌ Could not cancel the request, please try again.")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.API.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.Log.Error("telegram reply", "chat_id", chatID, "error", err)
	}
}

// parseBookArgs reads "/book <date> <time> [duration] [court...]". The
// third argument is a duration only when numeric; otherwise everything
// after the time is the court preference.
func parseBookArgs(args []string) (date, timeOfDay string, duration int, court string, err error) {
	if len(args) < 2 {
		return "", "", 0, "", errors.New("Usage: /book <date> <time> [duration] [court]\nExample: /book 2024-12-25 10:00 60 Court 1")
	}
	date, timeOfDay = args[0], args[1]
	rest := args[2:]
	if len(rest) > 0 {
		if d, convErr := strconv.Atoi(rest[0]); convErr == nil {
			duration = d
			rest = rest[1:]
		}
	}
	court = strings.Join(rest, " ")
	return date, timeOfDay, duration, court, nil
}

func formatStatus(rs []requests.Request) string {
	var pending, confirmed, failed []requests.Request
	for _, r := range rs {
		switch r.Status {
		case requests.StatusPending, requests.StatusProcessing:
			pending = append(pending, r)
		case requests.StatusConfirmed:
			confirmed = append(confirmed, r)
		case requests.StatusFailed:
			failed = append(failed, r)
		}
	}

	var sb strings.Builder
	line := func(r requests.Request) string {
		courtText := ""
		if r.Court != "" {
			courtText = fmt.Sprintf(" (court: %s)", r.Court)
		}
		return fmt.Sprintf("  #%d: %s at %s%s, %d min\n",
			r.ID, r.TargetDate.Format("2006-01-02"), r.TargetTime, courtText, r.DurationMinutes)
	}

	if len(pending) > 0 {
		sb.WriteString("📋 Pending:\n")
		for _, r := range cap10(pending) {
			sb.WriteString(line(r))
		}
	}
	if len(confirmed) > 0 {
		sb.WriteString("✅ Confirmed:\n")
		for _, r := range cap5(confirmed) {
			sb.WriteString(line(r))
		}
	}
	if len(failed) > 0 {
		sb.WriteString("❌ Failed:\n")
		for _, r := range cap5(failed) {
			sb.WriteString(line(r))
		}
	}
	if sb.Len() == 0 {
		return "You have no active booking requests."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func cap10(rs []requests.Request) []requests.Request {
	if len(rs) > 10 {
		return rs[:10]
	}
	return rs
}

func cap5(rs []requests.Request) []requests.Request {
	if len(rs) > 5 {
		return rs[:5]
	}
	return rs
}
