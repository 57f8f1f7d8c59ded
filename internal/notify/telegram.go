package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/court-scheduler/internal/requests"
)

// Telegram replies into the chat the request was created from.
type Telegram struct {
	API *tgbotapi.BotAPI
}

func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{API: api}
}

func (t *Telegram) Notify(ctx context.Context, r requests.Request) error {
	chatID, err := strconv.ParseInt(r.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("request %d has no usable chat id %q: %w", r.ID, r.ChatID, err)
	}
	if _, err := t.API.Send(tgbotapi.NewMessage(chatID, Message(r))); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
