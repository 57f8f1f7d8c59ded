package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/example/court-scheduler/internal/requests"
)

// MailerSend mails every outcome to a configured recipient, as a paper
// trail alongside the chat reply.
type MailerSend struct {
	client *mailersend.Mailersend
	from   mailersend.From
	to     string
}

func NewMailerSend(apiKey, fromEmail, toEmail string) *MailerSend {
	return &MailerSend{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: "courtsched", Email: fromEmail},
		to:     toEmail,
	}
}

func (m *MailerSend) Notify(ctx context.Context, r requests.Request) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subject := fmt.Sprintf("Court booking request #%d: %s", r.ID, r.Status)
	text := Message(r)

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: m.to}})
	msg.SetSubject(subject)
	msg.SetText(text)

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
