package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/court-scheduler/internal/requests"
)

// Notifier delivers a request's outcome to its owner. Delivery failure is
// the caller's to log; the booking outcome stands either way.
type Notifier interface {
	Notify(ctx context.Context, r requests.Request) error
}

// Message renders the user-facing outcome line for a request.
func Message(r requests.Request) string {
	slot := fmt.Sprintf("%s at %s", r.TargetDate.Format("2006-01-02"), r.TargetTime)
	switch r.Status {
	case requests.StatusConfirmed:
		return fmt.Sprintf("✅ Booking request #%d (%s) confirmed: %s", r.ID, slot, r.ResultDetail)
	case requests.StatusFailed:
		return fmt.Sprintf("❌ Booking request #%d (%s) failed: %s", r.ID, slot, r.ResultDetail)
	case requests.StatusCancelled:
		return fmt.Sprintf("Booking request #%d (%s) cancelled", r.ID, slot)
	default:
		return fmt.Sprintf("Booking request #%d (%s) is %s", r.ID, slot, r.Status)
	}
}

// Log writes outcomes to the structured log. Used in dev mode and whenever
// no delivery channel is configured.
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Notify(ctx context.Context, r requests.Request) error {
	l.Logger.InfoContext(ctx, "notify",
		"request_id", r.ID,
		"owner", r.Owner,
		"status", string(r.Status),
		"detail", r.ResultDetail,
	)
	return nil
}

// Multi fans one outcome out to several channels and reports the first
// delivery error after trying all of them.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r requests.Request) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
