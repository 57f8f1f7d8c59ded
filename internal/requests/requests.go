package requests

import (
	"errors"
	"fmt"
	"time"
)

// LeadTime is the club's booking rule: a slot opens for reservation exactly
// this long before it starts.
const LeadTime = 48 * time.Hour

const defaultDurationMinutes = 90

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
)

// Request is a user's standing instruction to book a court slot once the
// club's reservation window opens.
type Request struct {
	ID              int64
	Owner           string
	ChatID          string
	TargetDate      time.Time // midnight in the club timezone
	TargetTime      string    // HH:MM, club-local
	Court           string    // empty means any court
	DurationMinutes int

	Status        Status
	EligibleAt    time.Time // slot instant minus LeadTime, fixed at creation
	CreatedAt     time.Time
	LastAttemptAt *time.Time
	ResultDetail  string
}

// SlotInstant is the moment the requested slot starts.
func (r Request) SlotInstant() time.Time {
	return r.EligibleAt.Add(LeadTime)
}

// New validates user input and builds a pending request. The eligible
// instant is derived here, once; it never changes afterwards.
func New(owner, chatID, dateStr, timeStr, court string, durationMinutes int, loc *time.Location, now time.Time) (Request, error) {
	targetDate, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return Request{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if _, err := time.Parse("15:04", timeStr); err != nil {
		return Request{}, fmt.Errorf("%w: time must be HH:MM", ErrInvalidRequest)
	}
	slot, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, loc)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if durationMinutes <= 0 {
		durationMinutes = defaultDurationMinutes
	}

	eligibleAt := slot.Add(-LeadTime)
	if eligibleAt.Before(now) {
		return Request{}, fmt.Errorf("%w: booking window for %s %s opened at %s and cannot be scheduled",
			ErrInvalidRequest, dateStr, timeStr, eligibleAt.Format("2006-01-02 15:04"))
	}

	return Request{
		Owner:           owner,
		ChatID:          chatID,
		TargetDate:      targetDate,
		TargetTime:      timeStr,
		Court:           court,
		DurationMinutes: durationMinutes,
		Status:          StatusPending,
		EligibleAt:      eligibleAt,
		CreatedAt:       now,
	}, nil
}

// CanTransitionTo enumerates the legal lifecycle edges. Pending→Failed
// covers the missed-window outcome, which skips Processing because no
// attempt is ever made.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled || next == StatusFailed
	case StatusProcessing:
		return next == StatusConfirmed || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Verdict classifies a pending request against the eligibility window.
type Verdict int

const (
	NotYet Verdict = iota
	Due
	Missed
)

func (v Verdict) String() string {
	switch v {
	case NotYet:
		return "not yet"
	case Due:
		return "due"
	case Missed:
		return "missed"
	}
	return "unknown"
}

// Evaluate is the eligibility check: due iff now is inside
// [eligibleAt, eligibleAt+window). Pure function of its arguments.
func Evaluate(now, eligibleAt time.Time, window time.Duration) Verdict {
	if now.Before(eligibleAt) {
		return NotYet
	}
	if now.Before(eligibleAt.Add(window)) {
		return Due
	}
	return Missed
}

// Eligibility evaluates this request's stored eligible instant against now.
func (r Request) Eligibility(now time.Time, window time.Duration) Verdict {
	return Evaluate(now, r.EligibleAt, window)
}
