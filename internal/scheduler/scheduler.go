package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/requests"
)

// Store is the slice of the request repository the scheduler drives. All
// transition methods are atomic per request id.
type Store interface {
	ListByStatus(ctx context.Context, s requests.Status) ([]requests.Request, error)
	MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error)
	Resolve(ctx context.Context, id int64, to requests.Status, detail string) error
	MarkMissed(ctx context.Context, id int64, detail string) (bool, error)
	ReconcileInterrupted(ctx context.Context, detail string) ([]requests.Request, error)
	RecordRun(ctx context.Context, run requests.Run) error
}

// Actor performs one reservation attempt against the club site and returns
// a confirmation message on success. It must honor the context deadline.
type Actor interface {
	Attempt(ctx context.Context, r requests.Request) (string, error)
}

// Scheduler fires once a day at RunAt (club time), selects due pending
// requests, and drives each one through a single booking attempt.
type Scheduler struct {
	Store    Store
	Actor    Actor
	Notifier notify.Notifier

	RunAt          string // wall-clock HH:MM
	Location       *time.Location
	Window         time.Duration
	AttemptTimeout time.Duration

	Log *slog.Logger
}

// Run blocks until ctx is done, firing RunDue at each daily trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next, err := nextFiring(time.Now().In(s.Location), s.RunAt)
		if err != nil {
			return err
		}
		s.Log.Info("scheduler waiting", "next_firing", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.RunDue(ctx, time.Now()); err != nil {
			// Store unavailability aborts this run; the next firing retries.
			s.Log.Error("scheduler run aborted", "error", err)
		}
	}
}

// nextFiring returns the next instant the wall clock reads runAt, strictly
// after now.
func nextFiring(now time.Time, runAt string) (time.Time, error) {
	hm, err := time.Parse("15:04", runAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run-at time %q (want HH:MM): %w", runAt, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// RunDue is the idempotent "process everything due now" entry point. It
// only looks at pending requests, so a double firing inside one window
// cannot reprocess anything.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) error {
	pending, err := s.Store.ListByStatus(ctx, requests.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	run := requests.Run{ID: uuid.New(), FiredAt: now}
	s.Log.Info("scheduler firing", "run_id", run.ID.String(), "pending", len(pending))

	for _, r := range pending {
		switch r.Eligibility(now, s.Window) {
		case requests.NotYet:
			continue
		case requests.Missed:
			s.resolveMissed(ctx, r)
			run.Failed++
		case requests.Due:
			run.Due++
			switch s.execute(ctx, r) {
			case requests.StatusConfirmed:
				run.Confirmed++
			case requests.StatusFailed:
				run.Failed++
			}
		}
	}

	if err := s.Store.RecordRun(ctx, run); err != nil {
		s.Log.Error("record run", "run_id", run.ID.String(), "error", err)
	}
	s.Log.Info("scheduler run finished",
		"run_id", run.ID.String(), "due", run.Due, "confirmed", run.Confirmed, "failed", run.Failed)
	return nil
}

// execute drives one due request through commit, attempt, resolve, notify.
// Failures stay inside this call so one bad request never takes down the
// rest of the batch. Returns the terminal status reached, or "" if the
// request was not ours to run.
func (s *Scheduler) execute(ctx context.Context, r requests.Request) requests.Status {
	committed, err := s.Store.MarkProcessing(ctx, r.ID, time.Now())
	if err != nil {
		s.Log.Error("commit failed", "request_id", r.ID, "error", err)
		return ""
	}
	if !committed {
		// Lost the race to a cancel; nothing to do.
		s.Log.Info("request no longer pending, skipping", "request_id", r.ID)
		return ""
	}

	actx, cancel := context.WithTimeout(ctx, s.AttemptTimeout)
	confirmation, attemptErr := s.Actor.Attempt(actx, r)
	cancel()

	var to requests.Status
	var detail string
	switch {
	case attemptErr == nil:
		to = requests.StatusConfirmed
		detail = confirmation
	case errors.Is(attemptErr, context.DeadlineExceeded):
		to = requests.StatusFailed
		detail = fmt.Sprintf("timeout: booking attempt exceeded %s", s.AttemptTimeout)
	default:
		to = requests.StatusFailed
		detail = attemptErr.Error()
	}

	if err := s.Store.Resolve(ctx, r.ID, to, detail); err != nil {
		s.Log.Error("resolve failed", "request_id", r.ID, "status", string(to), "error", err)
		return ""
	}
	s.Log.Info("request resolved", "request_id", r.ID, "status", string(to), "detail", detail)

	r.Status = to
	r.ResultDetail = detail
	s.notifyOwner(ctx, r)
	return to
}

func (s *Scheduler) resolveMissed(ctx context.Context, r requests.Request) {
	detail := fmt.Sprintf("window missed: eligible since %s, not processed in time",
		r.EligibleAt.In(s.Location).Format("2006-01-02 15:04"))
	ok, err := s.Store.MarkMissed(ctx, r.ID, detail)
	if err != nil {
		s.Log.Error("mark missed failed", "request_id", r.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	s.Log.Warn("request missed its window", "request_id", r.ID, "eligible_at", r.EligibleAt)

	r.Status = requests.StatusFailed
	r.ResultDetail = detail
	s.notifyOwner(ctx, r)
}

// Reconcile fails any request a previous process left in Processing. Run
// once at startup, before the trigger loop.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	interrupted, err := s.Store.ReconcileInterrupted(ctx, "interrupted: process stopped before an outcome was recorded")
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, r := range interrupted {
		s.Log.Warn("reconciled interrupted request", "request_id", r.ID)
		s.notifyOwner(ctx, r)
	}
	return nil
}

func (s *Scheduler) notifyOwner(ctx context.Context, r requests.Request) {
	if err := s.Notifier.Notify(ctx, r); err != nil {
		// Delivery failure never reverts the booking outcome.
		s.Log.Error("notify failed", "request_id", r.ID, "owner", r.Owner, "error", err)
	}
}
