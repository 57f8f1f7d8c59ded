package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/requests"
)

type fakeStore struct {
	mu    sync.Mutex
	reqs  map[int64]*requests.Request
	order []int64
	runs  []requests.Run

	listErr error
	// ids whose request gets cancelled between listing and commit, to
	// simulate a user winning the cancel race.
	cancelOnCommit map[int64]bool
}

func newFakeStore(rs ...requests.Request) *fakeStore {
	s := &fakeStore{reqs: map[int64]*requests.Request{}, cancelOnCommit: map[int64]bool{}}
	for i := range rs {
		r := rs[i]
		s.reqs[r.ID] = &r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakeStore) ListByStatus(ctx context.Context, st requests.Status) ([]requests.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []requests.Request
	for _, id := range s.order {
		if s.reqs[id].Status == st {
			out = append(out, *s.reqs[id])
		}
	}
	return out, nil
}

func (s *fakeStore) MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelOnCommit[id] {
		s.reqs[id].Status = requests.StatusCancelled
	}
	r := s.reqs[id]
	if r.Status != requests.StatusPending {
		return false, nil
	}
	r.Status = requests.StatusProcessing
	r.LastAttemptAt = &now
	return true, nil
}

func (s *fakeStore) Resolve(ctx context.Context, id int64, to requests.Status, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reqs[id]
	if r.Status != requests.StatusProcessing {
		return requests.ErrInvalidTransition
	}
	r.Status = to
	r.ResultDetail = detail
	return nil
}

func (s *fakeStore) MarkMissed(ctx context.Context, id int64, detail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reqs[id]
	if r.Status != requests.StatusPending {
		return false, nil
	}
	r.Status = requests.StatusFailed
	r.ResultDetail = detail
	return true, nil
}

func (s *fakeStore) ReconcileInterrupted(ctx context.Context, detail string) ([]requests.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []requests.Request
	for _, id := range s.order {
		r := s.reqs[id]
		if r.Status == requests.StatusProcessing {
			r.Status = requests.StatusFailed
			r.ResultDetail = detail
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) RecordRun(ctx context.Context, run requests.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) get(id int64) requests.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reqs[id]
}

type fakeActor struct {
	mu           sync.Mutex
	calls        []int64
	confirmation string
	errFor       map[int64]error
	block        bool
}

func (a *fakeActor) Attempt(ctx context.Context, r requests.Request) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, r.ID)
	a.mu.Unlock()
	if a.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := a.errFor[r.ID]; err != nil {
		return "", err
	}
	return a.confirmation, nil
}

func (a *fakeActor) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []requests.Request
	fail bool
}

func (n *fakeNotifier) Notify(ctx context.Context, r requests.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r)
	if n.fail {
		return errors.New("delivery failed")
	}
	return nil
}

var testNow = time.Date(2024, 12, 23, 10, 1, 0, 0, time.UTC)

func pendingRequest(id int64, eligibleAt time.Time) requests.Request {
	return requests.Request{
		ID:              id,
		Owner:           "u1",
		ChatID:          "100",
		TargetDate:      time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		TargetTime:      "10:00",
		DurationMinutes: 90,
		Status:          requests.StatusPending,
		EligibleAt:      eligibleAt,
		CreatedAt:       eligibleAt.Add(-72 * time.Hour),
	}
}

func newScheduler(store Store, actor Actor, n *fakeNotifier) *Scheduler {
	return &Scheduler{
		Store:          store,
		Actor:          actor,
		Notifier:       n,
		RunAt:          "07:00",
		Location:       time.UTC,
		Window:         24 * time.Hour,
		AttemptTimeout: 5 * time.Second,
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunDueConfirmsDueRequest(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-time.Minute)))
	actor := &fakeActor{confirmation: "CONF123"}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}

	got := store.get(1)
	if got.Status != requests.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if got.ResultDetail != "CONF123" {
		t.Errorf("detail = %q, want CONF123", got.ResultDetail)
	}
	if actor.callCount() != 1 {
		t.Errorf("attempts = %d, want exactly 1", actor.callCount())
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Status != requests.StatusConfirmed {
		t.Errorf("notifications = %+v, want one confirmed", notifier.sent)
	}
	if len(store.runs) != 1 || store.runs[0].Due != 1 || store.runs[0].Confirmed != 1 {
		t.Errorf("run record = %+v", store.runs)
	}
}

func TestRunDueSkipsNotYetEligible(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(time.Hour)))
	actor := &fakeActor{confirmation: "CONF123"}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if actor.callCount() != 0 {
		t.Errorf("attempts = %d, want 0", actor.callCount())
	}
	if got := store.get(1); got.Status != requests.StatusPending {
		t.Errorf("status = %s, want still pending", got.Status)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("unexpected notifications: %+v", notifier.sent)
	}
}

func TestRunDueMissedWindow(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-25*time.Hour)))
	actor := &fakeActor{}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	got := store.get(1)
	if got.Status != requests.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ResultDetail, "window missed") {
		t.Errorf("detail = %q, want mention of window missed", got.ResultDetail)
	}
	if actor.callCount() != 0 {
		t.Errorf("missed request must never reach the actor, got %d attempts", actor.callCount())
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.sent))
	}
}

func TestRunDueIsolatesActorFailures(t *testing.T) {
	store := newFakeStore(
		pendingRequest(1, testNow.Add(-time.Minute)),
		pendingRequest(2, testNow.Add(-time.Minute)),
	)
	actor := &fakeActor{
		confirmation: "CONF456",
		errFor:       map[int64]error{1: errors.New("site structure changed")},
	}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}

	if got := store.get(1); got.Status != requests.StatusFailed || !strings.Contains(got.ResultDetail, "site structure") {
		t.Errorf("request 1 = %s %q, want failed with reason", got.Status, got.ResultDetail)
	}
	if got := store.get(2); got.Status != requests.StatusConfirmed || got.ResultDetail != "CONF456" {
		t.Errorf("request 2 = %s %q, want confirmed CONF456", got.Status, got.ResultDetail)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("notifications = %d, want 2", len(notifier.sent))
	}
}

func TestRunDueAttemptTimeout(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-time.Minute)))
	actor := &fakeActor{block: true}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)
	s.AttemptTimeout = 10 * time.Millisecond

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	got := store.get(1)
	if got.Status != requests.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ResultDetail, "timeout") {
		t.Errorf("detail = %q, want mention of timeout", got.ResultDetail)
	}
	if actor.callCount() != 1 {
		t.Errorf("attempts = %d, want exactly 1 (no in-run retry)", actor.callCount())
	}
}

func TestRunDueSkipsCancelled(t *testing.T) {
	r := pendingRequest(1, testNow.Add(-time.Minute))
	r.Status = requests.StatusCancelled
	store := newFakeStore(r)
	actor := &fakeActor{}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if actor.callCount() != 0 {
		t.Errorf("cancelled request reached the actor")
	}
}

func TestRunDueLosesCommitRaceToCancel(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-time.Minute)))
	store.cancelOnCommit[1] = true
	actor := &fakeActor{}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if actor.callCount() != 0 {
		t.Errorf("request cancelled before commit must not be attempted")
	}
	if got := store.get(1); got.Status != requests.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("unexpected notifications: %+v", notifier.sent)
	}
}

func TestRunDueSecondFiringIsIdempotent(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-time.Minute)))
	actor := &fakeActor{confirmation: "CONF123"}
	notifier := &fakeNotifier{}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("first RunDue: %v", err)
	}
	if err := s.RunDue(context.Background(), testNow.Add(time.Minute)); err != nil {
		t.Fatalf("second RunDue: %v", err)
	}
	if actor.callCount() != 1 {
		t.Errorf("attempts = %d, want 1 across double firing", actor.callCount())
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.sent))
	}
}

func TestRunDueAbortsOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	s := newScheduler(store, &fakeActor{}, &fakeNotifier{})

	if err := s.RunDue(context.Background(), testNow); err == nil {
		t.Fatal("RunDue should surface store unavailability")
	}
}

func TestNotifierFailureDoesNotRevertOutcome(t *testing.T) {
	store := newFakeStore(pendingRequest(1, testNow.Add(-time.Minute)))
	actor := &fakeActor{confirmation: "CONF123"}
	notifier := &fakeNotifier{fail: true}
	s := newScheduler(store, actor, notifier)

	if err := s.RunDue(context.Background(), testNow); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if got := store.get(1); got.Status != requests.StatusConfirmed {
		t.Errorf("status = %s, want confirmed despite delivery failure", got.Status)
	}
}

func TestReconcileInterrupted(t *testing.T) {
	r := pendingRequest(1, testNow.Add(-time.Minute))
	r.Status = requests.StatusProcessing
	store := newFakeStore(r)
	notifier := &fakeNotifier{}
	s := newScheduler(store, &fakeActor{}, notifier)

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got := store.get(1)
	if got.Status != requests.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ResultDetail, "interrupted") {
		t.Errorf("detail = %q, want mention of interrupted", got.ResultDetail)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.sent))
	}
}

func TestNextFiring(t *testing.T) {
	day := func(h, m int) time.Time {
		return time.Date(2024, 12, 23, h, m, 0, 0, time.UTC)
	}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before trigger", day(6, 30), day(7, 0)},
		{"exactly at trigger", day(7, 0), day(7, 0).AddDate(0, 0, 1)},
		{"after trigger", day(9, 0), day(7, 0).AddDate(0, 0, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextFiring(tc.now, "07:00")
			if err != nil {
				t.Fatalf("nextFiring: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("nextFiring(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}

	if _, err := nextFiring(day(6, 0), "7am"); err == nil {
		t.Error("invalid run-at time should error")
	}
}
