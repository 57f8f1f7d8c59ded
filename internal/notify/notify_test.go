package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/requests"
)

func sampleRequest(st requests.Status, detail string) requests.Request {
	return requests.Request{
		ID:           7,
		TargetDate:   time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		TargetTime:   "10:00",
		Status:       st,
		ResultDetail: detail,
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		status requests.Status
		detail string
		want   []string
	}{
		{requests.StatusConfirmed, "booked 2024-12-25 at 10:00", []string{"✅", "#7", "2024-12-25 at 10:00", "confirmed"}},
		{requests.StatusFailed, "timeout: booking attempt exceeded 3m0s", []string{"❌", "#7", "failed", "timeout"}},
		{requests.StatusCancelled, "", []string{"#7", "cancelled"}},
		{requests.StatusPending, "", []string{"#7", "pending"}},
	}
	for _, tc := range cases {
		out := Message(sampleRequest(tc.status, tc.detail))
		for _, want := range tc.want {
			if !strings.Contains(out, want) {
				t.Errorf("Message(%s) = %q, missing %q", tc.status, out, want)
			}
		}
	}
}

type stub struct {
	calls int
	err   error
}

func (s *stub) Notify(ctx context.Context, r requests.Request) error {
	s.calls++
	return s.err
}

func TestMultiTriesAllChannels(t *testing.T) {
	a := &stub{err: errors.New("telegram down")}
	b := &stub{}

	err := Multi{a, b}.Notify(context.Background(), sampleRequest(requests.StatusConfirmed, "ok"))
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = (%d, %d), want every channel tried", a.calls, b.calls)
	}
	if err == nil || !strings.Contains(err.Error(), "telegram down") {
		t.Errorf("err = %v, want first delivery error", err)
	}
}
