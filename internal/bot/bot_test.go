package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/requests"
)

func TestParseBookArgs(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		date     string
		tod      string
		duration int
		court    string
		wantErr  bool
	}{
		{"date and time only", []string{"2024-12-25", "10:00"}, "2024-12-25", "10:00", 0, "", false},
		{"with duration", []string{"2024-12-25", "10:00", "60"}, "2024-12-25", "10:00", 60, "", false},
		{"with duration and court", []string{"2024-12-25", "10:00", "30", "Court", "1"}, "2024-12-25", "10:00", 30, "Court 1", false},
		{"court without duration", []string{"2024-12-25", "10:00", "Court", "1"}, "2024-12-25", "10:00", 0, "Court 1", false},
		{"multiword court", []string{"2024-12-25", "10:00", "90", "Outdoor", "Court", "4"}, "2024-12-25", "10:00", 90, "Outdoor Court 4", false},
		{"no args", nil, "", "", 0, "", true},
		{"date only", []string{"2024-12-25"}, "", "", 0, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			date, tod, duration, court, err := parseBookArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBookArgs: %v", err)
			}
			if date != tc.date || tod != tc.tod || duration != tc.duration || court != tc.court {
				t.Errorf("got (%q, %q, %d, %q), want (%q, %q, %d, %q)",
					date, tod, duration, court, tc.date, tc.tod, tc.duration, tc.court)
			}
		})
	}
}

func TestFormatStatusGroups(t *testing.T) {
	day := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)
	rs := []requests.Request{
		{ID: 1, TargetDate: day, TargetTime: "10:00", DurationMinutes: 90, Status: requests.StatusPending},
		{ID: 2, TargetDate: day, TargetTime: "11:00", DurationMinutes: 60, Status: requests.StatusConfirmed, Court: "Court 2"},
		{ID: 3, TargetDate: day, TargetTime: "12:00", DurationMinutes: 90, Status: requests.StatusFailed},
		{ID: 4, TargetDate: day, TargetTime: "13:00", DurationMinutes: 90, Status: requests.StatusCancelled},
	}

	out := formatStatus(rs)
	for _, want := range []string{"Pending", "#1", "Confirmed", "#2", "court: Court 2", "Failed", "#3"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#4") {
		t.Errorf("cancelled requests should not be listed:\n%s", out)
	}
}

func TestFormatStatusEmpty(t *testing.T) {
	out := formatStatus([]requests.Request{
		{ID: 4, Status: requests.StatusCancelled, TargetDate: time.Now(), TargetTime: "10:00"},
	})
	if !strings.Contains(out, "no active") {
		t.Errorf("unexpected output: %s", out)
	}
}
