package calendar

import (
	"reflect"
	"testing"
	"time"
)

// Friday 15 March 2024, 10:30 UTC.
var refNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		expr     string
		from, to time.Time
	}{
		{"today", day(2024, 3, 15), day(2024, 3, 16)},
		{"Tomorrow", day(2024, 3, 16), day(2024, 3, 17)},
		{"yesterday", day(2024, 3, 14), day(2024, 3, 15)},
		{"this week", day(2024, 3, 11), day(2024, 3, 18)},
		{"next  week", day(2024, 3, 18), day(2024, 3, 25)},
		{"last week", day(2024, 3, 4), day(2024, 3, 11)},
		{"this month", day(2024, 3, 1), day(2024, 4, 1)},
		{"last month", day(2024, 2, 1), day(2024, 3, 1)},
		{"next month", day(2024, 4, 1), day(2024, 5, 1)},
		{"next 3 days", day(2024, 3, 15), day(2024, 3, 19)},
		{"last 2 days", day(2024, 3, 13), day(2024, 3, 16)},
		{"2024-03-20", day(2024, 3, 20), day(2024, 3, 21)},
		{"2024-03-01..2024-03-10", day(2024, 3, 1), day(2024, 3, 11)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			r, err := ParseRange(tc.expr, refNow)
			if err != nil {
				t.Fatalf("ParseRange(%q): %v", tc.expr, err)
			}
			if !r.From.Equal(tc.from) || !r.To.Equal(tc.to) {
				t.Fatalf("ParseRange(%q) = [%s, %s), want [%s, %s)", tc.expr, r.From, r.To, tc.from, tc.to)
			}
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	for _, expr := range []string{"sometime soon", "2024-03-10..2024-03-01", "next 0 days"} {
		if _, err := ParseRange(expr, refNow); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestStartOfWeekOnSunday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 22, 0, 0, 0, time.UTC)
	if got := startOfWeek(sunday); !got.Equal(day(2024, 3, 11)) {
		t.Fatalf("startOfWeek(Sunday) = %s", got)
	}
}

func TestParseTime(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)
	got, allDay, err := ParseTime("2024-03-20 09:15", warsaw)
	if err != nil || allDay {
		t.Fatalf("ParseTime local: %v allDay=%v", err, allDay)
	}
	if got.UTC().Hour() != 8 {
		t.Fatalf("expected 08:15 UTC, got %s", got.UTC())
	}
	if _, allDay, _ := ParseTime("2024-03-20", warsaw); !allDay {
		t.Fatalf("bare date should be all-day")
	}
	if _, _, err := ParseTime("next tuesday", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Find my meetings with Anna about the Q3 budget review, budget!")
	want := []string{"anna", "q3", "budget", "review"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractKeywords = %v, want %v", got, want)
	}
	if kw := ExtractKeywords("show me events this week"); len(kw) != 0 {
		t.Fatalf("expected no keywords, got %v", kw)
	}
}

func TestEventMatches(t *testing.T) {
	ev := Event{Summary: "Dentist", Location: "Main St", Attendees: []string{"anna@example.com"}}
	if !ev.Matches([]string{"anna"}) {
		t.Fatalf("expected attendee match")
	}
	if ev.Matches([]string{"gym"}) {
		t.Fatalf("unexpected match")
	}
	if !ev.Matches(nil) {
		t.Fatalf("no keywords should match everything")
	}
}
