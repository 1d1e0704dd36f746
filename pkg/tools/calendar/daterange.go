package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Range is a half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

var relativeDays = regexp.MustCompile(`^(next|last|past|previous|coming)\s+(\d{1,3})\s+days?$`)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// ParseRange resolves expressions such as "today", "next week", "last 3 days",
// "2024-03-15" or "2024-03-01..2024-03-31" relative to now.
func ParseRange(expr string, now time.Time) (Range, error) {
	raw := strings.TrimSpace(expr)
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	today := startOfDay(now)

	switch s {
	case "today":
		return Range{today, today.AddDate(0, 0, 1)}, nil
	case "tomorrow":
		return Range{today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)}, nil
	case "yesterday":
		return Range{today.AddDate(0, 0, -1), today}, nil
	case "this week", "week":
		w := startOfWeek(now)
		return Range{w, w.AddDate(0, 0, 7)}, nil
	case "next week":
		w := startOfWeek(now).AddDate(0, 0, 7)
		return Range{w, w.AddDate(0, 0, 7)}, nil
	case "last week", "previous week", "past week":
		w := startOfWeek(now).AddDate(0, 0, -7)
		return Range{w, w.AddDate(0, 0, 7)}, nil
	case "this month", "month":
		m := startOfMonth(now)
		return Range{m, m.AddDate(0, 1, 0)}, nil
	case "next month":
		m := startOfMonth(now).AddDate(0, 1, 0)
		return Range{m, m.AddDate(0, 1, 0)}, nil
	case "last month", "previous month", "past month":
		m := startOfMonth(now).AddDate(0, -1, 0)
		return Range{m, m.AddDate(0, 1, 0)}, nil
	case "upcoming", "":
		return Range{now, today.AddDate(0, 0, 8)}, nil
	}

	if m := relativeDays.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[2])
		if n <= 0 {
			return Range{}, fmt.Errorf("invalid day count in %q", expr)
		}
		if m[1] == "next" || m[1] == "coming" {
			return Range{today, today.AddDate(0, 0, n+1)}, nil
		}
		return Range{today.AddDate(0, 0, -n), today.AddDate(0, 0, 1)}, nil
	}

	if from, to, ok := strings.Cut(raw, ".."); ok {
		a, _, errA := ParseTime(from, now.Location())
		b, bAllDay, errB := ParseTime(to, now.Location())
		if errA != nil || errB != nil {
			return Range{}, fmt.Errorf("unrecognised date range %q", expr)
		}
		if bAllDay {
			b = b.AddDate(0, 0, 1)
		}
		if !b.After(a) {
			return Range{}, fmt.Errorf("range end precedes start in %q", expr)
		}
		return Range{a, b}, nil
	}

	if t, allDay, err := ParseTime(raw, now.Location()); err == nil {
		if allDay {
			return Range{t, t.AddDate(0, 0, 1)}, nil
		}
		return Range{t, t.Add(time.Hour)}, nil
	}
	return Range{}, fmt.Errorf("unrecognised date range %q", expr)
}

var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC3339, local date-times and bare dates. The boolean
// reports whether the value was a bare date.
func ParseTime(value string, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), false, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation(dateLayout, v, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognised time %q", value)
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the my me i we our you your is are was were be do did does
		have has had any all some what when where which who whom with without about for from in on at
		to of and or by find search show list look lookup get tell give please can could would
		event events meeting meetings calendar schedule scheduled appointment appointments
		today tomorrow yesterday week weeks month months day days next last past this previous coming upcoming`) {
		stopwords[w] = struct{}{}
	}
}

// ExtractKeywords lower-cases text, splits it on non-alphanumerics and drops
// stopwords and single characters. Order of first appearance is kept.
func ExtractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Matches reports whether any keyword occurs in the event's text fields.
func (e Event) Matches(keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{e.Summary, e.Description, e.Location, strings.Join(e.Attendees, " ")}, " "))
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
