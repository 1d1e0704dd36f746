package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

const (
	defaultListLimit     = 25
	defaultEventDuration = time.Hour
)

// Option customises the calendar tools.
type Option func(*base)

// WithClock overrides time.Now, used to resolve relative ranges.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithLocation sets the calendar time zone.
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

type base struct {
	svc EventService
	now func() time.Time
	loc *time.Location
}

func (b *base) Enabled() bool { return b.svc != nil }

func (b *base) clock() time.Time { return b.now().In(b.loc) }

// resolveRange reads "range", "start" and "end" arguments. Explicit bounds win
// over the range expression; def is used when neither is given.
func (b *base) resolveRange(args map[string]any, def string) (Range, error) {
	now := b.clock()
	expr := tools.String(args, "range")
	if expr == "" {
		expr = def
	}
	r, err := ParseRange(expr, now)
	if err != nil {
		return Range{}, err
	}
	if s := tools.String(args, "start"); s != "" {
		t, _, err := ParseTime(s, b.loc)
		if err != nil {
			return Range{}, err
		}
		r.From = t
	}
	if s := tools.String(args, "end"); s != "" {
		t, allDay, err := ParseTime(s, b.loc)
		if err != nil {
			return Range{}, err
		}
		if allDay {
			t = t.AddDate(0, 0, 1)
		}
		r.To = t
	}
	if !r.To.After(r.From) {
		return Range{}, fmt.Errorf("end must be after start")
	}
	return r, nil
}

// Tools returns the calendar tool family backed by svc. A nil service yields
// tools that report themselves disabled.
func Tools(svc EventService, opts ...Option) []tools.Tool {
	b := &base{svc: svc, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(b)
	}
	return []tools.Tool{
		&ListEvents{b},
		&SearchEvents{b},
		&CreateEvent{b},
		&UpdateEvent{b},
		&DeleteEvent{b},
		&SummarizeActivity{b},
	}
}

var rangeParams = map[string]tools.ParameterSchema{
	"range": {Type: "string", Description: "Relative range: today, tomorrow, yesterday, this week, next week, last week, this month, last month, next N days, last N days, or YYYY-MM-DD..YYYY-MM-DD."},
	"start": {Type: "string", Description: "Explicit start (RFC3339 or YYYY-MM-DD). Overrides range."},
	"end":   {Type: "string", Description: "Explicit end (RFC3339 or YYYY-MM-DD). Overrides range."},
}

func withRange(extra map[string]tools.ParameterSchema) map[string]tools.ParameterSchema {
	out := make(map[string]tools.ParameterSchema, len(rangeParams)+len(extra))
	for k, v := range rangeParams {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func formatEvent(e Event) string {
	var when string
	if e.AllDay {
		when = e.Start.Format("Mon 2 Jan") + " (all day)"
	} else {
		when = e.Start.Format("Mon 2 Jan 15:04") + "-" + e.End.Format("15:04")
	}
	line := fmt.Sprintf("%s: %s [id %s]", when, e.Summary, e.ID)
	if e.Location != "" {
		line += " @ " + e.Location
	}
	return line
}

func describe(events []Event, empty string) string {
	if len(events) == 0 {
		return empty
	}
	lines := make([]string, 0, len(events)+1)
	lines = append(lines, fmt.Sprintf("Found %d event(s):", len(events)))
	for _, e := range events {
		lines = append(lines, "- "+formatEvent(e))
	}
	return strings.Join(lines, "\n")
}

// ListEvents lists events within a date range.
type ListEvents struct{ *base }

func (t *ListEvents) Spec() tools.Spec {
	return tools.Spec{
		Name:        "list_events",
		Description: "Lists calendar events in a date range. Defaults to the next seven days.",
		Parameters: withRange(map[string]tools.ParameterSchema{
			"limit": {Type: "integer", Description: "Maximum number of events to return (default 25)."},
		}),
		Examples: []map[string]any{{"range": "tomorrow"}, {"range": "next week", "limit": 10}},
	}
}

func (t *ListEvents) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	r, err := t.resolveRange(args, "upcoming")
	if err != nil {
		return tools.Failure(err.Error()), nil
	}
	limit := tools.Int(args, "limit", defaultListLimit)
	events, err := t.svc.List(ctx, Query{From: r.From, To: r.To, Limit: limit})
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{
		Success: true,
		Data:    events,
		Message: describe(events, "No events between "+r.From.Format("Mon 2 Jan")+" and "+r.To.Format("Mon 2 Jan")+"."),
	}, nil
}

// SearchEvents finds events matching keywords extracted from a free-text query.
type SearchEvents struct{ *base }

func (t *SearchEvents) Spec() tools.Spec {
	return tools.Spec{
		Name:        "search_events",
		Description: "Searches calendar events by keywords in title, description, location or attendees. Defaults to the last 30 and next 90 days.",
		Parameters: withRange(map[string]tools.ParameterSchema{
			"query": {Type: "string", Required: true, Description: "What to look for, e.g. 'dentist' or 'standup with Anna'."},
			"limit": {Type: "integer", Description: "Maximum number of matches (default 25)."},
		}),
		Examples: []map[string]any{{"query": "dentist"}, {"query": "project review", "range": "last month"}},
	}
}

func (t *SearchEvents) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	query := tools.String(args, "query")
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return tools.Failure(fmt.Sprintf("no searchable keywords in %q", query)), nil
	}

	var r Range
	if tools.String(args, "range") == "" && tools.String(args, "start") == "" && tools.String(args, "end") == "" {
		today := startOfDay(t.clock())
		r = Range{today.AddDate(0, 0, -30), today.AddDate(0, 0, 91)}
	} else {
		var err error
		if r, err = t.resolveRange(args, "upcoming"); err != nil {
			return tools.Failure(err.Error()), nil
		}
	}

	events, err := t.svc.List(ctx, Query{From: r.From, To: r.To})
	if err != nil {
		return tools.Result{}, err
	}
	limit := tools.Int(args, "limit", defaultListLimit)
	matches := make([]Event, 0)
	for _, e := range events {
		if e.Matches(keywords) {
			matches = append(matches, e)
			if len(matches) == limit {
				break
			}
		}
	}
	return tools.Result{
		Success: true,
		Data:    matches,
		Message: describe(matches, "No events matching "+strings.Join(keywords, ", ")+"."),
	}, nil
}

// CreateEvent adds an event.
type CreateEvent struct{ *base }

func (t *CreateEvent) Spec() tools.Spec {
	return tools.Spec{
		Name:        "create_event",
		Description: "Creates a calendar event.",
		Parameters: map[string]tools.ParameterSchema{
			"summary":          {Type: "string", Required: true, Description: "Event title."},
			"start":            {Type: "string", Required: true, Description: "Start time (RFC3339, 'YYYY-MM-DD HH:MM' in calendar time zone, or YYYY-MM-DD for all-day)."},
			"end":              {Type: "string", Description: "End time. Defaults to start plus duration_minutes."},
			"duration_minutes": {Type: "integer", Description: "Length in minutes when end is omitted (default 60)."},
			"description":      {Type: "string"},
			"location":         {Type: "string"},
			"attendees":        {Type: "array", Description: "Attendee e-mail addresses."},
		},
		Examples: []map[string]any{{"summary": "Dentist", "start": "2024-05-02 09:00", "duration_minutes": 30}},
	}
}

func (t *CreateEvent) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	start, allDay, err := ParseTime(tools.String(args, "start"), t.loc)
	if err != nil {
		return tools.Failure(err.Error()), nil
	}
	ev := Event{
		Summary:     tools.String(args, "summary"),
		Description: tools.String(args, "description"),
		Location:    tools.String(args, "location"),
		Start:       start,
		AllDay:      allDay,
		Attendees:   tools.Strings(args, "attendees"),
	}
	switch {
	case tools.String(args, "end") != "":
		end, endAllDay, err := ParseTime(tools.String(args, "end"), t.loc)
		if err != nil {
			return tools.Failure(err.Error()), nil
		}
		if endAllDay && allDay {
			end = end.AddDate(0, 0, 1)
		}
		ev.End = end
	case allDay:
		ev.End = start.AddDate(0, 0, 1)
	default:
		minutes := tools.Int(args, "duration_minutes", int(defaultEventDuration/time.Minute))
		if minutes <= 0 {
			return tools.Failure("duration_minutes must be positive"), nil
		}
		ev.End = start.Add(time.Duration(minutes) * time.Minute)
	}
	if !ev.End.After(ev.Start) {
		return tools.Failure("end must be after start"), nil
	}

	created, err := t.svc.Create(ctx, ev)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Success: true, Data: created, Message: "Created " + formatEvent(created)}, nil
}

// UpdateEvent patches an existing event.
type UpdateEvent struct{ *base }

func (t *UpdateEvent) Spec() tools.Spec {
	return tools.Spec{
		Name:        "update_event",
		Description: "Updates fields of an existing event. Use search_events or list_events first to obtain the event id.",
		Parameters: map[string]tools.ParameterSchema{
			"event_id":    {Type: "string", Required: true},
			"summary":     {Type: "string"},
			"start":       {Type: "string", Description: "New start time. The event keeps its length unless end is also given."},
			"end":         {Type: "string"},
			"description": {Type: "string"},
			"location":    {Type: "string"},
		},
	}
}

func optional(args map[string]any, name string) *string {
	if _, ok := args[name]; !ok {
		return nil
	}
	v := tools.String(args, name)
	return &v
}

func (t *UpdateEvent) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	id := tools.String(args, "event_id")
	patch := Patch{
		Summary:     optional(args, "summary"),
		Description: optional(args, "description"),
		Location:    optional(args, "location"),
	}
	if s := tools.String(args, "start"); s != "" {
		start, allDay, err := ParseTime(s, t.loc)
		if err != nil {
			return tools.Failure(err.Error()), nil
		}
		patch.Start = &start
		patch.AllDay = allDay
	}
	if s := tools.String(args, "end"); s != "" {
		end, endAllDay, err := ParseTime(s, t.loc)
		if err != nil {
			return tools.Failure(err.Error()), nil
		}
		if endAllDay {
			// All-day end dates are exclusive.
			end = end.AddDate(0, 0, 1)
		}
		patch.End = &end
		patch.AllDay = patch.AllDay || endAllDay
	}
	if patch.Empty() {
		return tools.Failure("nothing to update"), nil
	}
	if patch.Start != nil && patch.End == nil {
		current, err := t.svc.Get(ctx, id)
		if errors.Is(err, ErrEventNotFound) {
			return tools.Failure("no event with id " + id), nil
		}
		if err != nil {
			return tools.Result{}, err
		}
		length := current.Duration()
		switch {
		case length > 0:
		case patch.AllDay:
			length = 24 * time.Hour
		default:
			length = defaultEventDuration
		}
		end := patch.Start.Add(length)
		if patch.AllDay {
			end = patch.Start.AddDate(0, 0, int((length+23*time.Hour)/(24*time.Hour)))
		}
		patch.End = &end
	}
	if patch.Start != nil && !patch.End.After(*patch.Start) {
		return tools.Failure("end must be after start"), nil
	}

	updated, err := t.svc.Update(ctx, id, patch)
	if errors.Is(err, ErrEventNotFound) {
		return tools.Failure("no event with id " + id), nil
	}
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Success: true, Data: updated, Message: "Updated " + formatEvent(updated)}, nil
}

// DeleteEvent removes an event by ID.
type DeleteEvent struct{ *base }

func (t *DeleteEvent) Spec() tools.Spec {
	return tools.Spec{
		Name:        "delete_event",
		Description: "Deletes an event by id. Use search_events or list_events first to obtain the id.",
		Parameters: map[string]tools.ParameterSchema{
			"event_id": {Type: "string", Required: true},
		},
	}
}

func (t *DeleteEvent) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	id := tools.String(args, "event_id")
	err := t.svc.Delete(ctx, id)
	if errors.Is(err, ErrEventNotFound) {
		return tools.Failure("no event with id " + id), nil
	}
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Success: true, Data: map[string]string{"id": id}, Message: "Deleted event " + id + "."}, nil
}

// DaySummary aggregates one day of activity.
type DaySummary struct {
	Date   string  `json:"date"`
	Events int     `json:"events"`
	Hours  float64 `json:"hours"`
}

// ActivitySummary is the Data payload of summarize_activity.
type ActivitySummary struct {
	From       string       `json:"from"`
	To         string       `json:"to"`
	Events     int          `json:"events"`
	Hours      float64      `json:"hours"`
	Days       []DaySummary `json:"days"`
	BusiestDay string       `json:"busiest_day,omitempty"`
	TopTopics  []string     `json:"top_topics,omitempty"`
}

// SummarizeActivity aggregates events per day over a range.
type SummarizeActivity struct{ *base }

func (t *SummarizeActivity) Spec() tools.Spec {
	return tools.Spec{
		Name:        "summarize_activity",
		Description: "Summarizes calendar activity over a range: events and hours per day, busiest day and recurring topics. Defaults to this week.",
		Parameters:  withRange(nil),
		Examples:    []map[string]any{{"range": "last week"}},
	}
}

func (t *SummarizeActivity) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	r, err := t.resolveRange(args, "this week")
	if err != nil {
		return tools.Failure(err.Error()), nil
	}
	events, err := t.svc.List(ctx, Query{From: r.From, To: r.To})
	if err != nil {
		return tools.Result{}, err
	}
	summary := Summarize(events, r)
	msg := fmt.Sprintf("%d event(s), %.1f hour(s) between %s and %s.", summary.Events, summary.Hours, summary.From, summary.To)
	if summary.BusiestDay != "" {
		msg += " Busiest day: " + summary.BusiestDay + "."
	}
	if len(summary.TopTopics) > 0 {
		msg += " Recurring topics: " + strings.Join(summary.TopTopics, ", ") + "."
	}
	return tools.Result{Success: true, Data: summary, Message: msg}, nil
}

// Summarize aggregates events by start day. All-day events count towards the
// event total but not towards hours.
func Summarize(events []Event, r Range) ActivitySummary {
	out := ActivitySummary{
		From: r.From.Format(dateLayout),
		To:   r.To.Add(-time.Nanosecond).Format(dateLayout),
	}
	byDay := map[string]*DaySummary{}
	var order []string
	topics := map[string]int{}

	for _, e := range events {
		day := e.Start.Format(dateLayout)
		ds, ok := byDay[day]
		if !ok {
			ds = &DaySummary{Date: day}
			byDay[day] = ds
			order = append(order, day)
		}
		ds.Events++
		out.Events++
		if !e.AllDay {
			h := e.Duration().Hours()
			ds.Hours += h
			out.Hours += h
		}
		for _, k := range ExtractKeywords(e.Summary) {
			topics[k]++
		}
	}

	sort.Strings(order)
	var busiest *DaySummary
	for _, day := range order {
		ds := byDay[day]
		out.Days = append(out.Days, *ds)
		if busiest == nil || ds.Hours > busiest.Hours || (ds.Hours == busiest.Hours && ds.Events > busiest.Events) {
			busiest = ds
		}
	}
	if busiest != nil {
		out.BusiestDay = busiest.Date
	}

	type topic struct {
		name  string
		count int
	}
	var ranked []topic
	for name, count := range topics {
		if count > 1 {
			ranked = append(ranked, topic{name, count})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	for i := 0; i < len(ranked) && i < 5; i++ {
		out.TopTopics = append(out.TopTopics, ranked[i].name)
	}
	return out
}
