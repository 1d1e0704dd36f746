package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

type fakeService struct {
	events  []Event
	queries []Query
	created []Event
	patches map[string]Patch
	deleted []string
	err     error
}

func (f *fakeService) List(_ context.Context, q Query) ([]Event, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []Event
	for _, e := range f.events {
		if !e.Start.Before(q.From) && e.Start.Before(q.To) {
			out = append(out, e)
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeService) Get(_ context.Context, id string) (Event, error) {
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, ErrEventNotFound
}

func (f *fakeService) Create(_ context.Context, ev Event) (Event, error) {
	if f.err != nil {
		return Event{}, f.err
	}
	ev.ID = "new-1"
	f.created = append(f.created, ev)
	return ev, nil
}

func (f *fakeService) Update(_ context.Context, id string, p Patch) (Event, error) {
	for _, e := range f.events {
		if e.ID != id {
			continue
		}
		if f.patches == nil {
			f.patches = map[string]Patch{}
		}
		f.patches[id] = p
		if p.Summary != nil {
			e.Summary = *p.Summary
		}
		return e, nil
	}
	return Event{}, ErrEventNotFound
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	for _, e := range f.events {
		if e.ID == id {
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return ErrEventNotFound
}

func at(d, h, m int) time.Time {
	return time.Date(2024, 3, d, h, m, 0, 0, time.UTC)
}

func sampleEvents() []Event {
	return []Event{
		{ID: "1", Summary: "Standup", Start: at(11, 9, 0), End: at(11, 9, 15)},
		{ID: "2", Summary: "Budget review with Anna", Start: at(12, 14, 0), End: at(12, 16, 0)},
		{ID: "3", Summary: "Standup", Start: at(12, 9, 0), End: at(12, 9, 15)},
		{ID: "4", Summary: "Dentist", Location: "Main St", Start: at(15, 17, 0), End: at(15, 18, 0)},
		{ID: "5", Summary: "Offsite", Start: day(2024, 3, 19), End: day(2024, 3, 20), AllDay: true},
	}
}

func toolset(svc EventService) map[string]tools.Tool {
	out := map[string]tools.Tool{}
	for _, tool := range Tools(svc, WithClock(func() time.Time { return refNow })) {
		out[tool.Spec().Name] = tool
	}
	return out
}

func TestToolsDisabledWithoutService(t *testing.T) {
	for name, tool := range toolset(nil) {
		a, ok := tool.(tools.Availability)
		if !ok || a.Enabled() {
			t.Fatalf("%s should be disabled without a service", name)
		}
	}
	reg, err := tools.NewRegistry(Tools(nil)...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if len(reg.Available()) != 0 {
		t.Fatalf("expected empty manifest")
	}
}

func TestListEventsUsesRange(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	res, err := toolset(svc)["list_events"].Invoke(context.Background(), map[string]any{"range": "this week"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	events := res.Data.([]Event)
	if !res.Success || len(events) != 4 {
		t.Fatalf("expected 4 events this week, got %d (%s)", len(events), res.Message)
	}
	if q := svc.queries[0]; !q.From.Equal(day(2024, 3, 11)) || q.Limit != defaultListLimit {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestListEventsBadRange(t *testing.T) {
	svc := &fakeService{}
	res, err := toolset(svc)["list_events"].Invoke(context.Background(), map[string]any{"range": "whenever"})
	if err != nil || res.Success {
		t.Fatalf("expected failure result, got %+v err=%v", res, err)
	}
	if len(svc.queries) != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestListEventsServiceError(t *testing.T) {
	svc := &fakeService{err: errors.New("quota exceeded")}
	if _, err := toolset(svc)["list_events"].Invoke(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected service error to propagate")
	}
}

func TestSearchEvents(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	res, err := toolset(svc)["search_events"].Invoke(context.Background(), map[string]any{"query": "meetings with Anna"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	matches := res.Data.([]Event)
	if len(matches) != 1 || matches[0].ID != "2" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if !strings.Contains(res.Message, "Budget review") {
		t.Fatalf("message should describe the match: %q", res.Message)
	}

	res, _ = toolset(svc)["search_events"].Invoke(context.Background(), map[string]any{"query": "my events"})
	if res.Success {
		t.Fatalf("expected failure for keyword-less query")
	}
}

func TestSearchEventsNoMatches(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	res, _ := toolset(svc)["search_events"].Invoke(context.Background(), map[string]any{"query": "gym"})
	if !res.Success || len(res.Data.([]Event)) != 0 {
		t.Fatalf("expected successful empty search, got %+v", res)
	}
}

func TestCreateEvent(t *testing.T) {
	svc := &fakeService{}
	res, err := toolset(svc)["create_event"].Invoke(context.Background(), map[string]any{
		"summary":          "Dentist",
		"start":            "2024-03-20 09:00",
		"duration_minutes": float64(30),
		"attendees":        []any{"a@example.com"},
	})
	if err != nil || !res.Success {
		t.Fatalf("create failed: %+v err=%v", res, err)
	}
	got := svc.created[0]
	if !got.End.Equal(at(20, 9, 30)) || len(got.Attendees) != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}

	res, _ = toolset(svc)["create_event"].Invoke(context.Background(), map[string]any{
		"summary": "Backwards", "start": "2024-03-20 09:00", "end": "2024-03-20 08:00",
	})
	if res.Success {
		t.Fatalf("expected failure for end before start")
	}
}

func TestCreateAllDayEvent(t *testing.T) {
	svc := &fakeService{}
	res, _ := toolset(svc)["create_event"].Invoke(context.Background(), map[string]any{
		"summary": "Holiday", "start": "2024-04-01",
	})
	if !res.Success || !svc.created[0].AllDay || !svc.created[0].End.Equal(day(2024, 4, 2)) {
		t.Fatalf("unexpected all-day event: %+v", svc.created)
	}
}

func TestUpdateEvent(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	set := toolset(svc)

	res, err := set["update_event"].Invoke(context.Background(), map[string]any{"event_id": "4", "summary": "Dentist (moved)"})
	if err != nil || !res.Success {
		t.Fatalf("update failed: %+v err=%v", res, err)
	}
	if p := svc.patches["4"]; p.Summary == nil || p.Start != nil {
		t.Fatalf("unexpected patch: %+v", p)
	}

	res, _ = set["update_event"].Invoke(context.Background(), map[string]any{"event_id": "4"})
	if res.Success {
		t.Fatalf("expected failure for empty patch")
	}
	res, _ = set["update_event"].Invoke(context.Background(), map[string]any{"event_id": "nope", "summary": "x"})
	if res.Success || !strings.Contains(res.Error, "nope") {
		t.Fatalf("expected not-found failure, got %+v", res)
	}
}

func TestUpdateEventKeepsLength(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	update := toolset(svc)["update_event"]

	res, err := update.Invoke(context.Background(), map[string]any{"event_id": "4", "start": "2024-03-15 09:00"})
	if err != nil || !res.Success {
		t.Fatalf("move failed: %+v err=%v", res, err)
	}
	p := svc.patches["4"]
	if p.Start == nil || p.End == nil {
		t.Fatalf("expected start and end in patch: %+v", p)
	}
	if !p.Start.Equal(at(15, 9, 0)) || !p.End.Equal(at(15, 10, 0)) || p.AllDay {
		t.Fatalf("unexpected times: %s - %s", p.Start, p.End)
	}

	res, _ = update.Invoke(context.Background(), map[string]any{"event_id": "2", "start": "2024-03-13 10:00", "end": "2024-03-13 10:30"})
	if !res.Success {
		t.Fatalf("explicit end failed: %+v", res)
	}
	if p := svc.patches["2"]; !p.End.Equal(at(13, 10, 30)) {
		t.Fatalf("explicit end overridden: %s", p.End)
	}

	res, _ = update.Invoke(context.Background(), map[string]any{"event_id": "5", "start": "2024-03-21"})
	if !res.Success {
		t.Fatalf("all-day move failed: %+v", res)
	}
	if p := svc.patches["5"]; !p.AllDay || !p.End.Equal(day(2024, 3, 22)) {
		t.Fatalf("unexpected all-day patch: %+v end=%s", p, p.End)
	}

	res, _ = update.Invoke(context.Background(), map[string]any{"event_id": "missing", "start": "2024-03-15 09:00"})
	if res.Success || !strings.Contains(res.Error, "missing") {
		t.Fatalf("expected not-found failure, got %+v", res)
	}
}

func TestDeleteEvent(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	set := toolset(svc)
	res, err := set["delete_event"].Invoke(context.Background(), map[string]any{"event_id": "3"})
	if err != nil || !res.Success || len(svc.deleted) != 1 {
		t.Fatalf("delete failed: %+v err=%v", res, err)
	}
	res, _ = set["delete_event"].Invoke(context.Background(), map[string]any{"event_id": "missing"})
	if res.Success {
		t.Fatalf("expected failure for missing event")
	}
}

func TestSummarizeActivity(t *testing.T) {
	svc := &fakeService{events: sampleEvents()}
	res, err := toolset(svc)["summarize_activity"].Invoke(context.Background(), map[string]any{})
	if err != nil || !res.Success {
		t.Fatalf("summarize failed: %+v err=%v", res, err)
	}
	s := res.Data.(ActivitySummary)
	if s.Events != 4 || len(s.Days) != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.BusiestDay != "2024-03-12" {
		t.Fatalf("busiest day = %s", s.BusiestDay)
	}
	if len(s.TopTopics) != 1 || s.TopTopics[0] != "standup" {
		t.Fatalf("top topics = %v", s.TopTopics)
	}
	if s.From != "2024-03-11" || s.To != "2024-03-17" {
		t.Fatalf("range = %s..%s", s.From, s.To)
	}
}
