package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 250
)

// GoogleService implements EventService on the Google Calendar v3 API.
type GoogleService struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleService builds a service authorised by the given token source.
func NewGoogleService(ctx context.Context, ts oauth2.TokenSource, calendarID string, loc *time.Location) (*GoogleService, error) {
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return newGoogleService(svc, calendarID, loc), nil
}

func newGoogleService(svc *gcal.Service, calendarID string, loc *time.Location) *GoogleService {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleService{svc: svc, calendarID: calendarID, loc: loc}
}

func (g *GoogleService) List(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}
	call := g.svc.Events.List(g.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(limit)).
		Context(ctx)
	if !q.From.IsZero() {
		call = call.TimeMin(q.From.Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		call = call.TimeMax(q.To.Format(time.RFC3339))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, fromGoogle(item, g.loc))
	}
	return events, nil
}

func (g *GoogleService) Create(ctx context.Context, ev Event) (Event, error) {
	created, err := g.svc.Events.Insert(g.calendarID, toGoogle(ev, g.loc)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	return fromGoogle(created, g.loc), nil
}

func (g *GoogleService) Get(ctx context.Context, id string) (Event, error) {
	item, err := g.svc.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("get event %s: %w", id, notFound(err))
	}
	return fromGoogle(item, g.loc), nil
}

func (g *GoogleService) Update(ctx context.Context, id string, patch Patch) (Event, error) {
	updated, err := g.svc.Events.Patch(g.calendarID, id, patchBody(patch, g.loc)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("update event %s: %w", id, notFound(err))
	}
	return fromGoogle(updated, g.loc), nil
}

func patchBody(patch Patch, loc *time.Location) *gcal.Event {
	body := &gcal.Event{}
	if patch.Summary != nil {
		body.Summary = *patch.Summary
	}
	if patch.Description != nil {
		body.Description = *patch.Description
	}
	if patch.Location != nil {
		body.Location = *patch.Location
	}
	when := func(t time.Time) *gcal.EventDateTime {
		if patch.AllDay {
			return &gcal.EventDateTime{Date: t.In(loc).Format(dateLayout)}
		}
		return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: loc.String()}
	}
	if patch.Start != nil {
		body.Start = when(*patch.Start)
	}
	if patch.End != nil {
		body.End = when(*patch.End)
	}
	return body
}

func (g *GoogleService) Delete(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", id, notFound(err))
	}
	return nil
}

func notFound(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return ErrEventNotFound
	}
	return err
}

func fromGoogle(item *gcal.Event, loc *time.Location) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Link:        item.HtmlLink,
	}
	ev.Start, ev.AllDay = parseEventTime(item.Start, loc)
	ev.End, _ = parseEventTime(item.End, loc)
	for _, a := range item.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}
	return ev
}

func parseEventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t.In(loc), false
		}
	}
	if dt.Date != "" {
		if t, err := time.ParseInLocation(dateLayout, dt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toGoogle(ev Event, loc *time.Location) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		end := ev.End
		if !end.After(ev.Start) {
			end = ev.Start.AddDate(0, 0, 1)
		}
		out.Start = &gcal.EventDateTime{Date: ev.Start.In(loc).Format(dateLayout)}
		out.End = &gcal.EventDateTime{Date: end.In(loc).Format(dateLayout)}
	} else {
		out.Start = &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: loc.String()}
		out.End = &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: loc.String()}
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}
