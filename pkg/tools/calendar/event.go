// Package calendar exposes Google Calendar operations as orchestrator tools.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound is returned by services when an event ID does not exist.
var ErrEventNotFound = errors.New("event not found")

// Event is the calendar-agnostic view of an event used by the tools.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Link        string    `json:"link,omitempty"`
}

// Duration returns End-Start, or zero for malformed events.
func (e Event) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Patch lists the fields to change on an existing event. Nil fields are kept.
type Patch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	// AllDay sends Start and End as dates.
	AllDay bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil && p.Start == nil && p.End == nil
}

// Query selects events in [From, To).
type Query struct {
	From  time.Time
	To    time.Time
	Limit int
}

// EventService is the calendar backend used by the tools.
type EventService interface {
	List(ctx context.Context, q Query) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, ev Event) (Event, error)
	Update(ctx context.Context, id string, patch Patch) (Event, error)
	Delete(ctx context.Context, id string) error
}
