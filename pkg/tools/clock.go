package tools

import (
	"context"
	"time"
)

// ClockTool reports the current time so the model can resolve relative dates
// such as "tomorrow" or "next week".
type ClockTool struct {
	Location *time.Location
	Now      func() time.Time
}

func (c *ClockTool) Spec() Spec {
	return Spec{
		Name:        "current_time",
		Description: "Returns the current date and time, including weekday and time zone.",
		Parameters: map[string]ParameterSchema{
			"timezone": {Type: "string", Description: "IANA time zone name, e.g. Europe/Warsaw. Defaults to the calendar time zone."},
		},
	}
}

func (c *ClockTool) Invoke(_ context.Context, args map[string]any) (Result, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	if tz := String(args, "timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Failure("unknown time zone " + tz), nil
		}
		loc = l
	}
	t := now().In(loc)
	return Result{
		Success: true,
		Data: map[string]any{
			"time":     t.Format(time.RFC3339),
			"weekday":  t.Weekday().String(),
			"timezone": loc.String(),
		},
		Message: "It is " + t.Format("Monday, 2 January 2006 15:04 MST") + ".",
	}, nil
}
