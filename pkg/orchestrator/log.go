package orchestrator

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/alpkeskin/gotoon"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

const maxRenderedData = 4000

// Log is the append-only record of one run. It is owned by a single run and
// not safe for concurrent use.
type Log struct {
	steps []Step
	now   func() time.Time
}

// NewLog creates an empty log stamping entries with now.
func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append assigns the next position and a timestamp, then stores the step.
func (l *Log) Append(s Step) Step {
	s.Position = len(l.steps)
	s.At = l.now()
	if s.Arguments != nil {
		s.Arguments = maps.Clone(s.Arguments)
	}
	l.steps = append(l.steps, s)
	return s
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.steps) }

// Steps returns a copy of the entries in insertion order.
func (l *Log) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Render formats the steps for prompts. Timestamps are omitted so the text
// depends only on what happened, not when.
func Render(steps []Step) string {
	if len(steps) == 0 {
		return "(no steps yet)"
	}
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(renderStep(s))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Transcript formats the steps with timestamps and durations for debugging.
func Transcript(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "%s %s", s.At.Format(time.RFC3339Nano), renderStep(s))
		if s.Duration > 0 {
			fmt.Fprintf(&b, " (%s)", s.Duration)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderStep(s Step) string {
	head := fmt.Sprintf("[%d] %s", s.Position, s.Kind)
	var parts []string
	switch s.Kind {
	case StepDecision:
		if s.Tool != "" {
			parts = append(parts, fmt.Sprintf("call %s with %s", s.Tool, compact(s.Arguments)))
		} else if s.Outcome != "" {
			parts = append(parts, s.Outcome)
		}
	case StepToolCall:
		parts = append(parts, fmt.Sprintf("%s %s", s.Tool, compact(s.Arguments)))
	case StepToolResult:
		parts = append(parts, s.Tool+" -> "+renderResult(s.Result))
	case StepEvaluation, StepSynthesis:
		if s.Outcome != "" {
			parts = append(parts, s.Outcome)
		}
	}
	if s.Rationale != "" {
		parts = append(parts, "reason: "+oneLine(s.Rationale))
	}
	if s.Error != "" {
		parts = append(parts, "error: "+oneLine(s.Error))
	}
	if len(parts) == 0 {
		return head
	}
	return head + ": " + strings.Join(parts, "; ")
}

func renderResult(r *tools.Result) string {
	if r == nil {
		return "no result"
	}
	if !r.Success {
		reason := r.Error
		if reason == "" {
			reason = r.Message
		}
		return "FAILED: " + oneLine(reason)
	}
	out := "ok"
	if r.Message != "" {
		out += ": " + r.Message
	}
	if r.Data != nil {
		if data := toon(r.Data); data != "" {
			if len(data) > maxRenderedData {
				data = data[:maxRenderedData] + "\n..."
			}
			out += "\n  data:\n" + indent(data, "    ")
		}
	}
	return out
}

func compact(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(b)
}

// toon renders structured data in TOON form. Values are normalised through
// JSON first so struct tags are honoured.
func toon(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	encoded, err := gotoon.Encode(generic)
	if err != nil {
		return string(raw)
	}
	return strings.TrimSpace(encoded)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
