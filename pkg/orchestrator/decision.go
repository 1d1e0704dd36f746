package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

// decision is the parsed answer of the Deciding phase.
type decision struct {
	UseTool   bool
	Tool      string
	Arguments map[string]any
	Reasoning string
}

type decisionJSON struct {
	UseTool   *bool          `json:"use_tool"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Reasoning string         `json:"reasoning"`
}

// evaluation statuses.
const (
	statusSufficient = "sufficient"
	statusContinue   = "continue"
	statusStuck      = "stuck"
)

type evaluation struct {
	Status    string `json:"status"`
	Reasoning string `json:"reasoning"`
}

// objectAt returns the balanced JSON object opening at s[start], ignoring
// braces inside string literals, or "" when it never closes.
func objectAt(s string, start int) string {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// extractJSON returns the first balanced JSON object in s.
func extractJSON(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			if raw := objectAt(s, i); raw != "" {
				return raw
			}
		}
	}
	return ""
}

var errNoJSON = errors.New("no JSON object in model output")

// decodeObject decodes the first balanced object in s that unmarshals into T
// and satisfies accept. Prose such as "{list_events}" before the real object
// is skipped. It returns errNoJSON when s holds no balanced object at all.
func decodeObject[T any](s string, accept func(T) bool) (T, error) {
	var zero T
	var firstErr error
	found := false
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		raw := objectAt(s, i)
		if raw == "" {
			continue
		}
		found = true
		var v T
		err := json.Unmarshal([]byte(raw), &v)
		if err == nil && (accept == nil || accept(v)) {
			return v, nil
		}
		if err == nil {
			err = fmt.Errorf("unexpected object %s", raw)
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if !found {
		return zero, errNoJSON
	}
	return zero, firstErr
}

// parseDecision interprets a model completion against the run's manifest.
// Any returned error wraps ErrMalformedDecision.
func parseDecision(c models.Completion, allowed map[string]tools.Spec, native bool) (decision, error) {
	if c.ToolCall != nil {
		return checkTool(decision{
			UseTool:   true,
			Tool:      c.ToolCall.Name,
			Arguments: c.ToolCall.Arguments,
		}, allowed)
	}

	parsed, err := decodeObject[decisionJSON](c.Text, func(d decisionJSON) bool {
		return d.UseTool != nil || d.Tool != "" || d.Reasoning != ""
	})
	if errors.Is(err, errNoJSON) && native && strings.TrimSpace(c.Text) != "" {
		return decision{Reasoning: strings.TrimSpace(c.Text)}, nil
	}
	if err != nil {
		return decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	d := decision{
		Tool:      strings.TrimSpace(parsed.Tool),
		Arguments: parsed.Arguments,
		Reasoning: strings.TrimSpace(parsed.Reasoning),
	}
	if parsed.UseTool != nil {
		d.UseTool = *parsed.UseTool
	} else {
		d.UseTool = d.Tool != ""
	}
	if !d.UseTool {
		d.Tool, d.Arguments = "", nil
		return d, nil
	}
	if d.Tool == "" {
		return decision{}, fmt.Errorf("%w: use_tool is true but no tool was named", ErrMalformedDecision)
	}
	return checkTool(d, allowed)
}

func checkTool(d decision, allowed map[string]tools.Spec) (decision, error) {
	spec, ok := allowed[strings.ToLower(d.Tool)]
	if !ok {
		return d, fmt.Errorf("%w: tool %q is not available", ErrMalformedDecision, d.Tool)
	}
	d.Tool = spec.Name
	if d.Arguments == nil {
		d.Arguments = map[string]any{}
	}
	if err := tools.ValidateArguments(spec, d.Arguments); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	return d, nil
}

// parseEvaluation interprets the Evaluating phase output.
func parseEvaluation(text string) (evaluation, error) {
	ev, err := decodeObject[evaluation](text, func(e evaluation) bool {
		return strings.TrimSpace(e.Status) != ""
	})
	if err != nil {
		return evaluation{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	switch strings.ToLower(strings.TrimSpace(ev.Status)) {
	case statusSufficient, "complete", "done":
		ev.Status = statusSufficient
	case statusContinue, "insufficient", "need_more", "more":
		ev.Status = statusContinue
	case statusStuck, "impossible", "blocked":
		ev.Status = statusStuck
	default:
		return evaluation{}, fmt.Errorf("%w: unknown evaluation status %q", ErrMalformedDecision, ev.Status)
	}
	ev.Reasoning = strings.TrimSpace(ev.Reasoning)
	return ev, nil
}
