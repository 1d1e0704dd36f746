package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

func TestLogAppendAssignsPositions(t *testing.T) {
	log := NewLog(fixedClock())
	args := map[string]any{"range": "today"}
	log.Append(Step{Kind: StepDecision, Tool: "list_events", Arguments: args})
	log.Append(Step{Kind: StepToolCall, Tool: "list_events", Arguments: args})
	args["range"] = "mutated"

	steps := log.Steps()
	if len(steps) != 2 || log.Len() != 2 {
		t.Fatalf("expected 2 steps")
	}
	for i, s := range steps {
		if s.Position != i || s.At.IsZero() {
			t.Fatalf("step %d: %+v", i, s)
		}
	}
	if steps[0].Arguments["range"] != "today" {
		t.Fatalf("log must not alias caller arguments")
	}

	steps[0].Tool = "changed"
	if log.Steps()[0].Tool != "list_events" {
		t.Fatalf("Steps must return a copy")
	}
}

func TestRender(t *testing.T) {
	if Render(nil) != "(no steps yet)" {
		t.Fatalf("unexpected empty rendering")
	}
	steps := []Step{
		{Position: 0, Kind: StepDecision, Outcome: "use_tool", Tool: "list_events", Arguments: map[string]any{"range": "today"}, Rationale: "need\nevents"},
		{Position: 1, Kind: StepToolResult, Tool: "list_events", Result: &tools.Result{Success: false, Error: "API Error"}},
		{Position: 2, Kind: StepToolResult, Tool: "list_events", Result: &tools.Result{Success: true, Message: "2 events", Data: map[string]any{"count": 2}}},
		{Position: 3, Kind: StepEvaluation, Outcome: "malformed", Error: "no JSON"},
		{Position: 4, Kind: StepSynthesis, At: time.Now()},
	}
	out := Render(steps)
	for _, want := range []string{
		`[0] decision: call list_events with {"range":"today"}; reason: need events`,
		"[1] tool_result: list_events -> FAILED: API Error",
		"[2] tool_result: list_events -> ok: 2 events",
		"count",
		"[3] evaluation: malformed; error: no JSON",
		"[4] synthesis",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendering missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, time.Now().Format("2006-01-02")) {
		t.Fatalf("render must not include timestamps")
	}
}

func TestRenderManifest(t *testing.T) {
	out := renderManifest([]tools.Spec{{
		Name:        "search_events",
		Description: "Searches events",
		Parameters:  map[string]tools.ParameterSchema{"query": {Type: "string", Required: true}},
	}})
	for _, want := range []string{"search_events", "Searches events", "query"} {
		if !strings.Contains(out, want) {
			t.Fatalf("manifest missing %q:\n%s", want, out)
		}
	}
	if renderManifest(nil) != "(no tools available)" {
		t.Fatalf("unexpected empty manifest")
	}
}
