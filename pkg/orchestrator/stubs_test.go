package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

// scriptedModel answers each phase from its own queue.
type scriptedModel struct {
	mu sync.Mutex

	decisions   []string
	evaluations []string
	synthesis   string
	synthErr    error

	defaultDecision   string
	defaultEvaluation string

	prompts map[string][]string
}

func phaseOf(prompt string) string {
	switch {
	case strings.Contains(prompt, decideHeader):
		return "decide"
	case strings.Contains(prompt, evaluateHeader):
		return "evaluate"
	case strings.Contains(prompt, synthesizeHeader):
		return "synthesize"
	}
	return "unknown"
}

func pop(queue *[]string, def string) string {
	if len(*queue) == 0 {
		return def
	}
	out := (*queue)[0]
	*queue = (*queue)[1:]
	return out
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase := phaseOf(prompt)
	if m.prompts == nil {
		m.prompts = map[string][]string{}
	}
	m.prompts[phase] = append(m.prompts[phase], prompt)

	switch phase {
	case "decide":
		def := m.defaultDecision
		if def == "" {
			def = `{"use_tool": false, "reasoning": "nothing else to do"}`
		}
		return pop(&m.decisions, def), nil
	case "evaluate":
		def := m.defaultEvaluation
		if def == "" {
			def = `{"status": "sufficient", "reasoning": "enough"}`
		}
		return pop(&m.evaluations, def), nil
	case "synthesize":
		if m.synthErr != nil {
			return nil, m.synthErr
		}
		if m.synthesis == "" {
			return "final answer", nil
		}
		return m.synthesis, nil
	}
	return nil, errors.New("unexpected prompt")
}

func (m *scriptedModel) calls(phase string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts[phase])
}

func (m *scriptedModel) prompt(phase string, i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[phase][i]
}

// fakeTool is a configurable registry tool.
type fakeTool struct {
	name     string
	required []string
	disabled bool
	fn       func(ctx context.Context, args map[string]any) (tools.Result, error)

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeTool) Spec() tools.Spec {
	params := map[string]tools.ParameterSchema{
		"range": {Type: "string"},
		"query": {Type: "string"},
	}
	for _, r := range f.required {
		p := params[r]
		p.Type = "string"
		p.Required = true
		params[r] = p
	}
	return tools.Spec{Name: f.name, Description: "fake " + f.name, Parameters: params}
}

func (f *fakeTool) Enabled() bool { return !f.disabled }

func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, args)
	}
	return tools.Result{Success: true, Message: f.name + " ok"}, nil
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(ts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestOrchestrator(model models.Agent, opts ...Option) *Orchestrator {
	base := []Option{
		WithClock(fixedClock()),
		WithIDGenerator(func() string { return "run-1" }),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}),
	}
	return New(models.Static(model), append(base, opts...)...)
}

func kinds(steps []Step) []StepKind {
	out := make([]StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func countKind(steps []Step, k StepKind) int {
	n := 0
	for _, s := range steps {
		if s.Kind == k {
			n++
		}
	}
	return n
}
