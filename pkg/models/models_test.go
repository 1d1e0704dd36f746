package models

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewDummyLLMDefaultPrefix(t *testing.T) {
	llm := NewDummyLLM("")
	resp, err := llm.Generate(context.Background(), "line1\nline2")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := resp.(string); got != "Dummy response: line2" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestDummyLLMHandlesEmptyPrompt(t *testing.T) {
	llm := NewDummyLLM("Prefix")
	resp, err := llm.Generate(context.Background(), "\n\n\n")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := resp.(string); got != "Prefix <empty prompt>" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestNewLLMProviderErrorsOnUnknownProvider(t *testing.T) {
	if _, err := NewLLMProvider(context.Background(), "unknown", "model", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestSupportsSampling(t *testing.T) {
	cases := map[string]bool{
		"gpt-4o":            true,
		"gpt-4o-mini":       true,
		"claude-3-5-sonnet": true,
		"o1":                false,
		"o3-mini":           false,
		"o4-mini":           false,
		"gpt-5":             false,
		"gpt-5-mini":        false,
		"openai/o3-mini":    false,
		"deepseek-reasoner": false,
		"llama3.1:8b":       true,
		"gemini-2.5-flash":  true,
	}
	for model, want := range cases {
		if got := SupportsSampling(model); got != want {
			t.Errorf("SupportsSampling(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestSamplingForModelStripsUnsupported(t *testing.T) {
	s := SamplingOptions{Temperature: Float32(0.2), TopP: Float32(0.9), FrequencyPenalty: Float32(0.1)}
	if got := s.ForModel("o3-mini"); !got.IsZero() {
		t.Fatalf("expected sampling to be stripped, got %+v", got)
	}
	if got := s.ForModel("gpt-4o"); got.Temperature == nil || *got.Temperature != 0.2 {
		t.Fatalf("expected sampling to be kept, got %+v", got)
	}
}

func TestOpenAIRequestOmitsSamplingForReasoningModels(t *testing.T) {
	llm := &OpenAILLM{Model: "o3-mini", Sampling: SamplingOptions{Temperature: Float32(0.7), TopP: Float32(0.5)}}
	req := llm.request("hi")
	if req.Temperature != 0 || req.TopP != 0 {
		t.Fatalf("expected sampling fields to be zero, got temperature=%v top_p=%v", req.Temperature, req.TopP)
	}

	llm.Model = "gpt-4o"
	req = llm.request("hi")
	if req.Temperature != 0.7 || req.TopP != 0.5 {
		t.Fatalf("expected sampling fields to be set, got temperature=%v top_p=%v", req.Temperature, req.TopP)
	}
}

func TestProviderFor(t *testing.T) {
	cases := []struct {
		model    string
		provider string
		name     string
	}{
		{"gpt-4o", "openai", "gpt-4o"},
		{"o3-mini", "openai", "o3-mini"},
		{"claude-3-5-sonnet-latest", "anthropic", "claude-3-5-sonnet-latest"},
		{"gemini-2.5-flash", "gemini", "gemini-2.5-flash"},
		{"llama3.1", "ollama", "llama3.1"},
		{"ollama/qwen2.5", "ollama", "qwen2.5"},
		{"dummy", "dummy", "dummy"},
	}
	for _, tc := range cases {
		p, n := ProviderFor(tc.model)
		if p != tc.provider || n != tc.name {
			t.Errorf("ProviderFor(%q) = (%q, %q), want (%q, %q)", tc.model, p, n, tc.provider, tc.name)
		}
	}
}

func TestRouterCreatesOneClientPerModel(t *testing.T) {
	var created int32
	router := NewRouter(RouterOptions{Factory: func(_ context.Context, provider, model string) (Agent, error) {
		atomic.AddInt32(&created, 1)
		if provider != "anthropic" {
			t.Errorf("unexpected provider %q", provider)
		}
		return NewDummyLLM(model), nil
	}})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := router.Resolve(ctx, "claude-3-haiku"); err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected a single client, got %d", created)
	}
	if _, err := router.Resolve(ctx, "  "); err == nil {
		t.Fatalf("expected error for empty model identifier")
	}
}

func TestRouterPropagatesFactoryErrors(t *testing.T) {
	boom := errors.New("no key")
	router := NewRouter(RouterOptions{Factory: func(context.Context, string, string) (Agent, error) {
		return nil, boom
	}})
	if _, err := router.Resolve(context.Background(), "gpt-4o"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
}

type toolCallerStub struct{}

func (toolCallerStub) Generate(context.Context, string) (any, error) { return "text", nil }
func (toolCallerStub) GenerateWithTools(context.Context, string, []ToolDefinition) (Completion, error) {
	return Completion{ToolCall: &ToolCall{Name: "list_events"}}, nil
}

func TestRateLimitedPreservesToolCalling(t *testing.T) {
	wrapped := NewRateLimited(toolCallerStub{}, rate.NewLimiter(rate.Every(time.Millisecond), 1))
	tc, ok := wrapped.(ToolCaller)
	if !ok {
		t.Fatalf("expected rate limited wrapper to keep ToolCaller")
	}
	out, err := tc.GenerateWithTools(context.Background(), "p", nil)
	if err != nil || out.ToolCall == nil || out.ToolCall.Name != "list_events" {
		t.Fatalf("unexpected completion %+v err=%v", out, err)
	}

	plain := NewRateLimited(NewDummyLLM("x"), rate.NewLimiter(rate.Inf, 1))
	if _, ok := plain.(ToolCaller); ok {
		t.Fatalf("plain model must not gain ToolCaller")
	}
}

func TestStaticResolver(t *testing.T) {
	if _, err := Static(nil).Resolve(context.Background(), "x"); err == nil {
		t.Fatalf("expected error for nil model")
	}
	m := NewDummyLLM("")
	got, err := Static(m).Resolve(context.Background(), "anything")
	if err != nil || got != m {
		t.Fatalf("unexpected resolve result %v err=%v", got, err)
	}
}
