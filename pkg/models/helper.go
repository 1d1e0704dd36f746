package models

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NewLLMProvider returns a concrete Agent.
func NewLLMProvider(ctx context.Context, provider string, model string, promptPrefix string) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAILLM(model, promptPrefix), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, model, promptPrefix)
	case "ollama":
		return NewOllamaLLM(model, promptPrefix)
	case "anthropic", "claude":
		return NewAnthropicLLM(model, promptPrefix), nil
	case "dummy":
		return NewDummyLLM(promptPrefix), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// ProviderFor infers the provider from a model identifier. An explicit
// "provider/model" form always wins.
func ProviderFor(model string) (provider, name string) {
	m := strings.TrimSpace(model)
	if i := strings.Index(m, "/"); i > 0 {
		return strings.ToLower(m[:i]), m[i+1:]
	}
	lower := strings.ToLower(m)
	switch {
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "chatgpt"),
		lower == "o1", lower == "o3", lower == "o4",
		strings.HasPrefix(lower, "o1-"), strings.HasPrefix(lower, "o3-"), strings.HasPrefix(lower, "o4-"):
		return "openai", m
	case strings.HasPrefix(lower, "claude"):
		return "anthropic", m
	case strings.HasPrefix(lower, "gemini"):
		return "gemini", m
	case lower == "dummy":
		return "dummy", m
	default:
		return "ollama", m
	}
}

// Factory builds a gateway for a provider/model pair.
type Factory func(ctx context.Context, provider, model string) (Agent, error)

// Router resolves model identifiers to provider clients, creating each client
// once and sharing it across runs. Clients are wrapped with a rate limiter when
// RequestsPerSecond is positive.
type Router struct {
	mu       sync.Mutex
	agents   map[string]Agent
	factory  Factory
	sampling SamplingOptions
	limit    rate.Limit
	burst    int
	cache    int
	cacheTTL time.Duration
}

// RouterOptions configure a Router.
type RouterOptions struct {
	Factory           Factory
	Sampling          SamplingOptions
	RequestsPerSecond float64
	Burst             int
	// CacheSize > 0 memoizes completions per model. Cached agents answer
	// in text mode only.
	CacheSize int
	CacheTTL  time.Duration
}

// NewRouter creates a Router. A nil factory uses NewLLMProvider.
func NewRouter(opts RouterOptions) *Router {
	factory := opts.Factory
	if factory == nil {
		factory = func(ctx context.Context, provider, model string) (Agent, error) {
			return NewLLMProvider(ctx, provider, model, "")
		}
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Router{
		agents:   make(map[string]Agent),
		factory:  factory,
		sampling: opts.Sampling,
		limit:    rate.Limit(opts.RequestsPerSecond),
		burst:    burst,
		cache:    opts.CacheSize,
		cacheTTL: opts.CacheTTL,
	}
}

// Resolve implements Resolver.
func (r *Router) Resolve(ctx context.Context, model string) (Agent, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model identifier is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent, ok := r.agents[model]; ok {
		return agent, nil
	}
	provider, name := ProviderFor(model)
	agent, err := r.factory(ctx, provider, name)
	if err != nil {
		return nil, fmt.Errorf("resolve model %s: %w", model, err)
	}
	applySampling(agent, r.sampling)
	if r.cache > 0 {
		agent = NewCachedLLM(agent, r.cache, r.cacheTTL)
	}
	if r.limit > 0 {
		agent = NewRateLimited(agent, rate.NewLimiter(r.limit, r.burst))
	}
	r.agents[model] = agent
	return agent, nil
}

func applySampling(agent Agent, s SamplingOptions) {
	if s.IsZero() {
		return
	}
	switch a := agent.(type) {
	case *OpenAILLM:
		a.Sampling = s
	case *AnthropicLLM:
		a.Sampling = s
	case *GeminiLLM:
		a.Sampling = s
	case *OllamaLLM:
		a.Sampling = s
	}
}

// RateLimited throttles calls to the wrapped gateway.
type RateLimited struct {
	Agent   Agent
	Limiter *rate.Limiter
}

func NewRateLimited(agent Agent, limiter *rate.Limiter) Agent {
	rl := &RateLimited{Agent: agent, Limiter: limiter}
	if _, ok := agent.(ToolCaller); ok {
		return &rateLimitedToolCaller{rl}
	}
	return rl
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (any, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Agent.Generate(ctx, prompt)
}

type rateLimitedToolCaller struct {
	*RateLimited
}

func (r *rateLimitedToolCaller) GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition) (Completion, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return Completion{}, err
	}
	return r.Agent.(ToolCaller).GenerateWithTools(ctx, prompt, tools)
}

var _ Resolver = (*Router)(nil)
