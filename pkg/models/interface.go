package models

import (
	"context"
	"fmt"
	"strings"
)

// Agent is the minimal language-model capability: prompt in, completion out.
// Implementations return a string or a value whose fmt.Sprint form is the text.
type Agent interface {
	Generate(context.Context, string) (any, error)
}

// ToolDefinition is the manifest entry handed to models with native tool calling.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a structured "call tool X with args Y" instruction from a model.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Completion is either free text or a tool call request.
type Completion struct {
	Text     string
	ToolCall *ToolCall
}

// ToolCaller is implemented by models that accept a tool manifest natively.
type ToolCaller interface {
	GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition) (Completion, error)
}

// Resolver maps a model identifier to a gateway.
type Resolver interface {
	Resolve(ctx context.Context, model string) (Agent, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, model string) (Agent, error)

func (f ResolverFunc) Resolve(ctx context.Context, model string) (Agent, error) {
	return f(ctx, model)
}

// Static resolves every identifier to the same model.
func Static(agent Agent) Resolver {
	return ResolverFunc(func(context.Context, string) (Agent, error) {
		if agent == nil {
			return nil, fmt.Errorf("no model configured")
		}
		return agent, nil
	})
}

// Text normalises a Generate result into plain text.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case Completion:
		return t.Text
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func withPrefix(prefix, prompt, sep string) string {
	if strings.TrimSpace(prefix) == "" {
		return prompt
	}
	return prefix + sep + prompt
}
