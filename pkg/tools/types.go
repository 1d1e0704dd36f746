// Package tools defines the tool contract consumed by the orchestrator and the
// registry that holds every tool available to a deployment.
package tools

import (
	"context"
	"sort"
)

// ParameterSchema describes one tool argument.
type ParameterSchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Spec describes how a tool is presented to the model.
type Spec struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Parameters  map[string]ParameterSchema `json:"parameters,omitempty"`
	Examples    []map[string]any           `json:"examples,omitempty"`
}

// Result is the structured outcome of a tool invocation.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds an unsuccessful Result.
func Failure(reason string) Result {
	return Result{Success: false, Error: reason}
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() Spec
	Invoke(ctx context.Context, args map[string]any) (Result, error)
}

// Availability is implemented by tools whose backing service may be missing
// credentials or configuration. Disabled tools are hidden from the manifest.
type Availability interface {
	Enabled() bool
}

// Func adapts a function into a Tool.
type Func struct {
	Definition Spec
	Handler    func(ctx context.Context, args map[string]any) (Result, error)
}

func (f *Func) Spec() Spec { return f.Definition }

func (f *Func) Invoke(ctx context.Context, args map[string]any) (Result, error) {
	return f.Handler(ctx, args)
}

// RequiredParameters returns the required argument names in sorted order.
func (s Spec) RequiredParameters() []string {
	var out []string
	for name, p := range s.Parameters {
		if p.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// JSONSchema renders the parameters as a JSON-schema object, the format used
// for prompt manifests and native function calling.
func (s Spec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	for name, p := range s.Parameters {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		prop := map[string]any{"type": typ}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.RequiredParameters(); len(req) > 0 {
		schema["required"] = req
	}
	return schema
}
