// Package utcptool exposes tools discovered through a UTCP client as registry
// tools, so external providers (HTTP, CLI, MCP, ...) can join the manifest.
package utcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

const maxMessageLen = 2000

// Client is the subset of utcp.UtcpClientInterface the adapter needs.
type Client interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (any, error)
	SearchTools(query string, limit int) ([]utcptools.Tool, error)
}

// Tool wraps one UTCP tool.
type Tool struct {
	client Client
	remote string
	spec   tools.Spec
}

// New wraps a discovered UTCP tool. The registry name replaces dots with
// underscores since some providers reject dotted function names.
func New(client Client, t utcptools.Tool) *Tool {
	return &Tool{
		client: client,
		remote: t.Name,
		spec: tools.Spec{
			Name:        strings.ReplaceAll(t.Name, ".", "_"),
			Description: t.Description,
			Parameters:  parameters(t.Inputs),
		},
	}
}

// Discover searches the client and wraps every match. An empty query lists all tools.
func Discover(client Client, query string, limit int) ([]tools.Tool, error) {
	found, err := client.SearchTools(query, limit)
	if err != nil {
		return nil, fmt.Errorf("search utcp tools: %w", err)
	}
	out := make([]tools.Tool, 0, len(found))
	for _, t := range found {
		out = append(out, New(client, t))
	}
	return out, nil
}

func parameters(schema utcptools.ToolInputOutputSchema) map[string]tools.ParameterSchema {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	out := make(map[string]tools.ParameterSchema, len(schema.Properties))
	for name, raw := range schema.Properties {
		p := tools.ParameterSchema{Required: required[name]}
		if prop, ok := raw.(map[string]any); ok {
			p.Type, _ = prop["type"].(string)
			p.Description, _ = prop["description"].(string)
			if enum, ok := prop["enum"].([]any); ok {
				for _, e := range enum {
					p.Enum = append(p.Enum, fmt.Sprint(e))
				}
			}
		}
		out[name] = p
	}
	return out
}

func (t *Tool) Enabled() bool { return t.client != nil }

func (t *Tool) Spec() tools.Spec { return t.spec }

// Remote returns the UTCP name used for calls.
func (t *Tool) Remote() string { return t.remote }

func (t *Tool) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	out, err := t.client.CallTool(ctx, t.remote, args)
	if err != nil {
		return tools.Result{}, fmt.Errorf("utcp %s: %w", t.remote, err)
	}
	return tools.Result{Success: true, Data: out, Message: message(out)}, nil
}

func message(out any) string {
	var s string
	switch v := out.(type) {
	case nil:
		return "done"
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprint(v)
		} else {
			s = string(b)
		}
	}
	s = strings.TrimSpace(s)
	if len(s) > maxMessageLen {
		s = s[:maxMessageLen] + "..."
	}
	return s
}
