package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry is the in-memory tool catalog. Names are matched case-insensitively.
// Registration happens at startup; lookups are safe for concurrent runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	specs map[string]Spec
	order []string
}

// NewRegistry constructs a registry seeded with the provided tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool),
		specs: make(map[string]Spec),
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a tool. Duplicate names return ErrDuplicateToolName.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	k := key(spec.Name)
	if k == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToolName, spec.Name)
	}
	r.tools[k] = tool
	r.specs[k] = spec
	r.order = append(r.order, k)
	return nil
}

func enabled(tool Tool) bool {
	if a, ok := tool.(Availability); ok {
		return a.Enabled()
	}
	return true
}

// Available returns the manifest of enabled tools in registration order.
func (r *Registry) Available() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		if !enabled(r.tools[k]) {
			continue
		}
		specs = append(specs, r.specs[k])
	}
	return specs
}

// All returns every registered spec, enabled or not.
func (r *Registry) All() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		specs = append(specs, r.specs[k])
	}
	return specs
}

// Lookup returns an enabled tool and its spec.
func (r *Registry) Lookup(name string) (Tool, Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k := key(name)
	tool, ok := r.tools[k]
	if !ok || !enabled(tool) {
		return nil, Spec{}, false
	}
	return tool, r.specs[k], true
}

// Invoke delegates to the named tool and returns its Result unchanged.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	tool, _, ok := r.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return tool.Invoke(ctx, args)
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
