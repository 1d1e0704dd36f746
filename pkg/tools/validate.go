package tools

import (
	"fmt"
	"strings"
)

// ValidateArguments checks required parameters, enum membership and basic
// JSON types declared by the tool Spec.
func ValidateArguments(spec Spec, args map[string]any) error {
	var problems []string
	for _, name := range spec.RequiredParameters() {
		v, ok := args[name]
		if !ok || v == nil {
			problems = append(problems, fmt.Sprintf("missing required argument %q", name))
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			problems = append(problems, fmt.Sprintf("argument %q is empty", name))
		}
	}
	for name, v := range args {
		p, ok := spec.Parameters[name]
		if !ok || v == nil {
			continue
		}
		if !matchesType(p.Type, v) {
			problems = append(problems, fmt.Sprintf("argument %q must be of type %s", name, p.Type))
			continue
		}
		if len(p.Enum) > 0 {
			s := fmt.Sprint(v)
			found := false
			for _, e := range p.Enum {
				if strings.EqualFold(e, s) {
					found = true
					break
				}
			}
			if !found {
				problems = append(problems, fmt.Sprintf("argument %q must be one of %s", name, strings.Join(p.Enum, ", ")))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w for %s: %s", ErrInvalidArguments, spec.Name, strings.Join(problems, "; "))
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64, int32:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
