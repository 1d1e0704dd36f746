package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// String returns args[name] as a trimmed string.
func String(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Int returns args[name] as an int, or def when absent or unparsable.
func Int(args map[string]any, name string, def int) int {
	switch n := args[name].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if v, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return v
		}
	}
	return def
}

// Strings returns args[name] as a string slice. A single string is split on commas.
func Strings(args map[string]any, name string) []string {
	var out []string
	switch v := args[name].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		out = strings.Split(v, ",")
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}
