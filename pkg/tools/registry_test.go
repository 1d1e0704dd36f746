package tools

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubTool struct {
	name    string
	enabled bool
	result  Result
	calls   int
}

func (s *stubTool) Spec() Spec {
	return Spec{
		Name:        s.name,
		Description: "stub " + s.name,
		Parameters: map[string]ParameterSchema{
			"query": {Type: "string", Required: true},
		},
	}
}

func (s *stubTool) Invoke(_ context.Context, _ map[string]any) (Result, error) {
	s.calls++
	return s.result, nil
}

func (s *stubTool) Enabled() bool { return s.enabled }

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg, err := NewRegistry(&stubTool{name: "list_events", enabled: true})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	err = reg.Register(&stubTool{name: "List_Events", enabled: true})
	if !errors.Is(err, ErrDuplicateToolName) {
		t.Fatalf("expected ErrDuplicateToolName, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Len())
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	reg, _ := NewRegistry()
	if err := reg.Register(&stubTool{name: "  "}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := reg.Register(nil); err == nil {
		t.Fatalf("expected error for nil tool")
	}
}

func TestRegistryAvailableExcludesDisabled(t *testing.T) {
	reg, err := NewRegistry(
		&stubTool{name: "search_events", enabled: true},
		&stubTool{name: "send_email", enabled: false},
		&stubTool{name: "create_event", enabled: true},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := reg.Available()
	if len(specs) != 2 {
		t.Fatalf("expected 2 enabled tools, got %d", len(specs))
	}
	if specs[0].Name != "search_events" || specs[1].Name != "create_event" {
		t.Fatalf("unexpected order: %v, %v", specs[0].Name, specs[1].Name)
	}
	if len(reg.All()) != 3 {
		t.Fatalf("expected All to include disabled tools")
	}
	if _, _, ok := reg.Lookup("send_email"); ok {
		t.Fatalf("disabled tool should not be found")
	}
}

func TestRegistryInvoke(t *testing.T) {
	want := Result{Success: true, Message: "3 events", Data: []string{"a", "b", "c"}}
	tool := &stubTool{name: "list_events", enabled: true, result: want}
	reg, _ := NewRegistry(tool)

	got, err := reg.Invoke(context.Background(), "LIST_EVENTS", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.Message != want.Message || !got.Success {
		t.Fatalf("unexpected result: %+v", got)
	}
	if tool.calls != 1 {
		t.Fatalf("expected one call, got %d", tool.calls)
	}

	if _, err := reg.Invoke(context.Background(), "missing", nil); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestValidateArguments(t *testing.T) {
	spec := Spec{
		Name: "create_event",
		Parameters: map[string]ParameterSchema{
			"summary":  {Type: "string", Required: true},
			"duration": {Type: "integer"},
			"color":    {Type: "string", Enum: []string{"red", "blue"}},
		},
	}
	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"summary": "Lunch", "duration": float64(30)}, false},
		{"missing", map[string]any{"duration": float64(30)}, true},
		{"blank", map[string]any{"summary": "  "}, true},
		{"wrong type", map[string]any{"summary": "Lunch", "duration": "thirty"}, true},
		{"fractional integer", map[string]any{"summary": "Lunch", "duration": 1.5}, true},
		{"enum ok", map[string]any{"summary": "Lunch", "color": "Blue"}, false},
		{"enum bad", map[string]any{"summary": "Lunch", "color": "green"}, true},
		{"extra ignored", map[string]any{"summary": "Lunch", "extra": true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateArguments(spec, tc.args)
			if tc.wantErr && !errors.Is(err, ErrInvalidArguments) {
				t.Fatalf("expected ErrInvalidArguments, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	spec := Spec{
		Name: "search_events",
		Parameters: map[string]ParameterSchema{
			"query": {Type: "string", Required: true, Description: "keywords"},
			"limit": {Type: "integer"},
			"order": {Enum: []string{"asc", "desc"}},
		},
	}
	schema := spec.JSONSchema()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema")
	}
	req, _ := schema["required"].([]string)
	if len(req) != 1 || req[0] != "query" {
		t.Fatalf("unexpected required list: %v", schema["required"])
	}
	props := schema["properties"].(map[string]any)
	order := props["order"].(map[string]any)
	if order["type"] != "string" {
		t.Fatalf("expected default string type, got %v", order["type"])
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"name":     "  Ada ",
		"limit":    float64(7),
		"text":     "12",
		"keywords": []any{"standup", " ", "review"},
		"csv":      "a, b,,c",
	}
	if got := String(args, "name"); got != "Ada" {
		t.Fatalf("String = %q", got)
	}
	if got := Int(args, "limit", 1); got != 7 {
		t.Fatalf("Int = %d", got)
	}
	if got := Int(args, "text", 1); got != 12 {
		t.Fatalf("Int(string) = %d", got)
	}
	if got := Int(args, "missing", 5); got != 5 {
		t.Fatalf("Int default = %d", got)
	}
	if got := Strings(args, "keywords"); len(got) != 2 {
		t.Fatalf("Strings = %v", got)
	}
	if got := Strings(args, "csv"); len(got) != 3 {
		t.Fatalf("Strings(csv) = %v", got)
	}
}

func TestClockTool(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	tool := &ClockTool{Now: func() time.Time { return fixed }}

	res, err := tool.Invoke(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	data := res.Data.(map[string]any)
	if data["time"] != "2024-03-15T09:30:00Z" || data["weekday"] != "Friday" {
		t.Fatalf("unexpected data: %v", data)
	}

	res, _ = tool.Invoke(context.Background(), map[string]any{"timezone": "Not/AZone"})
	if res.Success {
		t.Fatalf("expected failure for bad time zone")
	}
}
