package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Expected default model 'gpt-4o-mini', got '%s'", cfg.Model)
	}
	if cfg.MaxSteps != 10 || cfg.MaxToolCalls != 5 || cfg.CallTimeout != 30*time.Second {
		t.Errorf("unexpected budget defaults: %+v", cfg.Budget())
	}
	if cfg.CalendarID != "primary" {
		t.Errorf("Expected calendar 'primary', got '%s'", cfg.CalendarID)
	}
	if cfg.GoogleConfigured() {
		t.Errorf("Google should not be configured by default")
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Expected UTC location")
	}
	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.InitialBackoff != 100*time.Millisecond || p.MaxBackoff != 2*time.Second {
		t.Errorf("unexpected retry policy: %+v", p)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_MODEL", "anthropic/claude-3-5-sonnet")
	t.Setenv("AGENT_MAX_TOOL_CALLS", "2")
	t.Setenv("AGENT_CALL_TIMEOUT", "5s")
	t.Setenv("CALENDAR_TIME_ZONE", "Europe/Warsaw")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REFRESH_TOKEN", "refresh")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	b := cfg.Budget()
	if b.MaxToolCalls != 2 || b.CallTimeout != 5*time.Second {
		t.Errorf("unexpected budget: %+v", b)
	}
	if !cfg.GoogleConfigured() {
		t.Errorf("Google should be configured")
	}
	if cfg.Location().String() != "Europe/Warsaw" {
		t.Errorf("unexpected location %s", cfg.Location())
	}
	if s := cfg.Sampling(); s.Temperature == nil || *s.Temperature != 0.2 {
		t.Errorf("unexpected sampling: %+v", s)
	}
}

func TestLoadRejectsPartialGoogleCredentials(t *testing.T) {
	t.Setenv("GOOGLE_REFRESH_TOKEN", "refresh")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when only the refresh token is set")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CALENDAR_TIME_ZONE", "Mars/Olympus")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown time zone")
	}
}

func TestLoadRejectsNegativeBudget(t *testing.T) {
	t.Setenv("AGENT_MAX_STEPS", "-1")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for negative budget")
	}
}
