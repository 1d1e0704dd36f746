package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// Config holds all configuration for the calendar agent.
type Config struct {
	// Model selection; "provider/model" or a bare model name.
	Model        string  `envconfig:"AGENT_MODEL" default:"gpt-4o-mini"`
	SystemPrompt string  `envconfig:"AGENT_SYSTEM_PROMPT" default:""`
	Temperature  float32 `envconfig:"AGENT_TEMPERATURE" default:"0.2"`
	TopP         float32 `envconfig:"AGENT_TOP_P" default:"1"`

	// Run budget
	MaxSteps           int           `envconfig:"AGENT_MAX_STEPS" default:"10"`
	MaxToolCalls       int           `envconfig:"AGENT_MAX_TOOL_CALLS" default:"5"`
	CallTimeout        time.Duration `envconfig:"AGENT_CALL_TIMEOUT" default:"30s"`
	MaxDecisionRetries int           `envconfig:"AGENT_MAX_DECISION_RETRIES" default:"2"`
	DevelopmentMode    bool          `envconfig:"AGENT_DEV_MODE" default:"false"`

	// Gateway resilience
	RetryMaxAttempts    int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"100ms"`
	RetryMaxBackoff     time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"2s"`
	RequestsPerSecond   float64       `envconfig:"MODEL_REQUESTS_PER_SECOND" default:"0"` // 0 disables rate limiting
	RequestBurst        int           `envconfig:"MODEL_REQUEST_BURST" default:"1"`
	CacheSize           int           `envconfig:"MODEL_CACHE_SIZE" default:"0"` // 0 disables the response cache
	CacheTTL            time.Duration `envconfig:"MODEL_CACHE_TTL" default:"10m"`

	// Google APIs
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	GoogleRefreshToken string `envconfig:"GOOGLE_REFRESH_TOKEN" default:""`
	CalendarID         string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
	TimeZone           string `envconfig:"CALENDAR_TIME_ZONE" default:"UTC"`
	EmailEnabled       bool   `envconfig:"EMAIL_TOOLS_ENABLED" default:"false"`

	// External tools
	UTCPProvidersFile string `envconfig:"UTCP_PROVIDERS_FILE" default:""`
	UTCPToolLimit     int    `envconfig:"UTCP_TOOL_LIMIT" default:"50"`

	// Run recording
	PostgresDSN     string `envconfig:"DATABASE_URL" default:""`
	MongoURI        string `envconfig:"MONGO_URI" default:""`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"calendar_agent"`
	MongoCollection string `envconfig:"MONGO_COLLECTION" default:"orchestration_runs"`
	MemoryRuns      int    `envconfig:"MEMORY_RUNS" default:"100"`

	// Observability
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty   bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("AGENT_MODEL is required")
	}
	if c.MaxSteps < 0 || c.MaxToolCalls < 0 || c.MaxDecisionRetries < 0 {
		return fmt.Errorf("budget values must not be negative")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("CALENDAR_TIME_ZONE: %w", err)
	}
	set := 0
	for _, v := range []string{c.GoogleClientID, c.GoogleClientSecret, c.GoogleRefreshToken} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN must be set together")
	}
	return nil
}

// GoogleConfigured reports whether Google API credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleRefreshToken != ""
}

// Location returns the calendar time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Budget returns the default run budget.
func (c *Config) Budget() orchestrator.Budget {
	return orchestrator.Budget{
		MaxSteps:     c.MaxSteps,
		MaxToolCalls: c.MaxToolCalls,
		CallTimeout:  c.CallTimeout,
	}
}

// RetryPolicy returns the gateway retry policy.
func (c *Config) RetryPolicy() orchestrator.RetryPolicy {
	p := orchestrator.DefaultRetryPolicy()
	if c.RetryMaxAttempts > 0 {
		p.MaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialBackoff > 0 {
		p.InitialBackoff = c.RetryInitialBackoff
	}
	if c.RetryMaxBackoff > 0 {
		p.MaxBackoff = c.RetryMaxBackoff
	}
	return p
}

// Sampling returns the sampling parameters requested for the model.
func (c *Config) Sampling() models.SamplingOptions {
	return models.SamplingOptions{
		Temperature: models.Float32(c.Temperature),
		TopP:        models.Float32(c.TopP),
	}
}
