package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
)

// RetryPolicy controls how gateway calls are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy retries three times starting at 100ms, capped at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// transientStatus matches HTTP status codes quoted in untyped error text,
// e.g. "status code: 503" or "HTTP 429".
var transientStatus = regexp.MustCompile(`(?i)\b(?:status(?: code)?|http|code)[:=\s]+(?:408|429|5\d\d)\b`)

var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"overloaded",
	"service unavailable",
	"temporarily unavailable",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"unexpected eof",
}

// IsTransient reports whether a gateway error is worth retrying. Typed
// provider status codes decide first; message text is a fallback for
// errors that carry none.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if code, ok := models.StatusCode(err); ok {
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	if transientStatus.MatchString(msg) {
		return true
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// gateway wraps a resolved model with the per-call timeout and retry policy.
type gateway struct {
	agent   models.Agent
	timeout time.Duration
	policy  RetryPolicy
	metrics Metrics
}

func (g *gateway) do(ctx context.Context, phase string, fn func(context.Context) error) error {
	attempts := g.policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		start := time.Now()
		err := fn(callCtx)
		cancel()
		g.metrics.GatewayCall(phase, err, time.Since(start))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if !IsTransient(err) || attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(g.policy.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, phase, lastErr)
}

// generate returns the model's text for prompt.
func (g *gateway) generate(ctx context.Context, phase, prompt string) (string, error) {
	var text string
	err := g.do(ctx, phase, func(ctx context.Context) error {
		out, err := g.agent.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = models.Text(out)
		return nil
	})
	return text, err
}

// complete uses native tool calling when the model supports it and falls back
// to plain generation otherwise.
func (g *gateway) complete(ctx context.Context, phase, prompt string, defs []models.ToolDefinition) (models.Completion, error) {
	caller, ok := g.agent.(models.ToolCaller)
	if !ok || len(defs) == 0 {
		text, err := g.generate(ctx, phase, prompt)
		return models.Completion{Text: text}, err
	}
	var completion models.Completion
	err := g.do(ctx, phase, func(ctx context.Context) error {
		c, err := caller.GenerateWithTools(ctx, prompt, defs)
		if err != nil {
			return err
		}
		completion = c
		return nil
	})
	return completion, err
}

// native reports whether decisions go through native tool calling.
func (g *gateway) native() bool {
	_, ok := g.agent.(models.ToolCaller)
	return ok
}
