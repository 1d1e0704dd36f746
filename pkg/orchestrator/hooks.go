package orchestrator

import (
	"context"
	"time"
)

// Metrics receives run telemetry. internal/observability provides the
// Prometheus implementation.
type Metrics interface {
	RunFinished(outcome Outcome, reason ErrorKind, elapsed time.Duration)
	ToolCall(tool string, success bool, elapsed time.Duration)
	GatewayCall(phase string, err error, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RunFinished(Outcome, ErrorKind, time.Duration) {}
func (noopMetrics) ToolCall(string, bool, time.Duration)          {}
func (noopMetrics) GatewayCall(string, error, time.Duration)      {}

// Recorder persists finished runs. Failures are logged and never change the
// result handed back to the caller.
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, result Result) error

func (f RecorderFunc) Record(ctx context.Context, result Result) error { return f(ctx, result) }
