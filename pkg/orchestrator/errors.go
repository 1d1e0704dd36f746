package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is the only error Orchestrate returns directly.
	ErrInvalidRequest     = errors.New("invalid orchestration request")
	ErrToolInvocation     = errors.New("tool invocation failed")
	ErrMalformedDecision  = errors.New("malformed decision")
	ErrBudgetExceeded     = errors.New("budget exceeded")
	ErrGatewayUnavailable = errors.New("language model gateway unavailable")
)

// ErrorKind is the machine-readable reason stamped on a Result.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindToolInvocation     ErrorKind = "tool_invocation_failure"
	KindMalformedDecision  ErrorKind = "malformed_decision"
	KindBudgetExceeded     ErrorKind = "budget_exceeded"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindCanceled           ErrorKind = "canceled"
)

// KindOf maps an error onto its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBudgetExceeded):
		return KindBudgetExceeded
	case errors.Is(err, ErrMalformedDecision):
		return KindMalformedDecision
	case errors.Is(err, ErrToolInvocation):
		return KindToolInvocation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindGatewayUnavailable
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindToolInvocation:
		return ErrToolInvocation
	case KindMalformedDecision:
		return ErrMalformedDecision
	case KindBudgetExceeded:
		return ErrBudgetExceeded
	case KindGatewayUnavailable:
		return ErrGatewayUnavailable
	case KindCanceled:
		return context.Canceled
	}
	return nil
}

// Err returns the run failure as an error matching the package sentinels, or
// nil for successful runs.
func (r Result) Err() error {
	if r.Reason == KindNone {
		return nil
	}
	sentinel := r.Reason.sentinel()
	if r.Error == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, r.Error)
}
