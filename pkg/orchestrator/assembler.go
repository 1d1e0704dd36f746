package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// finish assembles the Result, reports telemetry and hands the result to the
// recorder.
func (o *Orchestrator) finish(ctx context.Context, r *run, runID string, started time.Time, response string) Result {
	res := assemble(r, response)
	res.RunID = runID
	res.Model = r.req.Model
	res.Started = started
	res.Finished = o.now()
	if r.req.Options.DevelopmentMode {
		res.Transcript = Transcript(res.Steps)
	}

	elapsed := res.Finished.Sub(res.Started)
	o.metrics.RunFinished(res.Outcome, res.Reason, elapsed)
	event := r.logger.Info()
	if !res.Success {
		event = r.logger.Warn().Str("reason", string(res.Reason))
	}
	event.
		Str("outcome", string(res.Outcome)).
		Int("steps", res.StepCount()).
		Int("tool_calls", len(res.ToolCalls)).
		Dur("elapsed", elapsed).
		Msg("orchestration finished")

	if o.recorder != nil {
		if err := o.recorder.Record(context.WithoutCancel(ctx), res); err != nil {
			r.logger.Error().Err(err).Msg("record run")
		}
	}
	return res
}

// assemble copies the run state into a Result.
func assemble(r *run, response string) Result {
	res := Result{
		Response:  response,
		Steps:     r.log.Steps(),
		ToolCalls: append([]ToolCallRecord(nil), r.records...),
		Reason:    r.reason,
		Error:     r.errDetail,
	}
	switch {
	case r.reason != KindNone:
		res.Outcome = OutcomeAborted
	case r.framing == framingPartial:
		res.Outcome = OutcomePartial
	default:
		res.Outcome = OutcomeCompleted
	}
	res.Success = res.Outcome != OutcomeAborted
	return res
}

// fallback builds a deterministic answer from the tool results when the model
// cannot produce one.
func (r *run) fallback() string {
	var ok, failed []string
	for _, rec := range r.records {
		if rec.Result.Success {
			msg := strings.TrimSpace(rec.Result.Message)
			if msg == "" {
				msg = "completed"
			}
			ok = append(ok, msg)
			continue
		}
		reason := rec.Result.Error
		if reason == "" {
			reason = "unknown error"
		}
		failed = append(failed, fmt.Sprintf("%s failed: %s", rec.Tool, reason))
	}

	var b strings.Builder
	b.WriteString(fallbackHeadline(r.reason))
	if len(ok) > 0 {
		b.WriteString("\n\nHere is what I found so far:")
		for _, m := range ok {
			b.WriteString("\n" + m)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n\nSome steps failed:")
		for _, m := range failed {
			b.WriteString("\n- " + m)
		}
	}
	return b.String()
}

func fallbackHeadline(reason ErrorKind) string {
	switch reason {
	case KindBudgetExceeded:
		return "I couldn't finish your request within the allowed number of steps."
	case KindMalformedDecision:
		return "I couldn't work out which action to take for your request."
	case KindCanceled:
		return "Your request was cancelled before I could finish."
	case KindGatewayUnavailable:
		return "I couldn't reach the language model to complete your request. Please try again in a moment."
	default:
		return "I couldn't complete your request."
	}
}
