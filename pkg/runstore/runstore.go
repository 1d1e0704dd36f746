// Package runstore persists finished orchestration runs for auditing.
package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// Summary is the queryable view of a stored run.
type Summary struct {
	RunID     string                 `json:"run_id" bson:"_id"`
	Model     string                 `json:"model" bson:"model"`
	Outcome   orchestrator.Outcome   `json:"outcome" bson:"outcome"`
	Reason    orchestrator.ErrorKind `json:"reason,omitempty" bson:"reason,omitempty"`
	Success   bool                   `json:"success" bson:"success"`
	Response  string                 `json:"response" bson:"response"`
	Error     string                 `json:"error,omitempty" bson:"error,omitempty"`
	Steps     int                    `json:"steps" bson:"step_count"`
	ToolCalls int                    `json:"tool_calls" bson:"tool_call_count"`
	Tools     []string               `json:"tools,omitempty" bson:"tools,omitempty"`
	Started   time.Time              `json:"started" bson:"started_at"`
	Finished  time.Time              `json:"finished" bson:"finished_at"`
}

// Summarize flattens a result.
func Summarize(r orchestrator.Result) Summary {
	s := Summary{
		RunID:     r.RunID,
		Model:     r.Model,
		Outcome:   r.Outcome,
		Reason:    r.Reason,
		Success:   r.Success,
		Response:  r.Response,
		Error:     r.Error,
		Steps:     r.StepCount(),
		ToolCalls: len(r.ToolCalls),
		Started:   r.Started,
		Finished:  r.Finished,
	}
	for _, call := range r.ToolCalls {
		s.Tools = append(s.Tools, call.Tool)
	}
	return s
}

// Multi fans a result out to several recorders and joins their errors.
func Multi(recorders ...orchestrator.Recorder) orchestrator.Recorder {
	return orchestrator.RecorderFunc(func(ctx context.Context, r orchestrator.Result) error {
		var errs []error
		for _, rec := range recorders {
			if rec == nil {
				continue
			}
			if err := rec.Record(ctx, r); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
