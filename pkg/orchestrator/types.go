package orchestrator

import (
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

const (
	DefaultMaxSteps           = 10
	DefaultMaxToolCalls       = 5
	DefaultCallTimeout        = 30 * time.Second
	DefaultMaxDecisionRetries = 2
)

// Budget caps one run. Non-positive fields fall back to the defaults.
type Budget struct {
	MaxSteps     int           `json:"max_steps"`
	MaxToolCalls int           `json:"max_tool_calls"`
	CallTimeout  time.Duration `json:"call_timeout"`
}

func (b Budget) normalized() Budget {
	if b.MaxSteps <= 0 {
		b.MaxSteps = DefaultMaxSteps
	}
	if b.MaxToolCalls <= 0 {
		b.MaxToolCalls = DefaultMaxToolCalls
	}
	if b.CallTimeout <= 0 {
		b.CallTimeout = DefaultCallTimeout
	}
	return b
}

// Options are per-run switches.
type Options struct {
	// DisableTools skips straight to answering from the chat context.
	DisableTools bool
	// DevelopmentMode enables debug logging and attaches a transcript to the result.
	DevelopmentMode bool
}

// Turn is one prior message of the user-visible chat.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Registry is the read-only view of the tool catalog a run needs.
type Registry interface {
	Available() []tools.Spec
	Lookup(name string) (tools.Tool, tools.Spec, bool)
}

// Request is the input of one orchestration run.
type Request struct {
	Message  string
	History  []Turn
	Registry Registry
	Model    string
	Budget   Budget
	Options  Options
}

// StepKind tags an entry of the run log.
type StepKind string

const (
	StepDecision   StepKind = "decision"
	StepToolCall   StepKind = "tool_call"
	StepToolResult StepKind = "tool_result"
	StepEvaluation StepKind = "evaluation"
	StepSynthesis  StepKind = "synthesis"
)

// counted reports whether the kind consumes step budget.
func (k StepKind) counted() bool {
	return k == StepDecision || k == StepEvaluation || k == StepToolCall
}

// Step is one entry of the internal conversation log.
type Step struct {
	Position  int            `json:"position"`
	Kind      StepKind       `json:"kind"`
	At        time.Time      `json:"at"`
	Rationale string         `json:"rationale,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    *tools.Result  `json:"result,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ToolCallRecord describes one executed tool invocation.
type ToolCallRecord struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    tools.Result   `json:"result"`
	Duration  time.Duration  `json:"duration"`
}

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomePartial   Outcome = "partial"
	OutcomeAborted   Outcome = "aborted"
)

// Result is returned once per run and never mutated afterwards.
type Result struct {
	RunID      string           `json:"run_id"`
	Response   string           `json:"response"`
	Steps      []Step           `json:"steps"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Success    bool             `json:"success"`
	Outcome    Outcome          `json:"outcome"`
	Reason     ErrorKind        `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Model      string           `json:"model"`
	Started    time.Time        `json:"started"`
	Finished   time.Time        `json:"finished"`
	Transcript string           `json:"transcript,omitempty"`
}

// StepCount returns the number of budgeted steps in the result.
func (r Result) StepCount() int {
	n := 0
	for _, s := range r.Steps {
		if s.Kind.counted() {
			n++
		}
	}
	return n
}
