// Package orchestrator runs the agentic tool loop: decide whether a tool is
// needed, execute it, evaluate the evidence and synthesize the final answer,
// all within a per-run budget.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

// Orchestrator is safe for concurrent runs; each run owns its own log.
type Orchestrator struct {
	resolver           models.Resolver
	systemPrompt       string
	maxDecisionRetries int
	retry              RetryPolicy
	logger             zerolog.Logger
	metrics            Metrics
	recorder           Recorder
	now                func() time.Time
	newID              func() string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(prompt) != "" {
			o.systemPrompt = prompt
		}
	}
}

// WithMaxDecisionRetries bounds retries of malformed decisions and evaluations.
// Negative values are ignored.
func WithMaxDecisionRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxDecisionRetries = n
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock overrides time.Now for step timestamps and the decision prompt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New builds an orchestrator resolving model identifiers through resolver.
func New(resolver models.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:           resolver,
		systemPrompt:       DefaultSystemPrompt,
		maxDecisionRetries: DefaultMaxDecisionRetries,
		retry:              DefaultRetryPolicy(),
		logger:             zerolog.Nop(),
		metrics:            noopMetrics{},
		now:                time.Now,
		newID:              func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type state int

const (
	stateDeciding state = iota
	stateExecuting
	stateEvaluating
	stateSynthesizing
	stateAborted
)

// run holds the mutable state of one orchestration.
type run struct {
	o        *Orchestrator
	req      Request
	budget   Budget
	gw       *gateway
	log      *Log
	logger   zerolog.Logger
	manifest []tools.Spec
	allowed  map[string]tools.Spec
	rendered string

	steps     int
	toolCalls int
	records   []ToolCallRecord

	pending   decision
	framing   framing
	reason    ErrorKind
	errDetail string
}

// Orchestrate runs one request to completion. The error return is reserved
// for invalid requests; every orchestration failure is reported in the Result.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Result{}, fmt.Errorf("%w: message is empty", ErrInvalidRequest)
	}
	if req.Registry == nil {
		return Result{}, fmt.Errorf("%w: registry is nil", ErrInvalidRequest)
	}
	if o.resolver == nil {
		return Result{}, fmt.Errorf("%w: no model resolver configured", ErrInvalidRequest)
	}

	started := o.now()
	runID := o.newID()
	r := &run{
		o:       o,
		req:     req,
		budget:  req.Budget.normalized(),
		log:     NewLog(o.now),
		framing: framingComplete,
	}
	r.logger = o.logger.With().Str("run_id", runID).Str("model", req.Model).Logger()
	if req.Options.DevelopmentMode {
		r.logger = r.logger.Level(zerolog.DebugLevel)
	}

	if !req.Options.DisableTools {
		r.manifest = req.Registry.Available()
	}
	r.allowed = make(map[string]tools.Spec, len(r.manifest))
	for _, s := range r.manifest {
		r.allowed[strings.ToLower(s.Name)] = s
	}
	r.rendered = renderManifest(r.manifest)

	r.logger.Info().
		Int("tools", len(r.manifest)).
		Int("max_steps", r.budget.MaxSteps).
		Int("max_tool_calls", r.budget.MaxToolCalls).
		Msg("orchestration started")

	agent, err := o.resolver.Resolve(ctx, req.Model)
	if err != nil {
		r.abort(fmt.Errorf("%w: resolve model %q: %v", ErrGatewayUnavailable, req.Model, err))
		return o.finish(ctx, r, runID, started, r.fallback()), nil
	}
	r.gw = &gateway{agent: agent, timeout: r.budget.CallTimeout, policy: o.retry, metrics: o.metrics}

	response := r.loop(ctx)
	return o.finish(ctx, r, runID, started, response), nil
}

func (r *run) loop(ctx context.Context) string {
	st := stateDeciding
	if len(r.manifest) == 0 {
		st = stateSynthesizing
	}
	malformedDecisions, malformedEvaluations := 0, 0

	for {
		if err := ctx.Err(); err != nil && st != stateAborted {
			r.abort(err)
			st = stateAborted
		}

		switch st {
		case stateDeciding:
			if r.steps >= r.budget.MaxSteps {
				r.abort(fmt.Errorf("%w: %d steps used", ErrBudgetExceeded, r.steps))
				st = stateAborted
				continue
			}
			d, err := r.decide(ctx)
			switch {
			case err == nil && d.UseTool:
				malformedDecisions = 0
				r.pending = d
				st = stateExecuting
			case err == nil:
				st = stateSynthesizing
			case isMalformed(err):
				malformedDecisions++
				if malformedDecisions > r.o.maxDecisionRetries {
					r.abort(err)
					st = stateAborted
				}
			default:
				r.abort(err)
				st = stateAborted
			}

		case stateExecuting:
			if r.toolCalls >= r.budget.MaxToolCalls {
				r.rejectCall(fmt.Errorf("%w: tool call limit of %d reached", ErrBudgetExceeded, r.budget.MaxToolCalls))
				st = stateAborted
				continue
			}
			if r.steps >= r.budget.MaxSteps {
				r.rejectCall(fmt.Errorf("%w: step limit of %d reached", ErrBudgetExceeded, r.budget.MaxSteps))
				st = stateAborted
				continue
			}
			r.execute(ctx, r.pending)
			r.pending = decision{}
			st = stateEvaluating

		case stateEvaluating:
			if r.steps >= r.budget.MaxSteps {
				r.abort(fmt.Errorf("%w: %d steps used", ErrBudgetExceeded, r.steps))
				st = stateAborted
				continue
			}
			ev, err := r.evaluate(ctx)
			switch {
			case err == nil:
				malformedEvaluations = 0
				switch ev.Status {
				case statusSufficient:
					st = stateSynthesizing
				case statusContinue:
					st = stateDeciding
				case statusStuck:
					r.framing = framingPartial
					st = stateSynthesizing
				}
			case isMalformed(err):
				malformedEvaluations++
				if malformedEvaluations > r.o.maxDecisionRetries {
					r.framing = framingPartial
					st = stateSynthesizing
				}
			default:
				r.abort(err)
				st = stateAborted
			}

		case stateSynthesizing, stateAborted:
			return r.synthesize(ctx)
		}
	}
}

func isMalformed(err error) bool {
	return KindOf(err) == KindMalformedDecision
}

// abort records the terminal failure. The first failure wins.
func (r *run) abort(err error) {
	if r.reason != KindNone {
		return
	}
	r.framing = framingAborted
	r.reason = KindOf(err)
	r.errDetail = err.Error()
	r.logger.Warn().Err(err).Str("reason", string(r.reason)).Msg("orchestration aborted")
}

// rejectCall aborts the run instead of executing the pending call. The refused
// call is not logged as a tool_call step since it never ran.
func (r *run) rejectCall(err error) {
	r.abort(fmt.Errorf("%w; refused call to %s", err, r.pending.Tool))
}

func (r *run) decide(ctx context.Context) (decision, error) {
	r.steps++
	native := r.gw.native()
	prompt := decisionPrompt(r.o.systemPrompt, r.req, r.rendered, r.log.Steps(), r.o.now(), r.budget.MaxToolCalls-r.toolCalls, native)

	var defs []models.ToolDefinition
	if native {
		defs = toolDefinitions(r.manifest)
	}
	completion, err := r.gw.complete(ctx, "decide", prompt, defs)
	if err != nil {
		r.log.Append(Step{Kind: StepDecision, Outcome: "gateway_error", Error: err.Error()})
		return decision{}, err
	}

	d, err := parseDecision(completion, r.allowed, native)
	if err != nil {
		step := r.log.Append(Step{
			Kind:      StepDecision,
			Outcome:   "malformed",
			Tool:      d.Tool,
			Arguments: d.Arguments,
			Rationale: d.Reasoning,
			Error:     err.Error(),
		})
		r.logger.Debug().Int("position", step.Position).Err(err).Msg("malformed decision")
		return decision{}, err
	}

	step := Step{Kind: StepDecision, Rationale: d.Reasoning}
	if d.UseTool {
		step.Outcome = "use_tool"
		step.Tool = d.Tool
		step.Arguments = d.Arguments
	} else {
		step.Outcome = "no_tool_needed"
	}
	step = r.log.Append(step)
	r.logger.Debug().Int("position", step.Position).Str("outcome", step.Outcome).Str("tool", d.Tool).Msg("decision")
	return d, nil
}

type invocation struct {
	result tools.Result
	err    error
}

func (r *run) execute(ctx context.Context, d decision) {
	r.steps++
	r.toolCalls++
	r.log.Append(Step{Kind: StepToolCall, Tool: d.Tool, Arguments: d.Arguments, Rationale: d.Reasoning})

	start := time.Now()
	res := r.invoke(ctx, d)
	elapsed := time.Since(start)

	r.log.Append(Step{Kind: StepToolResult, Tool: d.Tool, Result: &res, Duration: elapsed, Error: res.Error})
	r.records = append(r.records, ToolCallRecord{
		Tool:      d.Tool,
		Arguments: maps.Clone(d.Arguments),
		Result:    res,
		Duration:  elapsed,
	})
	r.o.metrics.ToolCall(d.Tool, res.Success, elapsed)
	r.logger.Debug().Str("tool", d.Tool).Bool("success", res.Success).Dur("elapsed", elapsed).Msg("tool executed")
}

// invoke runs the tool under the per-call timeout. Errors, panics and
// timeouts become unsuccessful results.
func (r *run) invoke(ctx context.Context, d decision) tools.Result {
	tool, _, ok := r.req.Registry.Lookup(d.Tool)
	if !ok {
		return tools.Failure(fmt.Errorf("%w: %w: %s", ErrToolInvocation, tools.ErrToolNotFound, d.Tool).Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, r.budget.CallTimeout)
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invocation{err: fmt.Errorf("%w: %s panicked: %v", ErrToolInvocation, d.Tool, p)}
			}
		}()
		res, err := tool.Invoke(callCtx, maps.Clone(d.Arguments))
		done <- invocation{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			err := out.err
			if !errors.Is(err, ErrToolInvocation) {
				err = fmt.Errorf("%w: %s: %v", ErrToolInvocation, d.Tool, err)
			}
			r.logger.Warn().Err(err).Msg("tool failed")
			res := out.result
			res.Success = false
			res.Error = err.Error()
			return res
		}
		return out.result
	case <-callCtx.Done():
		err := fmt.Errorf("%w: %s: %v", ErrToolInvocation, d.Tool, callCtx.Err())
		r.logger.Warn().Err(err).Msg("tool timed out")
		return tools.Failure(err.Error())
	}
}

func (r *run) evaluate(ctx context.Context) (evaluation, error) {
	r.steps++
	prompt := evaluationPrompt(r.o.systemPrompt, r.req, r.rendered, r.log.Steps())
	text, err := r.gw.generate(ctx, "evaluate", prompt)
	if err != nil {
		r.log.Append(Step{Kind: StepEvaluation, Outcome: "gateway_error", Error: err.Error()})
		return evaluation{}, err
	}
	ev, err := parseEvaluation(text)
	if err != nil {
		r.log.Append(Step{Kind: StepEvaluation, Outcome: "malformed", Error: err.Error()})
		return evaluation{}, err
	}
	step := r.log.Append(Step{Kind: StepEvaluation, Outcome: ev.Status, Rationale: ev.Reasoning})
	r.logger.Debug().Int("position", step.Position).Str("status", ev.Status).Msg("evaluation")
	return ev, nil
}

// synthesize asks the model for the final answer and falls back to the
// deterministic summary when it cannot.
func (r *run) synthesize(ctx context.Context) string {
	if r.gw == nil || ctx.Err() != nil || r.reason == KindGatewayUnavailable {
		return r.fallback()
	}
	prompt := synthesisPrompt(r.o.systemPrompt, r.req, r.rendered, r.log.Steps(), r.framing, r.reason)
	text, err := r.gw.generate(ctx, "synthesize", prompt)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("%w: empty synthesis", ErrGatewayUnavailable)
	}
	if err != nil {
		r.log.Append(Step{Kind: StepSynthesis, Outcome: "fallback", Error: err.Error()})
		if r.reason == KindNone {
			r.framing = framingAborted
			r.reason = KindGatewayUnavailable
			r.errDetail = err.Error()
		}
		return r.fallback()
	}
	r.log.Append(Step{Kind: StepSynthesis, Outcome: string(r.framing)})
	return text
}
