// Package agent implements the control loop: render a prompt from the
// task, the workspace, and the previous round's tool outputs; invoke the
// reasoning model; parse its free-text response into structured actions;
// apply memory mutations; fan tool calls out concurrently; and decide
// whether to keep going. The loop is the sole recovery boundary: layers
// below it fail once and cleanly, and the loop retries whole rounds.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"text/template"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
	"github.com/xkilldash9x/deepsearch-cli/internal/config"
	"github.com/xkilldash9x/deepsearch-cli/internal/jsonextract"
	"github.com/xkilldash9x/deepsearch-cli/internal/workspace"
)

// ErrMissingToolCalls marks a model response whose JSON payload lacks the
// required tool_calls field. The round is retried.
var ErrMissingToolCalls = errors.New("model response is missing the tool_calls field")

// ErrRetriesExhausted is returned when a round fails more consecutive
// times than the configured bound allows.
var ErrRetriesExhausted = errors.New("consecutive round retries exhausted")

// thinkPattern matches a reasoning-trace wrapper, tolerating a missing
// opening tag since the trace may arrive already prefixed to the content.
var thinkPattern = regexp.MustCompile(`(?s)(?:<think>)?.*?</think>`)

// Agent runs the investigation loop for a single task. It is not safe
// for concurrent use; one Agent runs one loop.
type Agent struct {
	task        string
	currentDate string
	model       schemas.ReasoningClient
	tools       map[string]schemas.Tool
	ws          *workspace.Workspace
	observers   []schemas.RoundObserver
	tmpl        *template.Template
	cfg         config.AgentConfig
	limiter     *rate.Limiter
	records     []schemas.ToolRecord
	logger      *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithCurrentDate pins the date rendered into prompts, mainly for tests.
func WithCurrentDate(date string) Option {
	return func(a *Agent) { a.currentDate = date }
}

// WithObserver registers a collaborator that receives a snapshot after
// every successfully applied round. Observer errors are logged, never
// propagated; persistence trouble must not kill an investigation.
func WithObserver(observer schemas.RoundObserver) Option {
	return func(a *Agent) { a.observers = append(a.observers, observer) }
}

// WithInitialState seeds the workspace from a persisted snapshot so a new
// run can continue where a previous one left off.
func WithInitialState(state schemas.WorkspaceState) Option {
	return func(a *Agent) { a.ws = workspace.NewFromState(state) }
}

// New builds an Agent for task. The promptTemplate argument is a
// text/template body over the prompt's variables; pass an empty string
// for the default.
func New(task string, model schemas.ReasoningClient, tools map[string]schemas.Tool,
	promptTemplate string, cfg config.AgentConfig, logger *zap.Logger, opts ...Option) (*Agent, error) {

	if promptTemplate == "" {
		promptTemplate = DefaultPromptTemplate
	}
	tmpl, err := template.New("round").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}

	limit := rate.Inf
	if cfg.RoundDelay > 0 {
		limit = rate.Every(cfg.RoundDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	// Drain the initial token so the very first round also waits; the
	// pacing protects provider rate limits from the first call on.
	limiter.Allow()

	a := &Agent{
		task:        task,
		currentDate: time.Now().Format("2006-01-02"),
		model:       model,
		tools:       tools,
		ws:          workspace.New(),
		tmpl:        tmpl,
		cfg:         cfg,
		limiter:     limiter,
		logger:      logger.Named("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run drives the loop until a stop condition fires. When loop is false
// the agent performs exactly one successful round. An error is returned
// only for context cancellation or exhausted round retries; tool and
// parse failures are absorbed and the round is retried.
func (a *Agent) Run(ctx context.Context, loop bool) (schemas.RunResult, error) {
	rounds := 0
	failures := 0

	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return a.result(schemas.StopNonLooping, rounds), err
		}

		records, err := a.runRound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return a.result(schemas.StopNonLooping, rounds), ctx.Err()
			}
			failures++
			a.logger.Warn("Round failed, backing off before retry",
				zap.Int("round", rounds+1),
				zap.Int("consecutive_failures", failures),
				zap.Error(err))
			if a.cfg.MaxRoundRetries > 0 && failures >= a.cfg.MaxRoundRetries {
				return a.result(schemas.StopNonLooping, rounds),
					fmt.Errorf("%w: round %d failed %d times: %v", ErrRetriesExhausted, rounds+1, failures, err)
			}
			if err := sleepContext(ctx, a.cfg.RetryDelay); err != nil {
				return a.result(schemas.StopNonLooping, rounds), err
			}
			continue
		}

		failures = 0
		a.records = records
		rounds++
		a.emitSnapshot(ctx, rounds)

		if a.cfg.MaxRounds > 0 && rounds >= a.cfg.MaxRounds {
			return a.result(schemas.StopRoundLimitReached, rounds), nil
		}
		if !loop {
			return a.result(schemas.StopNonLooping, rounds), nil
		}
		if a.ws.IsDone() {
			if status := a.ws.Status(); status != schemas.StatusDone {
				a.logger.Warn("Terminating on non-standard status", zap.String("status", status))
			}
			return a.result(schemas.StopDone, rounds), nil
		}
	}
}

// runRound executes one round: render, invoke, parse, apply memory,
// dispatch tools. Any error before memory application leaves the
// workspace and the prior records untouched, so the caller re-attempts
// the identical round.
func (a *Agent) runRound(ctx context.Context) ([]schemas.ToolRecord, error) {
	prompt, err := renderPrompt(a.tmpl, a.currentDate, a.task, a.ws.ToText(), a.records)
	if err != nil {
		return nil, err
	}

	response, err := a.model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}

	parsed, err := parseResponse(response)
	if err != nil {
		return nil, err
	}

	// Memory commits before tool dispatch. A round that fails during tool
	// execution keeps its memory updates; only the tool outputs are lost.
	a.ws.Update(parsed.StatusUpdate, parsed.MemoryUpdates, parsed.Answer)

	return a.dispatchTools(ctx, parsed.ToolCalls), nil
}

// parseResponse strips the reasoning trace, extracts the structured
// payload, and validates the required shape.
func parseResponse(response string) (schemas.RoundResponse, error) {
	var parsed schemas.RoundResponse

	clean := thinkPattern.ReplaceAllString(response, "")
	raw, err := jsonextract.Largest(clean)
	if err != nil {
		return parsed, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return parsed, fmt.Errorf("model payload is not a JSON object: %w", err)
	}
	if _, ok := fields["tool_calls"]; !ok {
		return parsed, ErrMissingToolCalls
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, fmt.Errorf("decoding model payload: %w", err)
	}
	return parsed, nil
}

// dispatchTools fans the round's calls out concurrently and waits for all
// of them. Failures never abort the round: each failing call's output
// becomes failure text the model can read and react to next round.
func (a *Agent) dispatchTools(ctx context.Context, calls []schemas.ToolCall) []schemas.ToolRecord {
	records := make([]schemas.ToolRecord, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		records[i].ToolCall = call
		g.Go(func() error {
			records[i].Output = a.runTool(gctx, call)
			return nil
		})
	}
	// The closures always return nil; Wait is pure fan-in here.
	_ = g.Wait()
	return records
}

func (a *Agent) runTool(ctx context.Context, call schemas.ToolCall) string {
	tool, ok := a.tools[call.Tool]
	if !ok {
		a.logger.Warn("Model requested an unknown tool", zap.String("tool", call.Tool))
		return fmt.Sprintf("Tool execution failed: illegal tool: %s", call.Tool)
	}

	output, err := tool.Call(ctx, call.Input, a.task)
	if err != nil {
		a.logger.Warn("Tool call failed",
			zap.String("tool", call.Tool),
			zap.String("input", call.Input),
			zap.Error(err))
		return fmt.Sprintf("Tool execution failed: %v", err)
	}
	return output
}

func (a *Agent) emitSnapshot(ctx context.Context, round int) {
	if len(a.observers) == 0 {
		return
	}
	snapshot := schemas.RoundSnapshot{
		Round:         round,
		Timestamp:     time.Now().UTC(),
		Status:        a.ws.Status(),
		WorkspaceText: a.ws.ToText(),
		Answer:        a.ws.Answer(),
		ToolRecords:   a.records,
	}
	for _, observer := range a.observers {
		if err := observer.ObserveRound(ctx, snapshot); err != nil {
			a.logger.Warn("Round observer failed", zap.Int("round", round), zap.Error(err))
		}
	}
}

func (a *Agent) result(reason schemas.StopReason, rounds int) schemas.RunResult {
	result := schemas.RunResult{
		Reason:    reason,
		Rounds:    rounds,
		Workspace: a.ws.State(),
	}
	if a.ws.IsDone() {
		result.Answer = a.ws.Answer()
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
