package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/prompt"
)

// Options holds dependency and configuration overrides passed to NewRunner.
type Options struct {
	// Logger receives structured run events.
	Logger logging.Logger
	// GenerateTimeout bounds each model call. Zero means no per-call timeout.
	GenerateTimeout time.Duration
}

// Runner drives the tool-call loop for one agent configuration: it repeatedly
// calls the model, dispatches any requested tool call through the registry,
// feeds the result back, until a terminal answer is produced or the round
// budget is exhausted. A Runner is read-only after construction and safe for
// concurrent use; every Run owns its own conversation state.
type Runner struct {
	cfg         Config
	model       model.Model
	logger      logging.Logger
	genTimeout  time.Duration
	toolCatalog []model.ToolDefinition
}

// NewRunner constructs a Runner for one (Config, Model) pair.
func NewRunner(cfg Config, m model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg = cfg.withDefaults()

	r := &Runner{
		cfg:        cfg,
		model:      m,
		logger:     opts.Logger,
		genTimeout: opts.GenerateTimeout,
	}

	if cfg.HasTools() {
		for _, t := range cfg.Tools.Tools() {
			r.toolCatalog = append(r.toolCatalog, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
	}

	return r
}

// Config returns the configuration driving this runner.
func (r *Runner) Config() Config { return r.cfg }

// RunOptions customize a single run.
type RunOptions struct {
	// SideContext values are interpolated by name into the composed prompt.
	SideContext map[string]string
	// Stream receives incremental text chunks before the terminal result.
	Stream core.StreamHandler
}

// RunOption customizes a single run.
type RunOption func(o *RunOptions)

// WithSideContext attaches named side-context values to the run.
func WithSideContext(sc map[string]string) RunOption {
	return func(o *RunOptions) { o.SideContext = sc }
}

// WithStream attaches a streaming handler to the run.
func WithStream(h core.StreamHandler) RunOption {
	return func(o *RunOptions) { o.Stream = h }
}

// Run executes one attempt of the agent configuration against the task input.
//
// The loop advances through composing the prompt, awaiting the model,
// executing requested tools and validating the final answer. It progresses
// strictly turn by turn; model and tool calls are the only suspension points
// and the loop waits for completion before advancing. Cancellation is checked
// at loop boundaries, never by interrupting an in-flight tool call.
func (r *Runner) Run(ctx context.Context, taskInput string, opts ...RunOption) core.RunResult {
	var runOpts RunOptions
	for _, fn := range opts {
		fn(&runOpts)
	}

	runCtx := core.NewRunContext(ctx, r.cfg.Name, r.cfg.MaxToolRounds, runOpts.Stream, r.logger)

	composed := prompt.Compose(r.cfg.Persona, r.cfg.Instructions, taskInput, runOpts.SideContext)
	instructions := composed.Instructions
	if r.cfg.Schema != nil {
		instructions = instructions + "\n\n" + r.cfg.Schema.Instructions()
	}
	runCtx.Conversation.Append(composed.User)

	runCtx.LogDebug("runner.run.start", "agent", r.cfg.Name, "run", runCtx.RunID, "tools", len(r.toolCatalog))

	for {
		select {
		case <-runCtx.Done():
			return r.failure(runCtx, r.classify(runCtx.Err()))
		default:
		}

		resp, err := r.generate(runCtx, instructions)
		if err != nil {
			return r.failure(runCtx, r.classify(err))
		}

		runCtx.Conversation.Append(resp.Content)

		// Re-read from the conversation: appending mints IDs for calls the
		// provider left blank.
		calls := runCtx.Conversation.Last().FunctionCalls()
		if len(calls) == 0 {
			return r.finalize(runCtx, resp.Content.Text())
		}

		if !runCtx.Rounds.Increment() {
			return r.failure(runCtx, core.NewError(
				core.KindIterationLimit,
				"exceeded max tool-call round-trips",
			))
		}

		for _, call := range calls {
			if err := r.executeTool(runCtx, call); err != nil {
				return r.failure(runCtx, err)
			}
		}
	}
}

// generate performs one model call, relaying partial chunks to the stream
// handler and returning the final response.
func (r *Runner) generate(runCtx *core.RunContext, instructions string) (model.Response, error) {
	req := model.Request{
		Instructions: instructions,
		Contents:     runCtx.Conversation.Contents(),
		Tools:        r.toolCatalog,
		Stream:       r.cfg.Streaming && runCtx.Stream != nil,
	}
	if r.cfg.Schema != nil {
		req.Schema = r.cfg.Schema.JSONSchema()
		req.SchemaName = r.cfg.Schema.Name
	}

	ctx := runCtx.Context
	if r.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.genTimeout)
		defer cancel()
	}

	start := time.Now()
	respCh, errCh := r.model.Generate(ctx, req)

	var (
		final   model.Response
		gotResp bool
		genErr  error
	)
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				runCtx.EmitChunk(resp.Content.Text())
				continue
			}
			final = resp
			gotResp = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if genErr == nil {
				genErr = err
			}
		}
	}

	runCtx.LogDebug(
		"runner.model.call",
		"agent", r.cfg.Name,
		"model", r.model.Info().Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", genErr != nil,
	)

	if genErr != nil {
		return model.Response{}, genErr
	}
	if !gotResp {
		return model.Response{}, core.NewError(core.KindUnavailable, "model returned no response")
	}

	return final, nil
}

// executeTool dispatches one function call and records its result in the
// conversation. A tool execution failure is not an attempt failure: the error
// becomes a tool result the model can react to. Only an unknown tool name
// ends the attempt.
func (r *Runner) executeTool(runCtx *core.RunContext, call core.FunctionCall) *core.Error {
	if !r.cfg.HasTools() {
		return core.NewError(core.KindUnknownTool, "agent has no tools but model requested "+call.Name)
	}

	start := time.Now()
	resp, err := r.cfg.Tools.Dispatch(runCtx.Context, call)
	if err != nil {
		return r.classify(err)
	}

	runCtx.LogInfo(
		"runner.tool.executed",
		"agent", r.cfg.Name,
		"tool", call.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", resp.Error != "",
	)

	if resp.Error == "" {
		runCtx.MarkToolUse()
	}

	if err := runCtx.Conversation.AppendToolResult(resp); err != nil {
		return core.WrapError(core.KindMalformed, err, "tool result attribution failed")
	}

	return nil
}

// finalize validates the terminal answer and assembles the RunResult.
func (r *Runner) finalize(runCtx *core.RunContext, text string) core.RunResult {
	if r.cfg.Schema == nil {
		if strings.TrimSpace(text) == "" {
			return r.failure(runCtx, core.NewError(core.KindMalformed, "model produced an empty final answer"))
		}
		runCtx.LogInfo("runner.run.complete", "agent", r.cfg.Name, "run", runCtx.RunID, "rounds", runCtx.Rounds.Count())
		res := core.TextResult(text, runCtx.Provenance())
		res.Strategy = r.cfg.Name
		return res
	}

	obj, err := r.cfg.Schema.Validate(text)
	if err != nil {
		return r.failure(runCtx, r.classify(err))
	}

	runCtx.LogInfo("runner.run.complete", "agent", r.cfg.Name, "run", runCtx.RunID, "rounds", runCtx.Rounds.Count(), "structured", true)
	res := core.StructuredResult(obj, runCtx.Provenance())
	res.Strategy = r.cfg.Name
	return res
}

// classify maps an arbitrary error into the core taxonomy. Timeouts are
// Unavailable (retryable); already-typed errors pass through.
func (r *Runner) classify(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.WrapError(core.KindUnavailable, err, "call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return core.WrapError(core.KindUnavailable, err, "run cancelled")
	}
	return core.WrapError(core.KindUnavailable, err, "model call failed")
}

// failure logs and wraps a typed error as this runner's attempt result.
func (r *Runner) failure(runCtx *core.RunContext, err *core.Error) core.RunResult {
	if err.Strategy == "" {
		err.Strategy = r.cfg.Name
	}
	runCtx.LogWarn("runner.run.failed", "agent", r.cfg.Name, "run", runCtx.RunID, "kind", string(err.Kind), "error", err.Message)
	return core.FailureResult(err)
}
