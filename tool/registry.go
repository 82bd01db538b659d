package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Timeout bounds each dispatched tool call. Zero means no per-call timeout.
	Timeout time.Duration
	// Logger receives structured dispatch events.
	Logger logging.Logger
}

// Registry holds the set of callable tools available to an agent instance.
// Registration order is preserved because the tool catalogue sent to the
// model is an ordered sequence. After construction a Registry is read-only
// configuration, safe for concurrent use by multiple independent runs.
type Registry struct {
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	logger  logging.Logger
}

// NewRegistry constructs a Registry from the given tools. Duplicate names are
// rejected: names must be unique within a registry.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}

	return r, nil
}

// MustRegistry is a NewRegistry variant that panics on duplicate names.
// Intended for static tool sets assembled at startup.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Lookup returns the named tool, if registered.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Dispatch executes one function call and returns its result.
//
// An unknown tool name returns a non-nil *core.Error of kind UnknownTool and
// a zero response; the caller must treat it as a hard failure of the attempt.
// Every other failure (argument decoding, validation, capability error,
// panic, timeout) is captured inside the FunctionResponse.Error field so it
// can be fed back to the model as a tool result.
//
// Each request is executed independently and synchronously; the registry does
// not cache or deduplicate across calls.
func (r *Registry) Dispatch(ctx context.Context, call core.FunctionCall) (core.FunctionResponse, error) {
	impl, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("registry.dispatch.unknown_tool", "tool", call.Name, "call_id", call.ID)
		return core.FunctionResponse{}, core.NewError(
			core.KindUnknownTool,
			fmt.Sprintf("tool %q is not registered", call.Name),
		)
	}

	resp := core.FunctionResponse{ID: call.ID, Name: call.Name}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			resp.Error = fmt.Sprintf("failed to decode arguments: %v", err)
			return resp, nil
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := r.invoke(ctx, impl, args)
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("registry.dispatch.error", "tool", call.Name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		resp.Error = err.Error()
		return resp, nil
	}

	r.logger.Info("registry.dispatch.success", "tool", call.Name, "duration_ms", dur.Milliseconds())
	resp.Response = result

	return resp, nil
}

// invoke runs the capability with panic containment. A panicking tool must
// not take down the run; it yields an execution error instead.
func (r *Registry) invoke(ctx context.Context, impl Tool, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("registry.dispatch.panic", "tool", impl.Name(), "recover", rec, "stack", string(debug.Stack()))
			err = NewToolError(impl.Name(), fmt.Sprintf("panic: %v", rec), "EXECUTION_ERROR")
		}
	}()

	return impl.Call(ctx, args)
}
