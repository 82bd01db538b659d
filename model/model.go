// Package model defines the abstract boundary to language model providers.
// A Model consumes a normalized Request (instructions, conversation contents,
// tool catalogue, optional output schema) and streams back Response values:
// zero or more partial text chunks followed by exactly one final response
// that carries either text, function call requests, or both.
package model

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the orchestration
// layer. When Schema is non-nil, providers that support constrained decoding
// must restrict the final answer to that JSON schema; others receive the
// schema as appended instructions instead.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Schema       map[string]any   `json:"schema,omitempty"`
	SchemaName   string           `json:"schema_name,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial responses carry incremental text only; the final response carries
// the complete assistant content including any function call parts.
type Response struct {
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "googleai", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Each Generate
// call is one logical request; the response channel may deliver multiple
// partial chunks before the final response, and both channels are closed when
// the request completes. Errors surfaced on the error channel are classified
// into the core taxonomy (Unavailable, RateLimited, Malformed).
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ClassifyStatus maps a provider HTTP status code to the core error taxonomy.
// 429 is RateLimited, other 4xx are Malformed requests (deterministic, only
// the malformed-once rule applies), everything else is Unavailable.
func ClassifyStatus(status int, err error) *core.Error {
	switch {
	case status == 429:
		return core.WrapError(core.KindRateLimited, err, "provider rate limited (status %d)", status)
	case status >= 400 && status < 500:
		return core.WrapError(core.KindMalformed, err, "provider rejected request (status %d)", status)
	default:
		return core.WrapError(core.KindUnavailable, err, "provider unavailable (status %d)", status)
	}
}

// Step describes one scripted model turn: a canned response, or an error to
// surface instead.
type Step struct {
	Response Response
	Err      error
}

// TextStep is a scripted final text answer.
func TextStep(text string) Step {
	return Step{Response: Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}}
}

// ToolCallStep is a scripted function call request.
func ToolCallStep(id, name, args string) Step {
	return Step{Response: Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      name,
				Arguments: args,
			}}},
		},
		FinishReason: "tool_calls",
	}}
}

// ErrStep is a scripted failure.
func ErrStep(err error) Step { return Step{Err: err} }

// ScriptedModel replays a fixed sequence of steps. It is the deterministic
// in-memory Model used by tests and examples. When the script is exhausted the
// last step repeats, so "always fails" and "always requests a tool" behaviors
// are easy to express.
type ScriptedModel struct {
	mu    sync.Mutex
	index int
	steps []Step
	calls int
}

// NewScriptedModel constructs a ScriptedModel from an ordered step sequence.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &ScriptedModel{steps: cloned}
}

// Calls returns the number of Generate invocations observed.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model; emits optional streaming chunks then the scripted response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	var step Step
	switch {
	case len(m.steps) == 0:
		step = TextStep("")
	case m.index >= len(m.steps):
		step = m.steps[len(m.steps)-1]
	default:
		step = m.steps[m.index]
		m.index++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		if req.Stream {
			for _, r := range step.Response.Content.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent("assistant", string(r)),
				}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- step.Response:
		}
	}()

	return respCh, errCh
}

// Info implements the Model interface.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}
