package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/output"
	"github.com/hupe1980/agentrun/tool"
)

func echoTool(invocations *atomic.Int64) tool.Tool {
	return tool.NewFunctionTool(
		"echo",
		"Echo the input back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			if invocations != nil {
				invocations.Add(1)
			}
			return args["text"], nil
		},
	)
}

func TestRunner_ToolLoop(t *testing.T) {
	var invocations atomic.Int64
	scripted := model.NewScriptedModel(
		model.ToolCallStep("call-1", "echo", `{"text":"hello"}`),
		model.TextStep("the tool said hello"),
	)

	r := NewRunner(Config{
		Name:  "echoer",
		Tools: tool.MustRegistry(echoTool(&invocations)),
	}, scripted)

	res := r.Run(context.Background(), "say hello")

	assert.True(t, res.Success())
	assert.Equal(t, "the tool said hello", res.Text)
	assert.Equal(t, core.ProvenanceRetrieved, res.Provenance)
	assert.Equal(t, "echoer", res.Strategy)
	assert.Equal(t, int64(1), invocations.Load())
	assert.Equal(t, 2, scripted.Calls())
}

func TestRunner_NoToolsProvenance(t *testing.T) {
	scripted := model.NewScriptedModel(model.TextStep("from memory"))

	r := NewRunner(Config{Name: "plain"}, scripted)
	res := r.Run(context.Background(), "answer directly")

	assert.True(t, res.Success())
	assert.Equal(t, core.ProvenanceModelKnowledge, res.Provenance)
}

func TestRunner_IterationLimitExact(t *testing.T) {
	var invocations atomic.Int64
	// The script never converges; the last step repeats forever.
	scripted := model.NewScriptedModel(
		model.ToolCallStep("", "echo", `{"text":"again"}`),
	)

	r := NewRunner(Config{
		Name:          "looper",
		Tools:         tool.MustRegistry(echoTool(&invocations)),
		MaxToolRounds: 2,
	}, scripted)

	res := r.Run(context.Background(), "loop forever")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindIterationLimit, res.Err.Kind)
	// Exactly the budgeted rounds execute tools; the round that would cross
	// the cap fails before dispatch.
	assert.Equal(t, int64(2), invocations.Load())
	assert.Equal(t, 3, scripted.Calls())
}

func TestRunner_UnknownToolFailsWithoutRetry(t *testing.T) {
	var invocations atomic.Int64
	scripted := model.NewScriptedModel(
		model.ToolCallStep("call-1", "does_not_exist", `{}`),
	)

	r := NewRunner(Config{
		Name:  "confused",
		Tools: tool.MustRegistry(echoTool(&invocations)),
	}, scripted)

	res := r.Run(context.Background(), "call something")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindUnknownTool, res.Err.Kind)
	assert.Equal(t, int64(0), invocations.Load())
	assert.Equal(t, 1, scripted.Calls())
	assert.False(t, core.Retryable(res.Err))
}

func TestRunner_ToolRequestWithoutTools(t *testing.T) {
	scripted := model.NewScriptedModel(
		model.ToolCallStep("call-1", "echo", `{"text":"x"}`),
	)

	r := NewRunner(Config{Name: "toolless"}, scripted)
	res := r.Run(context.Background(), "try a tool")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindUnknownTool, res.Err.Kind)
}

func TestRunner_ToolFailureFedBackToModel(t *testing.T) {
	failing := tool.NewFunctionTool(
		"flaky",
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, assert.AnError
		},
	)
	scripted := model.NewScriptedModel(
		model.ToolCallStep("call-1", "flaky", `{}`),
		model.TextStep("the tool failed, answering from memory"),
	)

	r := NewRunner(Config{
		Name:  "resilient",
		Tools: tool.MustRegistry(failing),
	}, scripted)

	res := r.Run(context.Background(), "try anyway")

	// A tool execution error is a conversational event, not a run failure.
	assert.True(t, res.Success())
	assert.Equal(t, 2, scripted.Calls())
	// No successful tool round-trip happened, so nothing was retrieved.
	assert.Equal(t, core.ProvenanceModelKnowledge, res.Provenance)
}

func TestRunner_StreamingChunksComposeFinalText(t *testing.T) {
	scripted := model.NewScriptedModel(model.TextStep("streamed answer"))

	r := NewRunner(Config{Name: "streamer", Streaming: true}, scripted)

	var chunks []string
	res := r.Run(context.Background(), "stream it", WithStream(func(chunk string) {
		chunks = append(chunks, chunk)
	}))

	assert.True(t, res.Success())
	assert.Equal(t, "streamed answer", res.Text)
	// All chunks arrive before the terminal result and concatenate to the
	// final text, in order.
	assert.Equal(t, "streamed answer", strings.Join(chunks, ""))
	assert.Greater(t, len(chunks), 1)
}

func TestRunner_EmptyAnswerIsMalformed(t *testing.T) {
	scripted := model.NewScriptedModel(model.TextStep("   "))

	r := NewRunner(Config{Name: "mute"}, scripted)
	res := r.Run(context.Background(), "say something")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindMalformed, res.Err.Kind)
}

func TestRunner_StructuredAnswer(t *testing.T) {
	schema := &output.Schema{
		Name: "Answer",
		Fields: []output.Field{
			{Name: "answer", Type: output.TypeString, Description: "The answer"},
		},
	}
	scripted := model.NewScriptedModel(
		model.TextStep(`Here you go: {"answer":"42","scratch":"ignore me"}`),
	)

	r := NewRunner(Config{Name: "typed", Schema: schema}, scripted)
	res := r.Run(context.Background(), "what is the answer")

	assert.True(t, res.Success())
	assert.True(t, res.Structured)
	assert.Equal(t, "42", res.Object["answer"])
	_, hasUnknown := res.Object["scratch"]
	assert.False(t, hasUnknown)
}

func TestRunner_StructuredAnswerViolation(t *testing.T) {
	schema := &output.Schema{
		Name: "Answer",
		Fields: []output.Field{
			{Name: "answer", Type: output.TypeString, Description: "The answer"},
		},
	}
	scripted := model.NewScriptedModel(model.TextStep(`{"other":"field"}`))

	r := NewRunner(Config{Name: "typed", Schema: schema}, scripted)
	res := r.Run(context.Background(), "what is the answer")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindSchemaViolation, res.Err.Kind)
	assert.Nil(t, res.Object)
}

func TestRunner_ModelErrorClassification(t *testing.T) {
	scripted := model.NewScriptedModel(
		model.ErrStep(core.NewError(core.KindRateLimited, "slow down")),
	)

	r := NewRunner(Config{Name: "limited"}, scripted)
	res := r.Run(context.Background(), "anything")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindRateLimited, res.Err.Kind)
	assert.True(t, core.Retryable(res.Err))
	assert.Equal(t, "limited", res.Err.Strategy)
}

func TestRunner_ContextCancellation(t *testing.T) {
	scripted := model.NewScriptedModel(model.TextStep("too late"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(Config{Name: "cancelled"}, scripted)
	res := r.Run(ctx, "anything")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindUnavailable, res.Err.Kind)
}

func TestRunner_GenerateTimeout(t *testing.T) {
	slow := &slowModel{delay: 200 * time.Millisecond}

	r := NewRunner(Config{Name: "impatient"}, slow, func(o *Options) {
		o.GenerateTimeout = 10 * time.Millisecond
	})
	res := r.Run(context.Background(), "hurry up")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindUnavailable, res.Err.Kind)
}

type slowModel struct {
	delay time.Duration
}

func (m *slowModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case <-time.After(m.delay):
			out <- model.Response{Content: core.NewTextContent("assistant", "done")}
		}
	}()
	return out, errCh
}

func (m *slowModel) Info() model.Info {
	return model.Info{Name: "slow", Provider: "test"}
}
