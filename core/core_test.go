package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversation_AppendMintsCallIDs(t *testing.T) {
	c := NewConversation()
	c.Append(Content{
		Role: "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{
			Name:      "search",
			Arguments: `{"query":"x"}`,
		}}},
	})

	calls := c.Last().FunctionCalls()
	assert.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, 1, c.PendingCalls())
}

func TestConversation_ToolResultAttribution(t *testing.T) {
	c := NewConversation()
	c.Append(Content{
		Role: "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{
			ID:   "call-1",
			Name: "search",
		}}},
	})

	err := c.AppendToolResult(FunctionResponse{ID: "call-1", Name: "search", Response: "found it"})
	assert.NoError(t, err)
	assert.Equal(t, 0, c.PendingCalls())

	last := c.Last()
	assert.Equal(t, "tool", last.Role)
	responses := last.FunctionResponses()
	assert.Len(t, responses, 1)
	assert.Equal(t, "found it", responses[0].Response)
}

func TestConversation_RejectsUnmatchedToolResult(t *testing.T) {
	c := NewConversation()

	err := c.AppendToolResult(FunctionResponse{ID: "never-issued", Name: "search"})
	assert.Error(t, err)

	c.Append(Content{
		Role:  "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{ID: "call-1", Name: "search"}}},
	})
	err = c.AppendToolResult(FunctionResponse{ID: "call-1", Name: "different_tool"})
	assert.Error(t, err)
	assert.Equal(t, 1, c.PendingCalls())
}

func TestConversation_ContentsCopied(t *testing.T) {
	c := NewConversation()
	c.Append(NewTextContent("user", "hello"))

	snapshot := c.Contents()
	snapshot[0] = NewTextContent("user", "mutated")

	assert.Equal(t, "hello", c.Last().Text())
}

func TestContent_Accessors(t *testing.T) {
	content := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "thinking... "},
			TextPart{Text: "done"},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "search"}},
		},
	}

	assert.Equal(t, "thinking... done", content.Text())
	assert.Len(t, content.FunctionCalls(), 1)
	assert.Empty(t, content.FunctionResponses())
}

func TestError_KindAndUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapError(KindUnavailable, cause, "provider %s down", "openai")

	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "provider openai down")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindUnavailable, KindOf(wrapped))
}

func TestError_UnclassifiedDefaultsToUnavailable(t *testing.T) {
	assert.Equal(t, KindUnavailable, KindOf(errors.New("mystery")))
	assert.True(t, Retryable(errors.New("mystery")))
}

func TestError_Retryable(t *testing.T) {
	assert.True(t, Retryable(NewError(KindUnavailable, "")))
	assert.True(t, Retryable(NewError(KindRateLimited, "")))
	assert.True(t, Retryable(NewError(KindMalformed, "")))
	assert.True(t, Retryable(NewError(KindSchemaViolation, "")))
	assert.False(t, Retryable(NewError(KindUnknownTool, "")))
	assert.False(t, Retryable(NewError(KindIterationLimit, "")))
	assert.False(t, Retryable(NewError(KindRetriesExhausted, "")))
	assert.False(t, Retryable(NewError(KindMissingCredential, "")))
}

func TestRoundLimiter(t *testing.T) {
	rl := NewRoundLimiter(2)

	assert.True(t, rl.Increment())
	assert.True(t, rl.Increment())
	assert.False(t, rl.Increment())
	assert.Equal(t, 3, rl.Count())
}

func TestRoundLimiter_Unlimited(t *testing.T) {
	rl := NewRoundLimiter(0)

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Increment())
	}
	assert.Equal(t, -1, rl.Remaining())
}

func TestRunContext_Provenance(t *testing.T) {
	rc := NewRunContext(t.Context(), "tester", 5, nil, nil)

	assert.Equal(t, ProvenanceModelKnowledge, rc.Provenance())
	rc.MarkToolUse()
	assert.Equal(t, ProvenanceRetrieved, rc.Provenance())
}
