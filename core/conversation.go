package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a unique identifier used for run and function-call
// correlation throughout the framework.
func NewID() string { return uuid.NewString() }

// Conversation is the ordered sequence of turns for one run: caller input,
// model outputs and tool results. It is append-only, owned exclusively by the
// run that created it, and discarded when the run completes. There is no
// cross-run reuse.
//
// Conversation additionally tracks outstanding function calls so every tool
// result can be attributed to the specific request that produced it. The
// attribution supports multiple pending calls per turn even though current
// tool sets issue one call at a time.
type Conversation struct {
	contents []Content
	pending  map[string]string // call ID -> tool name, awaiting a response
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{pending: map[string]string{}}
}

// Append adds a turn. Function calls in assistant content become pending;
// IDs are minted for calls whose provider did not supply one.
func (c *Conversation) Append(content Content) {
	for i, p := range content.Parts {
		fc, ok := p.(FunctionCallPart)
		if !ok {
			continue
		}
		if fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = NewID()
			content.Parts[i] = fc
		}
		c.pending[fc.FunctionCall.ID] = fc.FunctionCall.Name
	}
	c.contents = append(c.contents, content)
}

// AppendToolResult records a tool result, attributing it to its originating
// call. A result whose ID does not match an outstanding call is rejected:
// accepting it would corrupt conversation ordering.
func (c *Conversation) AppendToolResult(resp FunctionResponse) error {
	name, ok := c.pending[resp.ID]
	if !ok {
		return fmt.Errorf("no pending function call with id %q", resp.ID)
	}
	if name != resp.Name {
		return fmt.Errorf("function response %q does not match pending call %q for id %s", resp.Name, name, resp.ID)
	}
	delete(c.pending, resp.ID)
	c.contents = append(c.contents, Content{
		Role:  "tool",
		Parts: []Part{FunctionResponsePart{FunctionResponse: resp}},
	})
	return nil
}

// PendingCalls returns the number of function calls still awaiting a result.
func (c *Conversation) PendingCalls() int { return len(c.pending) }

// Contents returns a copy of the turn sequence for safe iteration.
func (c *Conversation) Contents() []Content {
	out := make([]Content, len(c.contents))
	copy(out, c.contents)
	return out
}

// Len returns the number of turns recorded so far.
func (c *Conversation) Len() int { return len(c.contents) }

// Last returns the most recent turn, or a zero Content if empty.
func (c *Conversation) Last() Content {
	if len(c.contents) == 0 {
		return Content{}
	}
	return c.contents[len(c.contents)-1]
}
