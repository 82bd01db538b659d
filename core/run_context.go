package core

import (
	"context"

	"github.com/hupe1980/agentrun/logging"
)

// StreamHandler receives incremental text chunks before the terminal
// RunResult. Chunks for one run are strictly ordered; the handler is invoked
// from the run's own goroutine and must not block indefinitely.
type StreamHandler func(chunk string)

// RunContext carries the mutable per-run execution scope: the ambient
// cancellation context, correlation identifiers, the run's Conversation,
// the round-trip limiter and the optional stream handler. A RunContext is
// exclusive to one run and never shared.
type RunContext struct {
	Context      context.Context
	RunID        string
	Agent        string // Name of the agent config driving this run
	Conversation *Conversation
	Rounds       *RoundLimiter
	Stream       StreamHandler

	toolUse bool

	*loggerAdapter
}

// NewRunContext constructs a RunContext with a fresh conversation.
func NewRunContext(
	ctx context.Context,
	agent string,
	maxRounds int,
	stream StreamHandler,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         NewID(),
		Agent:         agent,
		Conversation:  NewConversation(),
		Rounds:        NewRoundLimiter(maxRounds),
		Stream:        stream,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// EmitChunk forwards a streamed text chunk to the caller's handler, if any.
func (rc *RunContext) EmitChunk(chunk string) {
	if rc.Stream != nil && chunk != "" {
		rc.Stream(chunk)
	}
}

// MarkToolUse records that at least one tool round-trip succeeded.
func (rc *RunContext) MarkToolUse() { rc.toolUse = true }

// Provenance reports whether the run's answer is grounded in retrieved tool
// output or recalled from model knowledge alone.
func (rc *RunContext) Provenance() Provenance {
	if rc.toolUse {
		return ProvenanceRetrieved
	}
	return ProvenanceModelKnowledge
}
