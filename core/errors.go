package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes run failures. The kind decides how far an error
// propagates: some are recovered locally by the retry policy, some end the
// attempt and hand control to the next fallback strategy, and one
// (KindMissingCredential) is fatal before any run starts.
type ErrorKind string

const (
	// KindUnavailable signals a network or service failure. Retryable.
	KindUnavailable ErrorKind = "unavailable"
	// KindRateLimited signals provider throttling. Retryable with backoff.
	KindRateLimited ErrorKind = "rate_limited"
	// KindMalformed signals an unparseable structured answer from the model.
	// Retried once, then treated as a deterministic defect.
	KindMalformed ErrorKind = "malformed"
	// KindUnknownTool signals a model request for a tool absent from the
	// registry. Hard failure of the attempt, never retried.
	KindUnknownTool ErrorKind = "unknown_tool"
	// KindToolExecution signals a tool capability failure. Not an attempt
	// failure: it is recorded in the conversation and shown to the model.
	KindToolExecution ErrorKind = "tool_execution"
	// KindIterationLimit signals the tool-call round-trip cap was exceeded.
	KindIterationLimit ErrorKind = "iteration_limit_exceeded"
	// KindSchemaViolation signals a final answer that failed output schema
	// validation. Retried once, then treated as a deterministic defect.
	KindSchemaViolation ErrorKind = "schema_violation"
	// KindRetriesExhausted signals the retry policy gave up.
	KindRetriesExhausted ErrorKind = "retries_exhausted"
	// KindAllStrategiesExhausted signals every fallback strategy failed.
	KindAllStrategiesExhausted ErrorKind = "all_strategies_exhausted"
	// KindMissingCredential signals the required API credential env var is
	// absent or empty. Fatal at startup.
	KindMissingCredential ErrorKind = "missing_credential"
)

// Error is the typed failure carried by a RunResult. Strategy names the agent
// configuration that produced the failure so callers can report a clear
// diagnostic.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Strategy string    `json:"strategy,omitempty"`
	Causes   []*Error  `json:"causes,omitempty"` // Per-strategy failures for aggregate kinds
	Err      error     `json:"-"`                // Wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Strategy != "" {
		msg = fmt.Sprintf("%s (strategy %s)", msg, e.Strategy)
	}
	return msg
}

// Unwrap returns the wrapped cause for errors.Is / errors.As traversal.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed run error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a typed run error around a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err. Unclassified errors map to
// KindUnavailable so unexpected transport failures stay retryable.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnavailable
}

// Retryable reports whether a single occurrence of err may be retried by the
// retry policy. Malformed and SchemaViolation are retryable exactly once;
// tracking the occurrence count is the policy's job, this only classifies.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindRateLimited, KindMalformed, KindSchemaViolation:
		return true
	default:
		return false
	}
}
