// Package agent implements the execution core for a single agent run: the
// tool-call loop that interleaves model calls and tool dispatches, the retry
// policy wrapping each attempt, and the fallback chain of alternative agent
// configurations.
package agent

import (
	"time"

	"github.com/hupe1980/agentrun/output"
	"github.com/hupe1980/agentrun/tool"
)

// RetryConfig holds the bounded retry parameters of one agent configuration.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay for each further attempt. 1.0 yields a
	// fixed delay.
	Multiplier float64
}

// DefaultRetryConfig mirrors the usual provider guidance: three attempts,
// exponential backoff starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2.0}
}

// Config is the identity of one agent variant: persona, ordered instruction
// list, tool set (possibly empty), optional output schema and retry
// parameters. A Config is immutable once constructed; the Runner copies it
// and never mutates caller state.
type Config struct {
	// Name identifies this configuration in logs and failure diagnostics.
	Name string
	// Persona is the fixed description text establishing the agent's role.
	Persona string
	// Instructions is the ordered step sequence; order is semantically
	// meaningful and preserved verbatim.
	Instructions []string
	// Tools is the registry of callable tools. Nil means a tool-free agent.
	Tools *tool.Registry
	// Schema, when non-nil, is the typed contract the final answer must
	// conform to.
	Schema *output.Schema
	// Retry configures the policy wrapping this configuration's attempts.
	Retry RetryConfig
	// MaxToolRounds caps tool-call round-trips per run. Defaults to 10.
	MaxToolRounds int
	// Streaming requests incremental text delivery from the model.
	Streaming bool
}

const defaultMaxToolRounds = 10

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "agent"
	}
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = defaultMaxToolRounds
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryConfig()
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 1.0
	}
	return c
}

// HasTools reports whether the configuration carries a non-empty tool set.
func (c Config) HasTools() bool {
	return c.Tools != nil && c.Tools.Len() > 0
}
