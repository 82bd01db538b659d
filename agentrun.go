// Package agentrun provides a high-level façade over the agent execution
// core (prompt composition, tool dispatch, retries and fallback chains).
// Most applications interact with this package by:
//  1. Declaring an agent.Config (persona, instructions, tools, output schema)
//  2. Pairing it with a model via New() or chaining several with NewChain()
//  3. Running tasks with Run(), which applies the agent's retry policy
//
// The façade delegates orchestration to agent.Runner while keeping setup
// ergonomics concise. Defaults are safe for local development; production
// deployments typically supply a structured logger.
package agentrun

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/model"
)

// Options configures an Agent instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent pairs one agent configuration with one model and the retry policy
// derived from its configuration.
type Agent struct {
	runner *agent.Runner
	policy *agent.Policy
}

// New creates a runnable agent from a configuration and a model.
func New(cfg agent.Config, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	runner := agent.NewRunner(cfg, m, func(o *agent.Options) {
		o.Logger = opts.Logger
	})
	policy := agent.NewPolicy(runner.Config().Retry, func(o *agent.PolicyOptions) {
		o.Logger = opts.Logger
	})

	return &Agent{runner: runner, policy: policy}
}

// Runner exposes the underlying runner, for callers composing their own
// retry or fallback behavior.
func (a *Agent) Runner() *agent.Runner { return a.runner }

// Run executes one task under the agent's retry policy and returns the
// terminal result. The result's Err field is set on failure; Run never
// panics on model or tool errors.
func (a *Agent) Run(ctx context.Context, taskInput string, opts ...agent.RunOption) core.RunResult {
	return a.policy.Run(ctx, func(ctx context.Context) core.RunResult {
		return a.runner.Run(ctx, taskInput, opts...)
	})
}

// NewChain builds a fallback chain over the given agents, tried in order.
func NewChain(agents []*Agent, optFns ...func(o *Options)) *agent.Chain {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	strategies := make([]agent.Strategy, len(agents))
	for i, a := range agents {
		strategies[i] = agent.Strategy{Runner: a.runner, Policy: a.policy}
	}

	return agent.NewChain(strategies, func(o *agent.ChainOptions) {
		o.Logger = opts.Logger
	})
}

// RequireCredential checks that each named environment variable is set and
// non-empty, returning a missing-credential error naming the first absent
// one. Call before constructing provider clients so the absence surfaces as
// a clear startup failure instead of an opaque API error.
func RequireCredential(envVars ...string) error {
	for _, name := range envVars {
		if os.Getenv(name) == "" {
			return core.NewError(
				core.KindMissingCredential,
				fmt.Sprintf("environment variable %s is not set", name),
			)
		}
	}
	return nil
}
