package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// Strategy pairs one agent configuration with its retry policy. Strategies in
// a chain are ordered by decreasing capability, e.g. tool-augmented, then
// precomputed-knowledge-lookup, then model-knowledge-only.
type Strategy struct {
	Runner *Runner
	Policy *Policy
}

// NewStrategy bundles a runner with a policy derived from its own retry
// configuration.
func NewStrategy(r *Runner, optFns ...func(o *PolicyOptions)) Strategy {
	return Strategy{Runner: r, Policy: NewPolicy(r.Config().Retry, optFns...)}
}

// ChainOptions configures a fallback Chain.
type ChainOptions struct {
	// Logger receives structured chain events.
	Logger logging.Logger
}

// Chain holds an ordered sequence of strategies. Each is tried in turn with
// the same original caller input, never the partial conversation of a failed
// attempt; every strategy starts a fresh conversation. The chain's result is
// the first success, or AllStrategiesExhausted carrying every collected
// failure.
type Chain struct {
	strategies []Strategy
	logger     logging.Logger
}

// NewChain constructs a Chain from ordered strategies.
func NewChain(strategies []Strategy, optFns ...func(o *ChainOptions)) *Chain {
	opts := ChainOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Chain{strategies: strategies, logger: opts.Logger}
}

// Len returns the number of strategies in the chain.
func (c *Chain) Len() int { return len(c.strategies) }

// Run executes the chain against the task input.
func (c *Chain) Run(ctx context.Context, taskInput string, opts ...RunOption) core.RunResult {
	if len(c.strategies) == 0 {
		return core.FailureResult(core.NewError(core.KindAllStrategiesExhausted, "fallback chain is empty"))
	}

	failures := make([]*core.Error, 0, len(c.strategies))

	for i, s := range c.strategies {
		name := s.Runner.Config().Name

		res := s.Policy.Run(ctx, func(ctx context.Context) core.RunResult {
			return s.Runner.Run(ctx, taskInput, opts...)
		})
		if res.Success() {
			c.logger.Info("chain.strategy.succeeded", "strategy", name, "position", i+1, "failures_before", len(failures))
			return res
		}

		failures = append(failures, res.Err)
		c.logger.Warn("chain.strategy.failed", "strategy", name, "position", i+1, "kind", string(res.Err.Kind), "error", res.Err.Message)

		if ctx.Err() != nil {
			break
		}
	}

	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Strategy, f.Kind))
	}

	return core.FailureResult(&core.Error{
		Kind:    core.KindAllStrategiesExhausted,
		Message: "every strategy failed: " + strings.Join(msgs, ", "),
		Causes:  failures,
	})
}
