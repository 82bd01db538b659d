package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// PolicyOptions configures a retry Policy.
type PolicyOptions struct {
	// Logger receives structured retry events.
	Logger logging.Logger
	// Sleep is the delay function, injectable for tests. Defaults to a
	// context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Policy wraps a single attempt with bounded retry and backoff.
//
// Only transient failures are retried: Unavailable and RateLimited always,
// Malformed and SchemaViolation once each (a second occurrence is a
// deterministic defect, not transience). UnknownTool and
// IterationLimitExceeded are never retried. Exhausting the attempt budget
// yields RetriesExhausted carrying the last error.
type Policy struct {
	cfg    RetryConfig
	logger logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPolicy constructs a Policy from retry parameters.
func NewPolicy(cfg RetryConfig, optFns ...func(o *PolicyOptions)) *Policy {
	opts := PolicyOptions{
		Logger: logging.NoOpLogger{},
		Sleep:  sleepCtx,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 1.0
	}

	return &Policy{cfg: cfg, logger: opts.Logger, sleep: opts.Sleep}
}

// Delay computes the backoff before the given attempt (1-based). There is no
// delay before the first attempt; attempt k (k >= 2) waits
// BaseDelay * Multiplier^(k-2).
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return time.Duration(float64(p.cfg.BaseDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-2)))
}

// Run executes attempt until it succeeds, fails non-retryably, or the attempt
// budget is exhausted. Each invocation of attempt is a complete fresh run.
func (p *Policy) Run(ctx context.Context, attempt func(ctx context.Context) core.RunResult) core.RunResult {
	var (
		last          *core.Error
		malformedSeen bool
		schemaSeen    bool
	)

	for k := 1; k <= p.cfg.MaxAttempts; k++ {
		if d := p.Delay(k); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				return core.FailureResult(core.WrapError(core.KindUnavailable, err, "cancelled during backoff"))
			}
		}

		res := attempt(ctx)
		if res.Success() {
			return res
		}

		last = res.Err
		p.logger.Warn("retry.attempt.failed", "attempt", k, "max_attempts", p.cfg.MaxAttempts, "kind", string(last.Kind), "error", last.Message)

		// Caller cancellation is not transience.
		if ctx.Err() != nil && (errors.Is(last.Err, context.Canceled) || errors.Is(last.Err, context.DeadlineExceeded)) {
			return res
		}

		switch last.Kind {
		case core.KindMalformed:
			if malformedSeen {
				return res
			}
			malformedSeen = true
		case core.KindSchemaViolation:
			if schemaSeen {
				return res
			}
			schemaSeen = true
		case core.KindUnavailable, core.KindRateLimited:
			// Transient; retry with backoff.
		default:
			return res
		}
	}

	exhausted := &core.Error{
		Kind:     core.KindRetriesExhausted,
		Message:  fmt.Sprintf("gave up after %d attempts: %s", p.cfg.MaxAttempts, last.Message),
		Strategy: last.Strategy,
		Err:      last,
	}
	return core.FailureResult(exhausted)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
