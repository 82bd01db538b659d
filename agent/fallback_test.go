package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
)

func failingStrategy(name string) Strategy {
	scripted := model.NewScriptedModel(
		model.ErrStep(core.NewError(core.KindUnavailable, "provider down")),
	)
	r := NewRunner(Config{
		Name:  name,
		Retry: RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 1.0},
	}, scripted)
	return NewStrategy(r)
}

func succeedingStrategy(name, answer string) Strategy {
	r := NewRunner(Config{
		Name:  name,
		Retry: RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 1.0},
	}, model.NewScriptedModel(model.TextStep(answer)))
	return NewStrategy(r)
}

func TestChain_FallsThroughToFirstSuccess(t *testing.T) {
	chain := NewChain([]Strategy{
		failingStrategy("primary"),
		failingStrategy("secondary"),
		succeedingStrategy("last-resort", "answered without tools"),
	})

	res := chain.Run(context.Background(), "what is the answer")

	assert.True(t, res.Success())
	assert.Equal(t, "answered without tools", res.Text)
	assert.Equal(t, "last-resort", res.Strategy)
}

func TestChain_PreferredStrategyWins(t *testing.T) {
	fallbackModel := model.NewScriptedModel(model.TextStep("should not run"))
	chain := NewChain([]Strategy{
		succeedingStrategy("primary", "primary answer"),
		NewStrategy(NewRunner(Config{Name: "secondary"}, fallbackModel)),
	})

	res := chain.Run(context.Background(), "anything")

	assert.True(t, res.Success())
	assert.Equal(t, "primary", res.Strategy)
	assert.Equal(t, 0, fallbackModel.Calls())
}

func TestChain_AllStrategiesExhausted(t *testing.T) {
	chain := NewChain([]Strategy{
		failingStrategy("primary"),
		failingStrategy("secondary"),
	})

	res := chain.Run(context.Background(), "anything")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindAllStrategiesExhausted, res.Err.Kind)
	// One recorded failure per attempted strategy, in order.
	assert.Len(t, res.Err.Causes, 2)
	assert.Equal(t, "primary", res.Err.Causes[0].Strategy)
	assert.Equal(t, "secondary", res.Err.Causes[1].Strategy)
}

func TestChain_RetriesWithinStrategyBeforeMovingOn(t *testing.T) {
	scripted := model.NewScriptedModel(
		model.ErrStep(core.NewError(core.KindUnavailable, "down")),
	)
	r := NewRunner(Config{
		Name:  "flaky",
		Retry: RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1.0},
	}, scripted)
	flaky := NewStrategy(r, func(o *PolicyOptions) {
		o.Sleep = func(_ context.Context, _ time.Duration) error { return nil }
	})

	chain := NewChain([]Strategy{
		flaky,
		succeedingStrategy("backup", "backup answer"),
	})

	res := chain.Run(context.Background(), "anything")

	assert.True(t, res.Success())
	assert.Equal(t, "backup", res.Strategy)
	// The flaky strategy exhausted its full retry budget first.
	assert.Equal(t, 3, scripted.Calls())
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain(nil)

	res := chain.Run(context.Background(), "anything")

	assert.False(t, res.Success())
	assert.Equal(t, core.KindAllStrategiesExhausted, res.Err.Kind)
	assert.Empty(t, res.Err.Causes)
}
