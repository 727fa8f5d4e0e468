package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayForAttemptZeroIsInitialDelay(t *testing.T) {
	cfg := DefaultRetryConfig()
	got := cfg.DelayForAttempt(0)
	assert.Equal(t, cfg.InitialDelayMs, got.Milliseconds())
}

func TestDelayForAttemptMonotonicAndBounded(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelayMs: 100, MaxDelayMs: 1000, BackoffMultiplier: 2.0}
	prev := cfg.DelayForAttempt(0)
	for n := 1; n <= 10; n++ {
		d := cfg.DelayForAttempt(n)
		assert.GreaterOrEqual(t, d, prev, "delay must not decrease at attempt %d", n)
		assert.LessOrEqual(t, d.Milliseconds(), cfg.MaxDelayMs, "delay must not exceed max at attempt %d", n)
		prev = d
	}
}

func TestChainValidateRejectsUnknownFallbackBehavior(t *testing.T) {
	c := &Chain{
		ID:   "chain-1",
		Name: "test",
		Steps: []ChainStep{
			{ModelID: "model-1", FallbackBehavior: "bogus"},
		},
	}
	require.Error(t, c.Validate())
}

func TestChainValidateAcceptsKnownFallbackBehaviors(t *testing.T) {
	c := &Chain{
		ID:   "chain-1",
		Name: "test",
		Steps: []ChainStep{
			{ModelID: "model-1", FallbackBehavior: FallbackContinue},
			{ModelID: "model-2", FallbackBehavior: FallbackStop},
			{ModelID: "model-3", FallbackBehavior: FallbackSkip},
		},
	}
	require.NoError(t, c.Validate())
}
