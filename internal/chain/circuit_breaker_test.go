package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("model-1", 3, 60*time.Second, nil)
	clock := int64(0)
	cb.nowMs = func() int64 { return clock }

	require.Equal(t, StateClosed, cb.GetState(), "fresh breaker should start Closed")
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.GetState(), "breaker should remain Closed below threshold")
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState(), "breaker should Open exactly at the threshold")
	assert.False(t, cb.IsAvailable(), "an Open breaker must not be available")
}

func TestCircuitBreakerHalfOpenAfterResetWindow(t *testing.T) {
	cb := NewCircuitBreaker("model-1", 1, 10*time.Second, nil)
	clock := int64(0)
	cb.nowMs = func() int64 { return clock }

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState(), "expected Open immediately after crossing threshold")
	clock = 10_001
	assert.Equal(t, StateHalfOpen, cb.GetState(), "expected HalfOpen once the reset window elapses")
	assert.True(t, cb.IsAvailable(), "HalfOpen must admit a trial request")
}

func TestCircuitBreakerSuccessResetsToClosed(t *testing.T) {
	cb := NewCircuitBreaker("model-1", 2, 10*time.Second, nil)
	clock := int64(0)
	cb.nowMs = func() int64 { return clock }

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState(), "expected Open after two failures at threshold 2")
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState(), "a success must reset the breaker to Closed")
}

func TestRegistryGetOrCreateReusesBreaker(t *testing.T) {
	r := NewRegistry(5, time.Minute, nil)
	a := r.GetOrCreate("model-1")
	b := r.GetOrCreate("model-1")
	assert.Same(t, a, b, "GetOrCreate should return the same breaker instance for the same model id")
	assert.Equal(t, StateClosed, r.GetState("never-seen"), "an unknown model id should report the vacuous Closed default")
}
