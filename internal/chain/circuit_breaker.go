// Package chain implements the Chain Executor: an ordered fallback
// pipeline of model steps guarded by retry policy, a per-request timeout,
// and a per-model circuit breaker.
package chain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// State is the closed sum of circuit breaker states. States are derived,
// never stored.
type State string

const (
	StateClosed   State = "Closed"
	StateOpen     State = "Open"
	StateHalfOpen State = "HalfOpen"
)

// CircuitBreaker is a per-model lock-free state machine: failure_count and
// last_failure_ms are the only stored fields, both atomic. This is
// deliberately simpler than the teacher's sliding-window
// resilience.CircuitBreaker — spec.md §8 makes the exact threshold-crossing
// timing a tested invariant, which a sliding window would obscure. The
// teacher's style of an exported GetState and an injected logger (passed to
// NewCircuitBreaker) is kept; there is no Execute wrapper.
type CircuitBreaker struct {
	failureCount  atomic.Int64
	lastFailureMs atomic.Int64

	modelID          string
	threshold        int64
	resetDurationMs  int64
	logger           logging.Logger

	nowMs func() int64 // overridable for tests
}

func NewCircuitBreaker(modelID string, threshold int, resetDuration time.Duration, logger logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &CircuitBreaker{
		modelID:         modelID,
		threshold:       int64(threshold),
		resetDurationMs: resetDuration.Milliseconds(),
		logger:          logger.WithComponent("chain.circuit_breaker"),
		nowMs:           func() int64 { return time.Now().UnixMilli() },
	}
}

// GetState derives the current state from the atomic counters.
func (cb *CircuitBreaker) GetState() State {
	failures := cb.failureCount.Load()
	if failures < cb.threshold {
		return StateClosed
	}
	if cb.nowMs()-cb.lastFailureMs.Load() < cb.resetDurationMs {
		return StateOpen
	}
	return StateHalfOpen
}

// IsAvailable reports whether a call may be attempted: true for Closed and
// HalfOpen (which admits a trial request), false for Open.
func (cb *CircuitBreaker) IsAvailable() bool {
	return cb.GetState() != StateOpen
}

// RecordSuccess resets the failure counter to 0, returning the breaker to
// Closed regardless of prior state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failureCount.Store(0)
	cb.logger.Debug("circuit breaker success", map[string]interface{}{"model_id": cb.modelID, "state": string(StateClosed)})
}

// RecordFailure increments the failure counter and stamps the failure
// time. A HalfOpen trial that fails returns to Open (last_failure_ms is
// refreshed, extending the reset window from now).
func (cb *CircuitBreaker) RecordFailure() {
	n := cb.failureCount.Add(1)
	cb.lastFailureMs.Store(cb.nowMs())
	cb.logger.Debug("circuit breaker failure", map[string]interface{}{
		"model_id": cb.modelID, "failure_count": n, "state": string(cb.GetState()),
	})
}

// Reset clears the breaker back to Closed, for administrative use.
func (cb *CircuitBreaker) Reset() {
	cb.failureCount.Store(0)
	cb.lastFailureMs.Store(0)
}

// Registry is the per-model CircuitBreaker table. Guarded by one RWMutex,
// matching the spec's single-lock-per-map convention; the breakers
// themselves stay lock-free.
type Registry struct {
	mu              sync.RWMutex
	breakers        map[string]*CircuitBreaker
	threshold       int
	resetDuration   time.Duration
	logger          logging.Logger
}

func NewRegistry(threshold int, resetDuration time.Duration, logger logging.Logger) *Registry {
	return &Registry{
		breakers:      make(map[string]*CircuitBreaker),
		threshold:     threshold,
		resetDuration: resetDuration,
		logger:        logger,
	}
}

// GetOrCreate returns the breaker for modelID, creating one with the
// registry's default threshold/reset-duration on first use.
func (r *Registry) GetOrCreate(modelID string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[modelID]
	r.mu.RUnlock()
	if ok {
		return cb
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[modelID]; ok {
		return cb
	}
	cb = NewCircuitBreaker(modelID, r.threshold, r.resetDuration, r.logger)
	r.breakers[modelID] = cb
	return cb
}

// GetState reports the current state for modelID without creating a
// breaker if none exists (returns Closed, the vacuous default).
func (r *Registry) GetState(modelID string) State {
	r.mu.RLock()
	cb, ok := r.breakers[modelID]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return cb.GetState()
}
