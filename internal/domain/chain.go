package domain

import "time"

// FallbackBehavior is the closed sum of actions taken when a chain step
// fails after exhausting its retries.
type FallbackBehavior string

const (
	FallbackContinue FallbackBehavior = "Continue"
	FallbackStop     FallbackBehavior = "Stop"
	FallbackSkip     FallbackBehavior = "Skip"
)

// RetryConfig governs the retry loop of a single chain step.
type RetryConfig struct {
	MaxRetries       int     `json:"max_retries"`
	InitialDelayMs   int64   `json:"initial_delay_ms"`
	MaxDelayMs       int64   `json:"max_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryConfig mirrors the teacher's DefaultRetryConfig shape, scaled
// to the gateway's millisecond units.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialDelayMs:    100,
		MaxDelayMs:        10_000,
		BackoffMultiplier: 2.0,
	}
}

// DelayForAttempt returns the sleep duration before retry attempt n
// (0-indexed). Attempt 0 returns InitialDelayMs exactly: there is no
// pre-wait on the first try, and the first retry waits InitialDelayMs.
func (r RetryConfig) DelayForAttempt(n int) time.Duration {
	if n <= 0 {
		return time.Duration(r.InitialDelayMs) * time.Millisecond
	}
	delay := float64(r.InitialDelayMs)
	mult := r.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 0; i < n; i++ {
		delay *= mult
		if delay >= float64(r.MaxDelayMs) {
			delay = float64(r.MaxDelayMs)
			break
		}
	}
	if delay > float64(r.MaxDelayMs) {
		delay = float64(r.MaxDelayMs)
	}
	return time.Duration(delay) * time.Millisecond
}

// ChainStep references a model plus the policy governing one fallback hop.
type ChainStep struct {
	ModelID          string           `json:"model_id"`
	Name             string           `json:"name,omitempty"`
	Retry            RetryConfig      `json:"retry_config"`
	MaxLatencyMs     int64            `json:"max_latency_ms"` // 0 = no limit
	FallbackBehavior FallbackBehavior `json:"fallback_behavior"`
	Priority         int              `json:"priority"`
}

// Chain is an ordered fallback pipeline of ChainSteps.
type Chain struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Steps       []ChainStep `json:"steps"`
	Enabled     bool        `json:"enabled"`
	// ExperimentID, when set, names an Experiment the executor consults to
	// override the first step's model_id with an assigned variant.
	ExperimentID string    `json:"experiment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Chain) Validate() error {
	if err := ValidateID("chain", c.ID); err != nil {
		return err
	}
	if c.Name == "" {
		return NewValidationError("chain.validate", "name must not be empty")
	}
	for i := range c.Steps {
		switch c.Steps[i].FallbackBehavior {
		case FallbackContinue, FallbackStop, FallbackSkip:
		default:
			return NewValidationError("chain.validate", "unrecognized fallback_behavior")
		}
	}
	return nil
}

// StepResult records the outcome of one chain step execution.
type StepResult struct {
	ModelID    string       `json:"model_id"`
	Success    bool         `json:"success"`
	Attempts   int          `json:"attempts"`
	LatencyMs  int64        `json:"latency_ms"`
	Response   *LlmResponse `json:"response,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// ChainResult summarizes one chain execution. It is returned for every
// execution that runs; a disabled or empty chain yields an error instead.
type ChainResult struct {
	Success          bool         `json:"success"`
	Response         *LlmResponse `json:"response,omitempty"`
	StepResults      []StepResult `json:"step_results"`
	TotalLatencyMs   int64        `json:"total_latency_ms"`
	Error            string       `json:"error,omitempty"`
	// AssignedModelID is the variant the experiment layer substituted for
	// the chain's first step, set only when Chain.ExperimentID is non-empty.
	AssignedModelID string `json:"assigned_model_id,omitempty"`
}
