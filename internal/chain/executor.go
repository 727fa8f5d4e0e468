package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
	"github.com/gomind-contrib/llmgateway/internal/provider"
	"github.com/gomind-contrib/llmgateway/internal/telemetry"
)

// Resolver is the narrow surface the executor needs from the provider
// router: a model id resolves to a ready LlmProvider plus the vendor model
// string to pass through verbatim.
type Resolver interface {
	Resolve(ctx context.Context, modelID string) (provider.LlmProvider, string, error)
}

// ExperimentAssigner is the narrow surface the executor needs from
// experiment.Assigner: resolve a chain's declared experiment into the
// model id that should serve the first step.
type ExperimentAssigner interface {
	Assign(ctx context.Context, experimentID, assignmentKey, usageRecordID string) (string, error)
}

const defaultBreakerThreshold = 5

var defaultResetDuration = 60 * time.Second

// Executor runs chains as fault-tolerant fallback pipelines. It is
// instrumented with telemetry spans the way resilience.Instrumentation
// wraps calls, and structured logging the way the teacher's
// CircuitBreaker.Execute logs start/allow/reject/complete.
type Executor struct {
	resolver    Resolver
	experiments ExperimentAssigner
	breakers    *Registry
	metrics     *ChainMetrics
	logger      logging.Logger
	telemetry   telemetry.Telemetry
}

func NewExecutor(resolver Resolver, logger logging.Logger, tel telemetry.Telemetry) *Executor {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if tel == nil {
		tel = telemetry.NoOp{}
	}
	return &Executor{
		resolver:  resolver,
		breakers:  NewRegistry(defaultBreakerThreshold, defaultResetDuration, logger),
		metrics:   NewChainMetrics(),
		logger:    logger.WithComponent("chain.executor"),
		telemetry: tel,
	}
}

// WithExperiments enables per-chain model variant assignment. Chains whose
// ExperimentID is empty are unaffected; it is safe to call this with a nil
// assigner, which simply leaves experiment assignment disabled.
func (e *Executor) WithExperiments(assigner ExperimentAssigner) *Executor {
	e.experiments = assigner
	return e
}

// Metrics exposes the executor's accumulated ChainMetrics.
func (e *Executor) Metrics() *ChainMetrics { return e.metrics }

// BreakerState reports the derived circuit breaker state for a model,
// without creating a breaker as a side effect if none exists yet.
func (e *Executor) BreakerState(modelID string) State { return e.breakers.GetState(modelID) }

// Execute runs c's steps as an ordered fallback pipeline. It fails fast
// with an error only for the disabled/empty pre-conditions (spec.md §7);
// otherwise it always returns a ChainResult summarizing what happened.
func (e *Executor) Execute(ctx context.Context, c *domain.Chain, req domain.ChatRequest) (*domain.ChainResult, error) {
	if !c.Enabled {
		return nil, domain.NewValidationError("chain.execute", "chain is disabled: "+c.ID)
	}
	if len(c.Steps) == 0 {
		return nil, domain.NewValidationError("chain.execute", "chain has no steps: "+c.ID)
	}

	ctx, span := e.telemetry.StartSpan(ctx, "chain.execute")
	defer span.End()
	span.SetAttribute("chain_id", c.ID)

	start := time.Now()
	result := &domain.ChainResult{StepResults: make([]domain.StepResult, 0, len(c.Steps))}
	var outcomes []stepOutcome

	steps := c.Steps
	if c.ExperimentID != "" && e.experiments != nil {
		assigned, err := e.experiments.Assign(ctx, c.ExperimentID, req.AssignmentKey, "")
		if err != nil {
			e.logger.Warn("experiment assignment failed, falling back to chain's declared steps", map[string]interface{}{
				"chain_id": c.ID, "experiment_id": c.ExperimentID, "error": err.Error(),
			})
		} else {
			steps = make([]domain.ChainStep, len(c.Steps))
			copy(steps, c.Steps)
			steps[0].ModelID = assigned
			result.AssignedModelID = assigned
			span.SetAttribute("assigned_model_id", assigned)
		}
	}

	for i := range steps {
		step := steps[i]
		cb := e.breakers.GetOrCreate(step.ModelID)

		var sr domain.StepResult
		if !cb.IsAvailable() {
			sr = domain.StepResult{ModelID: step.ModelID, Success: false, Attempts: 0, Error: "Circuit breaker is open"}
		} else {
			sr = e.executeStepWithRetry(ctx, step, req, cb)
		}
		result.StepResults = append(result.StepResults, sr)
		outcomes = append(outcomes, stepOutcome{modelID: step.ModelID, success: sr.Success, attempts: sr.Attempts, latencyMs: sr.LatencyMs})

		if sr.Success {
			result.Success = true
			result.Response = sr.Response
			break
		}

		switch step.FallbackBehavior {
		case domain.FallbackContinue:
			continue
		case domain.FallbackStop:
			result.Success = false
			result.Error = sr.Error
			goto done
		case domain.FallbackSkip:
			result.Success = false
			goto done
		default:
			result.Success = false
			result.Error = fmt.Sprintf("unrecognized fallback_behavior for step %s", step.ModelID)
			goto done
		}
	}

done:
	result.TotalLatencyMs = time.Since(start).Milliseconds()
	e.metrics.RecordExecution(result.Success, outcomes)
	span.SetAttribute("success", result.Success)
	return result, nil
}

func (e *Executor) executeStepWithRetry(ctx context.Context, step domain.ChainStep, req domain.ChatRequest, cb *CircuitBreaker) domain.StepResult {
	maxAttempts := step.Retry.MaxRetries + 1
	stepStart := time.Now()
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := step.Retry.DelayForAttempt(attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				cb.RecordFailure()
				return domain.StepResult{
					ModelID: step.ModelID, Success: false, Attempts: attempt,
					LatencyMs: time.Since(stepStart).Milliseconds(), Error: ctx.Err().Error(),
				}
			}
		}

		resp, err := e.invokeOnce(ctx, step, req)
		if err == nil {
			cb.RecordSuccess()
			return domain.StepResult{
				ModelID: step.ModelID, Success: true, Attempts: attempt + 1,
				LatencyMs: time.Since(stepStart).Milliseconds(), Response: resp,
			}
		}
		lastErr = err
	}

	cb.RecordFailure()
	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return domain.StepResult{
		ModelID: step.ModelID, Success: false, Attempts: maxAttempts,
		LatencyMs: time.Since(stepStart).Milliseconds(), Error: errMsg,
	}
}

func (e *Executor) invokeOnce(ctx context.Context, step domain.ChainStep, req domain.ChatRequest) (*domain.LlmResponse, error) {
	p, providerModel, err := e.resolver.Resolve(ctx, step.ModelID)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	cancel := func() {}
	if step.MaxLatencyMs > 0 {
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(step.MaxLatencyMs)*time.Millisecond)
	}
	defer cancel()

	resp, err := p.Chat(callCtx, providerModel, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, domain.NewProviderError("chain.execute_step", p.ProviderName(),
				fmt.Sprintf("timed out after %dms", step.MaxLatencyMs), err)
		}
		return nil, err
	}
	return resp, nil
}
