package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

// fakeProvider is a minimal provider.LlmProvider whose Chat either always
// succeeds or always fails, for deterministic chain-executor tests.
type fakeProvider struct {
	name    string
	failing bool
}

func (f *fakeProvider) Chat(ctx context.Context, model string, req domain.ChatRequest) (*domain.LlmResponse, error) {
	if f.failing {
		return nil, errors.New("simulated provider failure")
	}
	return &domain.LlmResponse{Model: model}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, model string, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) ProviderName() string      { return f.name }
func (f *fakeProvider) AvailableModels() []string { return []string{f.name} }

// fakeResolver maps a model id directly to a provider, bypassing the real
// router/registry so chain-executor behavior is testable in isolation.
type fakeResolver struct {
	providers map[string]provider.LlmProvider
}

func (r *fakeResolver) Resolve(ctx context.Context, modelID string) (provider.LlmProvider, string, error) {
	p, ok := r.providers[modelID]
	if !ok {
		return nil, "", domain.NewNotFoundError("resolve", "no such model: "+modelID)
	}
	return p, modelID, nil
}

func noRetry() domain.RetryConfig {
	return domain.RetryConfig{MaxRetries: 0, InitialDelayMs: 0, MaxDelayMs: 0, BackoffMultiplier: 1}
}

func TestExecuteSingleAlwaysSucceedingStep(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"model-1": &fakeProvider{name: "p1"},
	}}
	exec := NewExecutor(resolver, nil, nil)
	c := &domain.Chain{
		ID: "c1", Name: "single", Enabled: true,
		Steps: []domain.ChainStep{{ModelID: "model-1", Retry: noRetry(), FallbackBehavior: domain.FallbackStop}},
	}
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.StepResults, 1)
}

func TestExecuteFallbackSucceedsOnSecondModel(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"model-1": &fakeProvider{name: "p1", failing: true},
		"model-2": &fakeProvider{name: "p2"},
	}}
	exec := NewExecutor(resolver, nil, nil)
	c := &domain.Chain{
		ID: "c1", Name: "fallback", Enabled: true,
		Steps: []domain.ChainStep{
			{ModelID: "model-1", Retry: noRetry(), FallbackBehavior: domain.FallbackContinue},
			{ModelID: "model-2", Retry: noRetry(), FallbackBehavior: domain.FallbackStop},
		},
	}
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.NoError(t, err)
	require.True(t, result.Success, "expected overall success via fallback")
	require.Len(t, result.StepResults, 2)
	assert.False(t, result.StepResults[0].Success, "first step was expected to fail")
	assert.True(t, result.StepResults[1].Success, "second step was expected to succeed")
}

func TestExecuteStopOnFailureHaltsChain(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"model-1": &fakeProvider{name: "p1", failing: true},
		"model-2": &fakeProvider{name: "p2"},
	}}
	exec := NewExecutor(resolver, nil, nil)
	c := &domain.Chain{
		ID: "c1", Name: "stop", Enabled: true,
		Steps: []domain.ChainStep{
			{ModelID: "model-1", Retry: noRetry(), FallbackBehavior: domain.FallbackStop},
			{ModelID: "model-2", Retry: noRetry(), FallbackBehavior: domain.FallbackStop},
		},
	}
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.StepResults, 1, "Stop must halt the chain after the first failure")
}

func TestExecuteCircuitOpensAfterThreshold(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"model-1": &fakeProvider{name: "p1", failing: true},
	}}
	exec := NewExecutor(resolver, nil, nil)
	c := &domain.Chain{
		ID: "c1", Name: "breaker", Enabled: true,
		Steps: []domain.ChainStep{{ModelID: "model-1", Retry: noRetry(), FallbackBehavior: domain.FallbackStop}},
	}
	for i := 0; i < defaultBreakerThreshold; i++ {
		_, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
		require.NoError(t, err)
	}
	require.Equal(t, StateOpen, exec.BreakerState("model-1"))
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Circuit breaker is open", result.StepResults[0].Error)
}

func TestExecuteRejectsDisabledChain(t *testing.T) {
	exec := NewExecutor(&fakeResolver{}, nil, nil)
	c := &domain.Chain{ID: "c1", Name: "disabled", Enabled: false, Steps: []domain.ChainStep{{ModelID: "m1"}}}
	_, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.Error(t, err)
}

// fakeAssigner overrides the first step's model id with a fixed variant,
// recording which chain/request it was asked to assign.
type fakeAssigner struct {
	variant       string
	err           error
	assignmentKey string
}

func (f *fakeAssigner) Assign(ctx context.Context, experimentID, assignmentKey, usageRecordID string) (string, error) {
	f.assignmentKey = assignmentKey
	if f.err != nil {
		return "", f.err
	}
	return f.variant, nil
}

func TestExecuteAppliesExperimentAssignmentToFirstStep(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"variant-model": &fakeProvider{name: "p1"},
	}}
	assigner := &fakeAssigner{variant: "variant-model"}
	exec := NewExecutor(resolver, nil, nil).WithExperiments(assigner)
	c := &domain.Chain{
		ID: "c1", Name: "experiment", Enabled: true, ExperimentID: "exp1",
		Steps: []domain.ChainStep{{ModelID: "default-model", Retry: noRetry(), FallbackBehavior: domain.FallbackStop}},
	}
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{AssignmentKey: "user-7"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "variant-model", result.AssignedModelID)
	assert.Equal(t, "variant-model", result.StepResults[0].ModelID)
	assert.Equal(t, "user-7", assigner.assignmentKey)
}

func TestExecuteFallsBackToDeclaredStepsWhenAssignmentFails(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]provider.LlmProvider{
		"default-model": &fakeProvider{name: "p1"},
	}}
	assigner := &fakeAssigner{err: errors.New("experiment not found")}
	exec := NewExecutor(resolver, nil, nil).WithExperiments(assigner)
	c := &domain.Chain{
		ID: "c1", Name: "experiment", Enabled: true, ExperimentID: "exp1",
		Steps: []domain.ChainStep{{ModelID: "default-model", Retry: noRetry(), FallbackBehavior: domain.FallbackStop}},
	}
	result, err := exec.Execute(context.Background(), c, domain.ChatRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success, "expected the chain to still run its declared steps when assignment fails")
	assert.Empty(t, result.AssignedModelID)
	assert.Equal(t, "default-model", result.StepResults[0].ModelID)
}
