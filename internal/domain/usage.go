package domain

import "time"

// UsageRecord is an immutable fact describing one completion's outcome.
type UsageRecord struct {
	ID          string    `json:"id"`
	UsageType   string    `json:"usage_type"`
	APIKeyID    string    `json:"api_key_id"`
	ModelID     string    `json:"model_id,omitempty"`
	InputTokens int       `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	CostMicros  int64     `json:"cost_micros"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Pricing is the per-token rate for one model, in micro-dollars per token.
type Pricing struct {
	InputRateMicros  int64 `json:"input_rate_micros"`
	OutputRateMicros int64 `json:"output_rate_micros"`
}

// PricingTable maps a model id to its Pricing. Unknown models cost zero,
// per spec.md §4.5 — a non-fatal condition the caller may log.
type PricingTable map[string]Pricing

// CostMicros computes cost_micros = input_tokens*input_rate +
// output_tokens*output_rate for modelID, or zero if modelID is unpriced.
func (t PricingTable) CostMicros(modelID string, inputTokens, outputTokens int) int64 {
	p, ok := t[modelID]
	if !ok {
		return 0
	}
	return int64(inputTokens)*p.InputRateMicros + int64(outputTokens)*p.OutputRateMicros
}
