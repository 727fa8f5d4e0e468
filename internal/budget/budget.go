// Package budget implements the Budget & Usage Subsystem: admission
// gating before a completion and cost accounting after one, with
// alert-threshold crossing detection and period resets.
package budget

import (
	"context"
	"sync"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// Store is the narrow read/write surface the admission and accounting
// paths need from the budget repository.
type Store interface {
	ListEnabled(ctx context.Context) ([]*domain.Budget, error)
	Save(ctx context.Context, b *domain.Budget) error
}

// UsageStore persists the immutable UsageRecord RecordUsage produces.
// Optional: a Service with no UsageStore still accounts against budgets,
// it just doesn't retain the per-request fact.
type UsageStore interface {
	Save(ctx context.Context, record *domain.UsageRecord) error
}

// AdmissionResult is the outcome of a budget admission check.
type AdmissionResult struct {
	Allowed     bool
	ExceededIDs []string
	WarningIDs  []string
}

// AlertNotification is emitted when a budget crosses an alert threshold.
type AlertNotification struct {
	BudgetID         string
	ThresholdPercent float64
}

// Notifier receives alert notifications; the caller decides how to fan
// them out (e.g. through internal/webhook).
type Notifier interface {
	Notify(ctx context.Context, alert AlertNotification)
}

// Service implements check_budget_with_team and record_usage_with_team.
type Service struct {
	mu        sync.Mutex
	store     Store
	usage     UsageStore
	idFactory func() string
	pricing   domain.PricingTable
	notifier  Notifier
	logger    logging.Logger
	nowSec    func() int64
}

func NewService(store Store, pricing domain.PricingTable, notifier Notifier, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if notifier == nil {
		notifier = noOpNotifier{}
	}
	return &Service{
		store:    store,
		pricing:  pricing,
		notifier: notifier,
		logger:   logger.WithComponent("budget.service"),
		nowSec:   func() int64 { return time.Now().Unix() },
	}
}

// WithUsageRecording enables persistence of a UsageRecord alongside every
// RecordUsage call. Without it, RecordUsage still accounts against
// budgets but does not retain the per-request fact.
func (s *Service) WithUsageRecording(store UsageStore, idFactory func() string) *Service {
	s.usage = store
	s.idFactory = idFactory
	return s
}

// CheckBudget gates a request before a provider is invoked. A request is
// allowed=false iff any applicable budget's current_usage + estimated
// would breach its hard limit (spec.md §4.5).
func (s *Service) CheckBudget(ctx context.Context, apiKeyID, teamID, modelID string, estimatedCostMicros int64) (AdmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.store.ListEnabled(ctx)
	if err != nil {
		// Fail open on transient storage errors: accounting may be
		// incomplete, but the request proceeds (spec.md §7).
		s.logger.Warn("budget admission storage error, failing open", map[string]interface{}{"error": err.Error()})
		return AdmissionResult{Allowed: true}, nil
	}

	res := AdmissionResult{Allowed: true}
	for _, b := range budgets {
		if !b.Applies(apiKeyID, teamID, modelID) {
			continue
		}
		if b.CurrentUsageMicros+estimatedCostMicros > b.HardLimitMicros {
			res.Allowed = false
			res.ExceededIDs = append(res.ExceededIDs, b.ID)
			continue
		}
		if b.SoftLimitMicros != nil && b.CurrentUsageMicros+estimatedCostMicros > *b.SoftLimitMicros {
			res.WarningIDs = append(res.WarningIDs, b.ID)
		}
	}
	return res, nil
}

// RecordUsage adds costMicros to every applicable budget, fires alert
// notifications for thresholds crossed by this increment, and — when
// WithUsageRecording has been called — persists an immutable UsageRecord
// describing the completion (spec.md §3's "record usage" data-flow step).
func (s *Service) RecordUsage(ctx context.Context, apiKeyID, teamID, modelID string, inputTokens, outputTokens int, costMicros, latencyMs int64, success bool, usageErr string) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.store.ListEnabled(ctx)
	if err != nil {
		s.logger.Warn("usage accounting storage error, failing open", map[string]interface{}{"error": err.Error()})
		budgets = nil
	}

	for _, b := range budgets {
		if !b.Applies(apiKeyID, teamID, modelID) {
			continue
		}
		before := b.CurrentUsageMicros
		b.CurrentUsageMicros += costMicros
		for i := range b.Alerts {
			pct := b.Alerts[i].ThresholdPercent
			thresholdMicros := int64(pct / 100.0 * float64(b.HardLimitMicros))
			crossed := before < thresholdMicros && b.CurrentUsageMicros >= thresholdMicros
			if crossed && !b.Alerts[i].Triggered {
				b.Alerts[i].Triggered = true
				s.notifier.Notify(ctx, AlertNotification{BudgetID: b.ID, ThresholdPercent: pct})
			}
		}
		if err := s.store.Save(ctx, b); err != nil {
			s.logger.Warn("failed to persist budget after usage record", map[string]interface{}{"budget_id": b.ID, "error": err.Error()})
		}
	}

	if s.usage == nil {
		return nil, nil
	}
	record := &domain.UsageRecord{
		UsageType:    "chat_completion",
		APIKeyID:     apiKeyID,
		ModelID:      modelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostMicros:   costMicros,
		LatencyMs:    latencyMs,
		Timestamp:    time.Unix(s.nowSec(), 0).UTC(),
		Success:      success,
		Error:        usageErr,
	}
	if s.idFactory != nil {
		record.ID = s.idFactory()
	}
	if err := s.usage.Save(ctx, record); err != nil {
		s.logger.Warn("failed to persist usage record", map[string]interface{}{"api_key_id": apiKeyID, "error": err.Error()})
		return record, err
	}
	return record, nil
}

// EstimateCostMicros is the cost function of spec.md §4.5; unknown models
// cost zero.
func (s *Service) EstimateCostMicros(modelID string, inputTokens, outputTokens int) int64 {
	return s.pricing.CostMicros(modelID, inputTokens, outputTokens)
}

type noOpNotifier struct{}

func (noOpNotifier) Notify(context.Context, AlertNotification) {}
