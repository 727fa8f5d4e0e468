package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

type fakeStore struct {
	budgets []*domain.Budget
	failing bool
	saved   []*domain.Budget
}

func (s *fakeStore) ListEnabled(ctx context.Context) ([]*domain.Budget, error) {
	if s.failing {
		return nil, errors.New("storage unavailable")
	}
	return s.budgets, nil
}

func (s *fakeStore) Save(ctx context.Context, b *domain.Budget) error {
	s.saved = append(s.saved, b)
	return nil
}

type fakeUsageStore struct{ saved []*domain.UsageRecord }

func (s *fakeUsageStore) Save(ctx context.Context, record *domain.UsageRecord) error {
	s.saved = append(s.saved, record)
	return nil
}

type fakeNotifier struct{ alerts []AlertNotification }

func (n *fakeNotifier) Notify(ctx context.Context, alert AlertNotification) {
	n.alerts = append(n.alerts, alert)
}

func TestCheckBudgetAllowsAtZeroEstimatedCost(t *testing.T) {
	store := &fakeStore{budgets: []*domain.Budget{{ID: "b1", Enabled: true, HardLimitMicros: 100, CurrentUsageMicros: 100}}}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	res, err := svc.CheckBudget(context.Background(), "key", "team", "model", 0)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a zero-cost request must never be blocked even at the hard limit")
}

func TestCheckBudgetBlocksAtHardLimit(t *testing.T) {
	store := &fakeStore{budgets: []*domain.Budget{{ID: "b1", Enabled: true, HardLimitMicros: 100, CurrentUsageMicros: 90}}}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	res, err := svc.CheckBudget(context.Background(), "key", "team", "model", 20)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "expected the request to be blocked for breaching the hard limit")
	assert.Equal(t, []string{"b1"}, res.ExceededIDs)
}

func TestCheckBudgetWarnsAtSoftLimit(t *testing.T) {
	soft := int64(50)
	store := &fakeStore{budgets: []*domain.Budget{{ID: "b1", Enabled: true, HardLimitMicros: 100, SoftLimitMicros: &soft, CurrentUsageMicros: 40}}}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	res, err := svc.CheckBudget(context.Background(), "key", "team", "model", 20)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "soft limit breach alone must not block the request")
	assert.Equal(t, []string{"b1"}, res.WarningIDs)
}

func TestCheckBudgetFailsOpenOnStorageError(t *testing.T) {
	store := &fakeStore{failing: true}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	res, err := svc.CheckBudget(context.Background(), "key", "team", "model", 1_000_000)
	require.NoError(t, err, "storage errors must not propagate")
	assert.True(t, res.Allowed, "expected fail-open admission on a storage error")
}

func TestCheckBudgetIgnoresNonApplyingBudgets(t *testing.T) {
	store := &fakeStore{budgets: []*domain.Budget{{
		ID: "b1", Enabled: true, HardLimitMicros: 100, CurrentUsageMicros: 100,
		Scopes: domain.BudgetScopes{TeamIDs: []string{"other-team"}},
	}}}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	res, err := svc.CheckBudget(context.Background(), "key", "team", "model", 50)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a budget scoped to a different team must not apply")
}

func TestRecordUsageAddsCostAndFiresAlertOnThresholdCross(t *testing.T) {
	store := &fakeStore{budgets: []*domain.Budget{{
		ID: "b1", Enabled: true, HardLimitMicros: 100, CurrentUsageMicros: 70,
		Alerts: []domain.AlertThreshold{AlertThresholdFor(80)},
	}}}
	notifier := &fakeNotifier{}
	svc := NewService(store, domain.PricingTable{}, notifier, nil)
	_, err := svc.RecordUsage(context.Background(), "key", "team", "model", 10, 10, 20, 5, true, "")
	require.NoError(t, err)
	assert.Equal(t, int64(90), store.budgets[0].CurrentUsageMicros)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, 80.0, notifier.alerts[0].ThresholdPercent)
	assert.True(t, store.budgets[0].Alerts[0].Triggered, "expected the alert to be marked Triggered")
}

func TestRecordUsageDoesNotRefireAlreadyTriggeredAlert(t *testing.T) {
	alert := AlertThresholdFor(80)
	alert.Triggered = true
	store := &fakeStore{budgets: []*domain.Budget{{
		ID: "b1", Enabled: true, HardLimitMicros: 100, CurrentUsageMicros: 85,
		Alerts: []domain.AlertThreshold{alert},
	}}}
	notifier := &fakeNotifier{}
	svc := NewService(store, domain.PricingTable{}, notifier, nil)
	_, err := svc.RecordUsage(context.Background(), "key", "team", "model", 1, 1, 5, 1, true, "")
	require.NoError(t, err)
	assert.Empty(t, notifier.alerts, "expected no re-fire of an already-triggered alert")
}

func TestRecordUsageFailsOpenOnStorageError(t *testing.T) {
	store := &fakeStore{failing: true}
	svc := NewService(store, domain.PricingTable{}, nil, nil)
	_, err := svc.RecordUsage(context.Background(), "key", "team", "model", 10, 10, 100, 5, true, "")
	assert.NoError(t, err, "storage errors during accounting must not propagate")
}

func TestRecordUsagePersistsUsageRecordWhenConfigured(t *testing.T) {
	store := &fakeStore{}
	usage := &fakeUsageStore{}
	svc := NewService(store, domain.PricingTable{}, nil, nil).WithUsageRecording(usage, func() string { return "usage-1" })
	record, err := svc.RecordUsage(context.Background(), "key", "team", "model", 10, 20, 150, 42, true, "")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "usage-1", record.ID)
	assert.Equal(t, int64(150), record.CostMicros)
	assert.Equal(t, int64(42), record.LatencyMs)
	assert.True(t, record.Success)
	require.Len(t, usage.saved, 1)
	assert.Same(t, record, usage.saved[0])
}

func TestRecordUsageSkipsPersistenceWithoutUsageStore(t *testing.T) {
	svc := NewService(&fakeStore{}, domain.PricingTable{}, nil, nil)
	record, err := svc.RecordUsage(context.Background(), "key", "team", "model", 10, 20, 150, 42, true, "")
	require.NoError(t, err)
	assert.Nil(t, record, "expected no UsageRecord without WithUsageRecording")
}

func TestEstimateCostMicrosUsesPricingTable(t *testing.T) {
	table := domain.PricingTable{"m1": {InputRateMicros: 5, OutputRateMicros: 10}}
	svc := NewService(&fakeStore{}, table, nil, nil)
	assert.Equal(t, int64(150), svc.EstimateCostMicros("m1", 10, 10))
	assert.Equal(t, int64(0), svc.EstimateCostMicros("unknown", 10, 10), "expected 0 for unknown model")
}

// AlertThresholdFor is a small test helper returning a fresh, un-triggered
// alert at the given percent.
func AlertThresholdFor(pct float64) domain.AlertThreshold {
	return domain.AlertThreshold{ThresholdPercent: pct}
}
