package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetAppliesEmptyScopeMatchesEverything(t *testing.T) {
	b := &Budget{ID: "b1", Name: "n", Period: PeriodDaily, HardLimitMicros: 100}
	assert.True(t, b.Applies("any-key", "any-team", "any-model"))
}

func TestBudgetAppliesScopesAreAnded(t *testing.T) {
	b := &Budget{
		ID: "b1", Name: "n", Period: PeriodDaily, HardLimitMicros: 100,
		Scopes: BudgetScopes{TeamIDs: []string{"team-a"}, ModelIDs: []string{"model-x"}},
	}
	assert.False(t, b.Applies("key", "team-b", "model-x"), "team mismatch should not apply")
	assert.False(t, b.Applies("key", "team-a", "model-y"), "model mismatch should not apply")
	assert.True(t, b.Applies("key", "team-a", "model-x"), "matching all scopes should apply")
}

func TestBudgetPeriodElapsedFixedSeconds(t *testing.T) {
	b := &Budget{ID: "b1", Name: "n", Period: PeriodDaily, HardLimitMicros: 100, PeriodStartTs: 1000}
	assert.False(t, b.PeriodElapsed(1000+86_400-1), "should not have elapsed one second early")
	assert.True(t, b.PeriodElapsed(1000+86_400), "should have elapsed exactly at the boundary")
}

func TestBudgetLifetimeNeverElapses(t *testing.T) {
	b := &Budget{ID: "b1", Name: "n", Period: PeriodLifetime, HardLimitMicros: 100}
	assert.False(t, b.PeriodElapsed(1<<40))
}

func TestBudgetResetPeriodClearsUsageAndAlerts(t *testing.T) {
	b := &Budget{
		ID: "b1", Name: "n", Period: PeriodWeekly, HardLimitMicros: 100,
		PeriodStartTs: 0, CurrentUsageMicros: 50,
		Alerts: []AlertThreshold{{ThresholdPercent: 0.8, Triggered: true}},
	}
	b.ResetPeriod()
	assert.Equal(t, int64(0), b.CurrentUsageMicros)
	assert.False(t, b.Alerts[0].Triggered)
	assert.Equal(t, int64(604_800), b.PeriodStartTs)
}

func TestBudgetValidateRejectsSoftLimitAboveHard(t *testing.T) {
	soft := int64(200)
	b := &Budget{ID: "b1", Name: "n", Period: PeriodDaily, HardLimitMicros: 100, SoftLimitMicros: &soft}
	require.Error(t, b.Validate())
}
