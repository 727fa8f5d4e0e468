package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

func TestSweeperSweepOnceResetsElapsedPeriodsOnly(t *testing.T) {
	store := &fakeStore{budgets: []*domain.Budget{
		{ID: "elapsed", Enabled: true, Period: domain.PeriodDaily, PeriodStartTs: 0, CurrentUsageMicros: 50},
		{ID: "fresh", Enabled: true, Period: domain.PeriodDaily, PeriodStartTs: 0, CurrentUsageMicros: 50},
	}}
	sweeper := NewSweeper(store, nil)
	sweeper.nowSec = func() int64 { return 86_400 }
	store.budgets[1].PeriodStartTs = 86_399

	sweeper.sweepOnce(context.Background())

	require.Len(t, store.saved, 1, "expected only the elapsed budget to be saved")
	assert.Equal(t, "elapsed", store.saved[0].ID)
	assert.Equal(t, int64(0), store.budgets[0].CurrentUsageMicros, "expected the elapsed budget's usage reset to 0")
	assert.Equal(t, int64(50), store.budgets[1].CurrentUsageMicros, "the non-elapsed budget must be left untouched")
}
