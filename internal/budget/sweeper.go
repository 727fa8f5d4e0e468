package budget

import (
	"context"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// Sweeper runs reset_expired_periods on a ticker, grounded on the
// teacher's cleanupRoutine goroutine-with-stop-channel pattern
// (orchestration/cache.go), adapted to context cancellation.
type Sweeper struct {
	store  Store
	logger logging.Logger
	nowSec func() int64
}

func NewSweeper(store Store, logger logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Sweeper{store: store, logger: logger.WithComponent("budget.sweeper"), nowSec: func() int64 { return time.Now().Unix() }}
}

// Run blocks until ctx is cancelled, resetting expired budget periods
// every interval.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	budgets, err := s.store.ListEnabled(ctx)
	if err != nil {
		s.logger.Warn("sweeper failed to list budgets", map[string]interface{}{"error": err.Error()})
		return
	}
	now := s.nowSec()
	for _, b := range budgets {
		if !b.PeriodElapsed(now) {
			continue
		}
		b.ResetPeriod()
		if err := s.store.Save(ctx, b); err != nil {
			s.logger.Warn("sweeper failed to persist reset budget", map[string]interface{}{"budget_id": b.ID, "error": err.Error()})
			continue
		}
		s.logger.Info("budget period reset", map[string]interface{}{"budget_id": b.ID})
	}
}
