package semanticcache

import (
	"context"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// RunCleanupLoop runs CleanupExpired on a ticker until ctx is cancelled,
// matching the teacher's cleanupRoutine goroutine-with-stop-channel
// pattern (orchestration/cache.go), adapted to context cancellation.
func RunCleanupLoop(ctx context.Context, c *Cache, interval time.Duration, logger logging.Logger) {
	if logger == nil {
		logger = logging.NoOp{}
	}
	logger = logger.WithComponent("semanticcache.sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.CleanupExpired()
			if n > 0 {
				logger.Debug("expired cache entries purged", map[string]interface{}{"count": n})
			}
		}
	}
}
