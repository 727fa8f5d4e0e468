package webhook

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

const redisRetrySetKey = "gateway:webhook:pending_retries"

// RedisRetryQueue backs the pending-retry queue with a Redis sorted set
// keyed by next-attempt time, polled by RetryWorker, grounded on the
// teacher's core/redis_client.go / core/redis_registry.go use of
// go-redis/v8 as the discovery/registry backing store.
type RedisRetryQueue struct {
	client *redis.Client
	logger logging.Logger
}

func NewRedisRetryQueue(client *redis.Client, logger logging.Logger) *RedisRetryQueue {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &RedisRetryQueue{client: client, logger: logger.WithComponent("webhook.redis_retry_queue")}
}

func (q *RedisRetryQueue) Schedule(ctx context.Context, delivery *domain.WebhookDelivery, at time.Time) {
	payload, err := json.Marshal(delivery)
	if err != nil {
		q.logger.Error("failed to marshal delivery for retry queue", map[string]interface{}{"error": err.Error()})
		return
	}
	err = q.client.ZAdd(ctx, redisRetrySetKey, &redis.Z{
		Score:  float64(at.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		q.logger.Warn("failed to schedule webhook retry", map[string]interface{}{"delivery_id": delivery.ID, "error": err.Error()})
	}
}

// DueDeliveries returns every delivery whose scheduled time is at or
// before `before`, polled periodically by the retry worker.
func (q *RedisRetryQueue) DueDeliveries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error) {
	members, err := q.client.ZRangeByScore(ctx, redisRetrySetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, domain.NewStorageError("webhook.due_deliveries", err)
	}
	out := make([]*domain.WebhookDelivery, 0, len(members))
	for _, m := range members {
		var d domain.WebhookDelivery
		if err := json.Unmarshal([]byte(m), &d); err != nil {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

func (q *RedisRetryQueue) Remove(ctx context.Context, deliveryID string) {
	members, err := q.client.ZRange(ctx, redisRetrySetKey, 0, -1).Result()
	if err != nil {
		return
	}
	for _, m := range members {
		var d domain.WebhookDelivery
		if json.Unmarshal([]byte(m), &d) == nil && d.ID == deliveryID {
			q.client.ZRem(ctx, redisRetrySetKey, m)
			return
		}
	}
}
