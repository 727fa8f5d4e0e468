package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// RetryQueue is the pending-retry job queue the retry worker polls,
// realizing spec.md §9's "channel of delivery jobs feeding a worker pool"
// suggestion as a sorted-set-by-next-attempt-time structure.
type RetryQueue interface {
	Schedule(ctx context.Context, delivery *domain.WebhookDelivery, at time.Time)
	DueDeliveries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error)
	Remove(ctx context.Context, deliveryID string)
}

// MemoryRetryQueue is a map+mutex RetryQueue, used for tests and
// storage.backend=memory deployments.
type MemoryRetryQueue struct {
	mu    sync.Mutex
	items map[string]retryItem
}

type retryItem struct {
	delivery *domain.WebhookDelivery
	at       time.Time
}

func NewMemoryRetryQueue() *MemoryRetryQueue {
	return &MemoryRetryQueue{items: make(map[string]retryItem)}
}

func (q *MemoryRetryQueue) Schedule(ctx context.Context, delivery *domain.WebhookDelivery, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[delivery.ID] = retryItem{delivery: delivery, at: at}
}

func (q *MemoryRetryQueue) DueDeliveries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*domain.WebhookDelivery
	for _, item := range q.items {
		if !item.at.After(before) {
			out = append(out, item.delivery)
		}
	}
	return out, nil
}

func (q *MemoryRetryQueue) Remove(ctx context.Context, deliveryID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, deliveryID)
}
