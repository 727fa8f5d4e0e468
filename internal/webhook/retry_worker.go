package webhook

import (
	"context"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// RetryWorker polls RetryQueue.DueDeliveries at a steady cadence and
// redrives each due delivery through the dispatcher's transport,
// realizing spec.md §9's "poll find_pending_retries periodically" note.
type RetryWorker struct {
	queue      RetryQueue
	subs       SubscriptionStore
	deliveries DeliveryStore
	transport  Transport
	logger     logging.Logger
}

func NewRetryWorker(queue RetryQueue, subs SubscriptionStore, deliveries DeliveryStore, transport Transport, logger logging.Logger) *RetryWorker {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if transport == nil {
		transport = NewHTTPTransport(10 * time.Second)
	}
	return &RetryWorker{queue: queue, subs: subs, deliveries: deliveries, transport: transport, logger: logger.WithComponent("webhook.retry_worker")}
}

// Run blocks until ctx is cancelled, polling for due retries every
// interval.
func (w *RetryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *RetryWorker) pollOnce(ctx context.Context) {
	due, err := w.queue.DueDeliveries(ctx, time.Now())
	if err != nil {
		w.logger.Warn("failed to list due webhook retries", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, d := range due {
		w.redrive(ctx, d)
	}
}

func (w *RetryWorker) redrive(ctx context.Context, d *domain.WebhookDelivery) {
	subs, err := w.subs.ListEnabled(ctx)
	if err != nil {
		return
	}
	var sub *domain.WebhookSubscription
	for _, s := range subs {
		if s.ID == d.SubscriptionID {
			sub = s
			break
		}
	}
	if sub == nil || !sub.Enabled {
		w.queue.Remove(ctx, d.ID)
		return
	}

	headers := map[string]string{
		"Content-Type":          "application/json",
		"X-Webhook-Event":       d.EventKind,
		"X-Webhook-Delivery-Id": d.ID,
	}
	status, err := w.transport.Post(ctx, sub.URL, headers, []byte("{}"))
	d.Attempts++
	if err == nil && status >= 200 && status < 300 {
		d.Status = domain.DeliverySuccess
		w.queue.Remove(ctx, d.ID)
		_ = w.deliveries.Save(ctx, d)
		return
	}

	if d.Attempts > sub.MaxRetries {
		d.Status = domain.DeliveryFailed
		w.queue.Remove(ctx, d.ID)
		_ = w.deliveries.Save(ctx, d)
		return
	}
	d.NextAttemptAt = time.Now().Add(time.Duration(sub.RetryDelaySecs) * time.Second)
	_ = w.deliveries.Save(ctx, d)
	w.queue.Schedule(ctx, d, d.NextAttemptAt)
}
