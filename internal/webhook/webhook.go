// Package webhook implements the Webhook Dispatcher: event fan-out with
// HMAC signing and retry. A producing request never blocks on delivery
// (spec.md §7) — SendEvent only enqueues delivery rows and returns.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// SubscriptionStore is the narrow repository surface the dispatcher needs.
type SubscriptionStore interface {
	ListEnabled(ctx context.Context) ([]*domain.WebhookSubscription, error)
	Save(ctx context.Context, s *domain.WebhookSubscription) error
}

// DeliveryStore persists WebhookDelivery rows.
type DeliveryStore interface {
	Save(ctx context.Context, d *domain.WebhookDelivery) error
	FindPendingRetries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error)
}

// Transport is the swappable collaborator that performs the actual POST,
// so fan-out logic is testable without real network calls.
type Transport interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (statusCode int, err error)
}

// HTTPTransport is the default Transport: stdlib net/http with a bounded
// client timeout.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Dispatcher fans events out to every active subscription whose event set
// contains the event's kind.
type Dispatcher struct {
	subs      SubscriptionStore
	deliveries DeliveryStore
	queue     RetryQueue
	transport Transport
	idFactory func() string
	logger    logging.Logger
	nowFn     func() time.Time
}

func NewDispatcher(subs SubscriptionStore, deliveries DeliveryStore, queue RetryQueue, transport Transport, idFactory func() string, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if transport == nil {
		transport = NewHTTPTransport(10 * time.Second)
	}
	return &Dispatcher{
		subs: subs, deliveries: deliveries, queue: queue, transport: transport,
		idFactory: idFactory, logger: logger.WithComponent("webhook.dispatcher"), nowFn: time.Now,
	}
}

// SendEvent fans event out to every matching active subscription. Per
// subscription it attempts one POST, then saves the delivery row as Success
// or Failed; a failed delivery is queued for retry while its attempts do
// not exceed the subscription's MaxRetries. It never returns an error
// that would block the producing request.
func (d *Dispatcher) SendEvent(ctx context.Context, event domain.Event) {
	subs, err := d.subs.ListEnabled(ctx)
	if err != nil {
		d.logger.Warn("failed to list webhook subscriptions", map[string]interface{}{"error": err.Error()})
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, sub := range subs {
		if !sub.WantsEvent(event.Kind) {
			continue
		}
		d.deliverOnce(ctx, sub, event.Kind, payload)
	}
}

func (d *Dispatcher) deliverOnce(ctx context.Context, sub *domain.WebhookSubscription, eventKind string, payload []byte) {
	delivery := &domain.WebhookDelivery{
		ID: d.idFactory(), SubscriptionID: sub.ID, EventKind: eventKind,
		Status: domain.DeliveryPending, Attempts: 1, CreatedAt: d.nowFn(),
	}

	headers := map[string]string{
		"Content-Type":             "application/json",
		"X-Webhook-Event":          eventKind,
		"X-Webhook-Delivery-Id":    delivery.ID,
	}
	if sub.Secret != "" {
		headers["X-Webhook-Signature"] = "sha256=" + signHMAC(sub.Secret, payload)
	}

	status, err := d.transport.Post(ctx, sub.URL, headers, payload)
	if err == nil && status >= 200 && status < 300 {
		delivery.Status = domain.DeliverySuccess
		d.persistDelivery(ctx, delivery)
		return
	}

	errMsg := fmt.Sprintf("http status %d", status)
	if err != nil {
		errMsg = err.Error()
	}
	delivery.Status = domain.DeliveryFailed
	delivery.LastError = errMsg
	delivery.NextAttemptAt = d.nowFn().Add(time.Duration(sub.RetryDelaySecs) * time.Second)
	d.persistDelivery(ctx, delivery)

	sub.FailureCount++
	if sub.MaxFailures > 0 && sub.FailureCount >= sub.MaxFailures {
		sub.Enabled = false
		d.logger.Warn("webhook subscription disabled after repeated failures", map[string]interface{}{"subscription_id": sub.ID})
	}
	if err := d.subs.Save(ctx, sub); err != nil {
		d.logger.Warn("failed to persist subscription failure count", map[string]interface{}{"subscription_id": sub.ID, "error": err.Error()})
	}

	if delivery.Attempts <= sub.MaxRetries {
		d.queue.Schedule(ctx, delivery, delivery.NextAttemptAt)
	}
}

func (d *Dispatcher) persistDelivery(ctx context.Context, delivery *domain.WebhookDelivery) {
	if err := d.deliveries.Save(ctx, delivery); err != nil {
		d.logger.Warn("failed to persist webhook delivery", map[string]interface{}{"delivery_id": delivery.ID, "error": err.Error()})
	}
}

func signHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
