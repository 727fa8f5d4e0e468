package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

type fakeSubStore struct {
	subs  []*domain.WebhookSubscription
	saved []*domain.WebhookSubscription
}

func (s *fakeSubStore) ListEnabled(ctx context.Context) ([]*domain.WebhookSubscription, error) {
	var out []*domain.WebhookSubscription
	for _, sub := range s.subs {
		if sub.Enabled {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeSubStore) Save(ctx context.Context, sub *domain.WebhookSubscription) error {
	s.saved = append(s.saved, sub)
	return nil
}

type fakeDeliveryStore struct{ saved []*domain.WebhookDelivery }

func (s *fakeDeliveryStore) Save(ctx context.Context, d *domain.WebhookDelivery) error {
	s.saved = append(s.saved, d)
	return nil
}

func (s *fakeDeliveryStore) FindPendingRetries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error) {
	return nil, nil
}

type fakeTransport struct {
	statusCode int
	err        error
	lastURL    string
	lastBody   []byte
	lastHdrs   map[string]string
}

func (t *fakeTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	t.lastURL, t.lastBody, t.lastHdrs = url, body, headers
	return t.statusCode, t.err
}

func newTestDispatcher(subs *fakeSubStore, deliveries *fakeDeliveryStore, transport Transport) (*Dispatcher, *MemoryRetryQueue) {
	queue := NewMemoryRetryQueue()
	ids := 0
	d := NewDispatcher(subs, deliveries, queue, transport, func() string {
		ids++
		return "delivery-id"
	}, nil)
	return d, queue
}

func TestSendEventSignsPayloadWithHMACWhenSecretSet(t *testing.T) {
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{{ID: "s1", URL: "https://example.com/hook", Secret: "shh", Events: []string{"usage.recorded"}, Enabled: true}}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 200}
	d, _ := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded", Payload: map[string]string{"a": "b"}})

	sig, ok := transport.lastHdrs["X-Webhook-Signature"]
	require.True(t, ok, "expected an X-Webhook-Signature header")
	want := "sha256=" + signHMAC("shh", transport.lastBody)
	assert.Equal(t, want, sig)
}

func TestSendEventSkipsSubscriptionsNotWantingTheEvent(t *testing.T) {
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{{ID: "s1", URL: "https://example.com/hook", Events: []string{"other.event"}, Enabled: true}}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 200}
	d, _ := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded"})

	assert.Empty(t, deliveries.saved, "expected no delivery attempted for a non-matching event")
}

func TestSendEventMarksSuccessOn2xx(t *testing.T) {
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{{ID: "s1", URL: "https://example.com/hook", Events: []string{"usage.recorded"}, Enabled: true}}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 204}
	d, _ := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded"})

	require.Len(t, deliveries.saved, 1, "expected one delivery recorded")
	assert.Equal(t, domain.DeliverySuccess, deliveries.saved[0].Status)
}

func TestSendEventSchedulesRetryOnFailureWithinMaxRetries(t *testing.T) {
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{{
		ID: "s1", URL: "https://example.com/hook", Events: []string{"usage.recorded"},
		Enabled: true, MaxRetries: 3, MaxFailures: 10, RetryDelaySecs: 30,
	}}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 500}
	d, queue := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded"})

	require.Len(t, deliveries.saved, 1, "expected one delivery recorded")
	assert.Equal(t, domain.DeliveryFailed, deliveries.saved[0].Status)
	due, err := queue.DueDeliveries(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 1, "expected the failed delivery to be scheduled for retry")
}

func TestSendEventAutoDisablesSubscriptionAfterMaxFailures(t *testing.T) {
	sub := &domain.WebhookSubscription{
		ID: "s1", URL: "https://example.com/hook", Events: []string{"usage.recorded"},
		Enabled: true, MaxRetries: 5, MaxFailures: 1, RetryDelaySecs: 30,
	}
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{sub}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 500}
	d, _ := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded"})

	assert.False(t, sub.Enabled, "expected the subscription to be disabled after crossing max_failures")
	assert.Len(t, subs.saved, 1, "expected the subscription's disabled state to be persisted")
}

func TestSendEventDoesNotScheduleRetryBeyondMaxRetries(t *testing.T) {
	subs := &fakeSubStore{subs: []*domain.WebhookSubscription{{
		ID: "s1", URL: "https://example.com/hook", Events: []string{"usage.recorded"},
		Enabled: true, MaxRetries: 0, MaxFailures: 10, RetryDelaySecs: 30,
	}}}
	deliveries := &fakeDeliveryStore{}
	transport := &fakeTransport{statusCode: 500}
	d, queue := newTestDispatcher(subs, deliveries, transport)

	d.SendEvent(context.Background(), domain.Event{Kind: "usage.recorded"})

	due, err := queue.DueDeliveries(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "expected no retry scheduled when attempts already exceed max_retries")
}
