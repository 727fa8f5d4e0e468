package domain

import "time"

// DeliveryStatus is the closed sum of a webhook delivery attempt's state.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "Pending"
	DeliverySuccess DeliveryStatus = "Success"
	DeliveryFailed  DeliveryStatus = "Failed"
)

// WebhookSubscription is one registered event subscriber.
type WebhookSubscription struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Secret          string    `json:"secret,omitempty"`
	Events          []string  `json:"events"`
	Enabled         bool      `json:"enabled"`
	RetryDelaySecs  int64     `json:"retry_delay_secs"`
	MaxRetries      int       `json:"max_retries"`
	MaxFailures     int       `json:"max_failures"`
	FailureCount    int       `json:"failure_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func (w *WebhookSubscription) Validate() error {
	if err := ValidateID("webhook", w.ID); err != nil {
		return err
	}
	if w.URL == "" {
		return NewValidationError("webhook.validate", "url must not be empty")
	}
	return nil
}

// WantsEvent reports whether the subscription's event set contains kind.
func (w *WebhookSubscription) WantsEvent(kind string) bool {
	for _, e := range w.Events {
		if e == kind {
			return true
		}
	}
	return false
}

// Event is one fan-out-worthy occurrence in the gateway.
type Event struct {
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebhookDelivery is a persistent attempt to POST an Event to a
// subscription's URL.
type WebhookDelivery struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	EventKind      string         `json:"event_kind"`
	Status         DeliveryStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	NextAttemptAt  time.Time      `json:"next_attempt_at"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
