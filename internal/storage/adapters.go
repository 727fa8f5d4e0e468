package storage

import (
	"context"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// The adapters below narrow a generic Repository[T] down to the small,
// named read/write surfaces internal/provider, internal/budget, and
// internal/webhook declare for themselves (spec.md §9's "interfaces over
// concrete types") — each package only needs a sliver of full CRUD, and
// stays ignorant of how the sliver is actually stored.

// ModelRepository adapts Repository[*domain.Model] to provider.ModelStore.
type ModelRepository struct{ Repo Repository[*domain.Model] }

func (r ModelRepository) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	return r.Repo.Get(ctx, id)
}

// CredentialRepository adapts Repository[*domain.Credential] to
// provider.CredentialStore.
type CredentialRepository struct{ Repo Repository[*domain.Credential] }

func (r CredentialRepository) GetCredential(ctx context.Context, id string) (*domain.Credential, error) {
	return r.Repo.Get(ctx, id)
}

// BudgetRepository adapts Repository[*domain.Budget] to budget.Store.
type BudgetRepository struct{ Repo Repository[*domain.Budget] }

func (r BudgetRepository) ListEnabled(ctx context.Context) ([]*domain.Budget, error) {
	all, err := r.Repo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Budget, 0, len(all))
	for _, b := range all {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r BudgetRepository) Save(ctx context.Context, b *domain.Budget) error {
	return r.Repo.Save(ctx, b)
}

// PromptRepository adapts Repository[*domain.Prompt] to workflow.PromptStore.
type PromptRepository struct{ Repo Repository[*domain.Prompt] }

func (r PromptRepository) GetPrompt(ctx context.Context, id string) (*domain.Prompt, error) {
	return r.Repo.Get(ctx, id)
}

// ExperimentRepository adapts Repository[*domain.Experiment] to
// experiment.Store.
type ExperimentRepository struct{ Repo Repository[*domain.Experiment] }

func (r ExperimentRepository) Get(ctx context.Context, key string) (*domain.Experiment, error) {
	return r.Repo.Get(ctx, key)
}

// ExperimentRecordRepository adapts Repository[*domain.ExperimentRecord] to
// experiment.RecordStore.
type ExperimentRecordRepository struct{ Repo Repository[*domain.ExperimentRecord] }

func (r ExperimentRecordRepository) Save(ctx context.Context, record *domain.ExperimentRecord) error {
	return r.Repo.Save(ctx, record)
}

// UsageRecordRepository adapts Repository[*domain.UsageRecord] to
// budget.UsageStore.
type UsageRecordRepository struct{ Repo Repository[*domain.UsageRecord] }

func (r UsageRecordRepository) Save(ctx context.Context, record *domain.UsageRecord) error {
	return r.Repo.Save(ctx, record)
}

// WebhookSubscriptionRepository adapts Repository[*domain.WebhookSubscription]
// to webhook.SubscriptionStore.
type WebhookSubscriptionRepository struct {
	Repo Repository[*domain.WebhookSubscription]
}

func (r WebhookSubscriptionRepository) ListEnabled(ctx context.Context) ([]*domain.WebhookSubscription, error) {
	all, err := r.Repo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WebhookSubscription, 0, len(all))
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r WebhookSubscriptionRepository) Save(ctx context.Context, s *domain.WebhookSubscription) error {
	return r.Repo.Save(ctx, s)
}

// WebhookDeliveryRepository adapts Repository[*domain.WebhookDelivery]
// to webhook.DeliveryStore.
type WebhookDeliveryRepository struct {
	Repo Repository[*domain.WebhookDelivery]
}

func (r WebhookDeliveryRepository) Save(ctx context.Context, d *domain.WebhookDelivery) error {
	return r.Repo.Save(ctx, d)
}

func (r WebhookDeliveryRepository) FindPendingRetries(ctx context.Context, before time.Time) ([]*domain.WebhookDelivery, error) {
	all, err := r.Repo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WebhookDelivery, 0)
	for _, d := range all {
		if d.Status == domain.DeliveryPending && !d.NextAttemptAt.After(before) {
			out = append(out, d)
		}
	}
	return out, nil
}
