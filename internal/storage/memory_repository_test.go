package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

func TestMemoryRepositorySaveGetRoundTrips(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	m := &domain.Model{ID: "m1", Name: "gpt", CredentialType: domain.CredentialOpenAI, Enabled: true}
	require.NoError(t, repo.Save(context.Background(), m))
	got, err := repo.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "gpt", got.Name)
}

func TestMemoryRepositoryGetMissingReturnsNotFound(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	_, err := repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err), "expected a not-found error")
}

func TestMemoryRepositorySaveRejectsEmptyKey(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	err := repo.Save(context.Background(), &domain.Model{ID: ""})
	assert.Error(t, err, "expected validation error for an empty id")
}

func TestMemoryRepositoryDeleteRemovesAndIsIdempotentlyRejected(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	m := &domain.Model{ID: "m1", Name: "gpt"}
	require.NoError(t, repo.Save(context.Background(), m))
	require.NoError(t, repo.Delete(context.Background(), "m1"))
	assert.Error(t, repo.Delete(context.Background(), "m1"), "expected a not-found error deleting an already-deleted key")
}

func TestMemoryRepositoryListAppliesFilter(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	require.NoError(t, repo.Save(context.Background(), &domain.Model{ID: "m1", Enabled: true}))
	require.NoError(t, repo.Save(context.Background(), &domain.Model{ID: "m2", Enabled: false}))
	got, err := repo.List(context.Background(), Filter{"enabled": true})
	require.NoError(t, err)
	require.Len(t, got, 1, "expected only m1 to match the enabled filter")
	assert.Equal(t, "m1", got[0].ID)
}

func TestMemoryRepositoryListEmptyFilterReturnsAll(t *testing.T) {
	repo := NewMemoryRepository[*domain.Model]("model")
	require.NoError(t, repo.Save(context.Background(), &domain.Model{ID: "m1"}))
	require.NoError(t, repo.Save(context.Background(), &domain.Model{ID: "m2"}))
	got, err := repo.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryRepositoryListFilterByIntComparesAgainstJSONFloat(t *testing.T) {
	repo := NewMemoryRepository[*domain.Budget]("budget")
	require.NoError(t, repo.Save(context.Background(), &domain.Budget{ID: "b1", HardLimitMicros: 500}))
	got, err := repo.List(context.Background(), Filter{"hard_limit_micros": 500})
	require.NoError(t, err)
	assert.Len(t, got, 1, "expected an int filter value to match a stored int64 field")
}
