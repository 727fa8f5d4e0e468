package semanticcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, context.DeadlineExceeded
}

func newTestService(embedder EmbeddingGenerator) *Service {
	ids := 0
	return NewService(NewCache(10), embedder, DefaultConfig(), nil, func() string {
		ids++
		return "entry-id"
	})
}

func TestServiceStoreThenLookupHitsOnIdenticalQuery(t *testing.T) {
	s := newTestService(&fakeEmbedder{vec: []float32{1, 0, 0}})
	req := domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Text: "what is go"}}}

	require.NoError(t, s.Store(context.Background(), req, "model-1", `{"answer":"a language"}`))
	resp, hit, err := s.Lookup(context.Background(), req, "model-1")
	require.NoError(t, err)
	require.True(t, hit, "expected a cache hit on an identical query")
	assert.Equal(t, `{"answer":"a language"}`, resp)
}

func TestServiceLookupMissOnEmptyCache(t *testing.T) {
	s := newTestService(&fakeEmbedder{vec: []float32{1, 0, 0}})
	req := domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Text: "anything"}}}
	_, hit, err := s.Lookup(context.Background(), req, "model-1")
	require.NoError(t, err)
	assert.False(t, hit, "expected a miss against an empty cache")
}

func TestServiceLookupSkipsEmptyQueryText(t *testing.T) {
	s := newTestService(&fakeEmbedder{vec: []float32{1, 0, 0}})
	req := domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleSystem, Text: "system only"}}}
	_, hit, err := s.Lookup(context.Background(), req, "model-1")
	require.NoError(t, err)
	assert.False(t, hit, "a request with no user-role text must never hit")
}

func TestServiceLookupTreatsEmbeddingFailureAsMiss(t *testing.T) {
	s := newTestService(failingEmbedder{})
	req := domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Text: "hello"}}}
	_, hit, err := s.Lookup(context.Background(), req, "model-1")
	require.NoError(t, err, "expected embedding failure to be swallowed")
	assert.False(t, hit, "expected a miss when embedding generation fails")
}

func TestServiceDisabledConfigNeverHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	s := NewService(NewCache(10), &fakeEmbedder{vec: []float32{1, 0, 0}}, cfg, nil, func() string { return "id" })
	req := domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}}}
	require.NoError(t, s.Store(context.Background(), req, "model-1", "resp"))
	_, hit, err := s.Lookup(context.Background(), req, "model-1")
	require.NoError(t, err)
	assert.False(t, hit, "a disabled service must never report a hit")
}
