package semanticcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	got := CosineSimilarity(v, v)
	assert.InDelta(t, 1.0, got, 0.000001)
}

func TestCosineSimilarityOrthogonalVectorsIsZero(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.Equal(t, 0.0, got)
}

func TestCosineSimilarityZeroNormVectorIsZeroByConvention(t *testing.T) {
	got := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	assert.Equal(t, 0.0, got)
}

func TestCosineSimilarityBoundedByUnitInterval(t *testing.T) {
	got := CosineSimilarity([]float32{-1, -2, -3}, []float32{1, 2, 3})
	assert.GreaterOrEqual(t, got, -1.000001)
	assert.LessOrEqual(t, got, 1.000001)
}

func newEntry(id string, embedding []float32, expiresAt int64) *domain.CachedEntry {
	return &domain.CachedEntry{ID: id, Embedding: embedding, ExpiresAtSec: expiresAt}
}

func TestCacheSearchFindsSimilarEntryAboveThreshold(t *testing.T) {
	c := NewCache(10)
	c.nowSec = func() int64 { return 0 }
	c.Store(newEntry("e1", []float32{1, 0, 0}, 1_000_000))
	results := c.Search([]float32{1, 0, 0}, SearchParams{MinSimilarity: 0.9})
	assert.Len(t, results, 1)
}

func TestCacheSearchExcludesExpiredEntries(t *testing.T) {
	c := NewCache(10)
	c.nowSec = func() int64 { return 2_000_000 }
	c.Store(newEntry("e1", []float32{1, 0, 0}, 1_000_000))
	results := c.Search([]float32{1, 0, 0}, SearchParams{MinSimilarity: 0.9})
	assert.Empty(t, results, "expected expired entry to be excluded")
}

func TestCacheSearchFiltersByModelID(t *testing.T) {
	c := NewCache(10)
	c.nowSec = func() int64 { return 0 }
	e := newEntry("e1", []float32{1, 0, 0}, 1_000_000)
	e.ModelID = "model-a"
	c.Store(e)
	assert.Empty(t, c.Search([]float32{1, 0, 0}, SearchParams{MinSimilarity: 0.9, ModelID: "model-b"}), "expected no match for mismatched model filter")
	assert.Len(t, c.Search([]float32{1, 0, 0}, SearchParams{MinSimilarity: 0.9, ModelID: "model-a"}), 1, "expected a match for the matching model filter")
}

func TestCacheStoreEvictsOldestOnOverflow(t *testing.T) {
	c := NewCache(2)
	e1 := newEntry("e1", []float32{1, 0}, 1_000_000)
	e1.CreatedAtSec = 1
	e2 := newEntry("e2", []float32{0, 1}, 1_000_000)
	e2.CreatedAtSec = 2
	e3 := newEntry("e3", []float32{1, 1}, 1_000_000)
	e3.CreatedAtSec = 3
	c.Store(e1)
	c.Store(e2)
	c.Store(e3)
	require.Equal(t, 2, c.Size(), "expected size capped at 2")
	_, ok := c.Get("e1")
	assert.False(t, ok, "expected the oldest entry to have been evicted")
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCacheSizeReflectsStoreAndDelete(t *testing.T) {
	c := NewCache(10)
	c.Store(newEntry("e1", []float32{1}, 1_000_000))
	c.Store(newEntry("e2", []float32{1}, 1_000_000))
	require.Equal(t, 2, c.Size())
	c.Delete("e1")
	assert.Equal(t, 1, c.Size())
}

func TestCacheRecordHitUpdatesRunningMeanSimilarity(t *testing.T) {
	c := NewCache(10)
	c.Store(newEntry("e1", []float32{1}, 1_000_000))
	c.RecordHit("e1", 0.8)
	c.RecordHit("e1", 1.0)
	e, ok := c.Get("e1")
	require.True(t, ok, "expected entry to exist")
	assert.Equal(t, int64(2), e.HitCount)
	assert.InDelta(t, 0.9, e.AvgHitSimilarity, 0.0001)
	assert.Equal(t, int64(2), c.Stats().Hits)
}

func TestCacheCleanupExpiredIsIdempotent(t *testing.T) {
	c := NewCache(10)
	c.nowSec = func() int64 { return 2_000_000 }
	c.Store(newEntry("e1", []float32{1}, 1_000_000))
	c.Store(newEntry("e2", []float32{1}, 3_000_000))
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 0, c.CleanupExpired(), "expected a second cleanup pass to be a no-op")
	assert.Equal(t, 1, c.Size())
}

func TestCacheDeleteByModelRemovesOnlyMatching(t *testing.T) {
	c := NewCache(10)
	a := newEntry("e1", []float32{1}, 1_000_000)
	a.ModelID = "model-a"
	b := newEntry("e2", []float32{1}, 1_000_000)
	b.ModelID = "model-b"
	c.Store(a)
	c.Store(b)
	removed := c.DeleteByModel("model-a")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Size())
}
