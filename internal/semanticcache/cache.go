// Package semanticcache implements the Semantic Response Cache: an
// embedding-keyed vector cache with TTL, filters, and stats. Grounded on
// the teacher's orchestration/cache.go SimpleCache (RWMutex-guarded map,
// CacheStats, background cleanup goroutine), generalized from an
// exact-match prompt-hash key to an embedding-similarity search.
package semanticcache

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

const (
	defaultCapacity       = 10_000
	defaultMinSimilarity  = 0.95
	defaultLimit          = 1
)

// Stats mirrors the teacher's CacheStats shape, generalized to the
// semantic cache's entry/hit/miss/eviction counters.
type Stats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// SearchParams configures one Search call.
type SearchParams struct {
	ModelID        string // optional exact filter
	Temperature    *float64
	MinSimilarity  float64 // default 0.95
	Limit          int     // default 1
}

// ScoredEntry pairs a CachedEntry with its similarity to the query.
type ScoredEntry struct {
	Entry      *domain.CachedEntry
	Similarity float64
}

// Cache is the bare embedding-similarity cache. All mutation paths take a
// single RWMutex; no lock is held across a suspension point.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*domain.CachedEntry
	order    []string // insertion order, oldest first, for eviction
	capacity int
	stats    Stats

	nowSec func() int64
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*domain.CachedEntry),
		capacity: capacity,
		nowSec:   func() int64 { return time.Now().Unix() },
	}
}

// Search filters to non-expired, filter-matching entries, scores them by
// cosine similarity, keeps those at or above MinSimilarity, and returns
// the top Limit sorted descending.
func (c *Cache) Search(embedding []float32, params SearchParams) []ScoredEntry {
	minSim := params.MinSimilarity
	if minSim == 0 {
		minSim = defaultMinSimilarity
	}
	limit := params.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	now := c.nowSec()

	c.mu.RLock()
	candidates := make([]ScoredEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.IsExpired(now) {
			continue
		}
		if params.ModelID != "" && e.ModelID != params.ModelID {
			continue
		}
		if params.Temperature != nil && e.Temperature != nil && math.Abs(*params.Temperature-*e.Temperature) > 0.01 {
			continue
		}
		sim := CosineSimilarity(embedding, e.Embedding)
		if sim >= minSim {
			candidates = append(candidates, ScoredEntry{Entry: e, Similarity: sim})
		}
	}
	c.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Store inserts an entry. If at or over capacity, evicts the single
// oldest entry by created_at (one entry per overflow), incrementing the
// monotone eviction counter.
func (c *Cache) Store(e *domain.CachedEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[e.ID]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	if _, exists := c.entries[e.ID]; !exists {
		c.order = append(c.order, e.ID)
	}
	c.entries[e.ID] = e
}

func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldestIdx := 0
	for i, id := range c.order {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		oldest, ok := c.entries[c.order[oldestIdx]]
		if !ok || e.CreatedAtSec < oldest.CreatedAtSec {
			oldestIdx = i
		}
	}
	victimID := c.order[oldestIdx]
	delete(c.entries, victimID)
	c.order = append(c.order[:oldestIdx], c.order[oldestIdx+1:]...)
	c.stats.Evictions++
}

func (c *Cache) Get(id string) (*domain.CachedEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cache) DeleteByModel(modelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	kept := c.order[:0:0]
	for _, id := range c.order {
		e := c.entries[id]
		if e != nil && e.ModelID == modelID {
			delete(c.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.CachedEntry)
	c.order = nil
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// RecordHit increments the entry's hit_count and the global hit counter,
// and updates avg_hit_similarity as a running mean of that entry's lookup
// similarity (spec.md §9 REDESIGN FLAG — the teacher's update_avg_similarity
// helper was never invoked; this implementation populates it on every hit
// rather than leaving it permanently at zero).
func (c *Cache) RecordHit(id string, similarity float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Hits++
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.HitCount++
	e.AvgHitSimilarity = e.AvgHitSimilarity*float64(e.HitCount-1)/float64(e.HitCount) + similarity/float64(e.HitCount)
}

func (c *Cache) RecordMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Misses++
}

// CleanupExpired removes every expired entry and returns the count
// purged. Idempotent: a second call with no intervening expirations
// returns 0.
func (c *Cache) CleanupExpired() int {
	now := c.nowSec()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	kept := c.order[:0:0]
	for _, id := range c.order {
		e := c.entries[id]
		if e != nil && e.IsExpired(now) {
			delete(c.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

// CosineSimilarity is dot(a,b) / (||a|| * ||b||). Zero-norm vectors score
// 0 by convention.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
