package semanticcache

import (
	"context"
	"strings"
	"time"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// EmbeddingGenerator produces a dense embedding for a query string. A
// distinct collaborator interface per spec.md §9's "interfaces over
// concrete types" note.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config governs the caching service's policy, not the bare Cache's
// mechanics — mirroring the teacher's layering of SimpleCache under
// orchestrator-level policy.
type Config struct {
	Enabled                 bool
	MinSimilarity           float64
	TTLSeconds              int64
	IncludeModelInKey       bool
	IncludeTemperatureInKey bool
	CacheStreaming          bool
}

func DefaultConfig() Config {
	return Config{Enabled: true, MinSimilarity: defaultMinSimilarity, TTLSeconds: 3600}
}

// Service layers cacheability rules and query-text extraction over the
// bare Cache: the embedding-generation failure swallow policy (spec.md §7)
// and the query-text/streaming/empty-text rules of spec.md §4.3 live here,
// not in Cache itself.
type Service struct {
	cache     *Cache
	embedder  EmbeddingGenerator
	cfg       Config
	logger    logging.Logger
	nowSec    func() int64
	idFactory func() string
}

func NewService(cache *Cache, embedder EmbeddingGenerator, cfg Config, logger logging.Logger, idFactory func() string) *Service {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Service{
		cache:     cache,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger.WithComponent("semanticcache.service"),
		nowSec:    func() int64 { return time.Now().Unix() },
		idFactory: idFactory,
	}
}

// QueryText extracts the user-visible cache key text: all User-role
// message bodies joined with newlines.
func QueryText(messages []domain.Message) string {
	var lines []string
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			lines = append(lines, textOf(m))
		}
	}
	return strings.Join(lines, "\n")
}

func textOf(m domain.Message) string {
	if m.Text != "" || len(m.Parts) == 0 {
		return m.Text
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Lookup returns a cached response for req if cacheable and a sufficiently
// similar entry exists. It calls exactly one of RecordHit/RecordMiss. A
// cache-ineligible request (empty query text, uncacheable stream) returns
// ("", false, nil) without recording hit/miss, since no lookup occurred.
func (s *Service) Lookup(ctx context.Context, req domain.ChatRequest, modelID string) (string, bool, error) {
	if !s.cfg.Enabled {
		return "", false, nil
	}
	query := QueryText(req.Messages)
	if query == "" {
		return "", false, nil
	}
	if req.Stream && !s.cfg.CacheStreaming {
		return "", false, nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		// Deliberate availability-over-hit-rate choice (spec.md §7): log
		// and treat as a miss rather than propagate.
		s.logger.Warn("embedding generation failed, treating as cache miss", map[string]interface{}{"error": err.Error()})
		s.cache.RecordMiss()
		return "", false, nil
	}

	params := SearchParams{MinSimilarity: s.cfg.MinSimilarity, Limit: 1}
	if s.cfg.IncludeModelInKey {
		params.ModelID = modelID
	}
	if s.cfg.IncludeTemperatureInKey {
		params.Temperature = req.Temperature
	}

	matches := s.cache.Search(embedding, params)
	if len(matches) == 0 {
		s.cache.RecordMiss()
		return "", false, nil
	}
	top := matches[0]
	s.cache.RecordHit(top.Entry.ID, top.Similarity)
	return top.Entry.SerializedResponse, true, nil
}

// Store caches a response for later lookups, skipping ineligible requests
// by the same rules Lookup applies.
func (s *Service) Store(ctx context.Context, req domain.ChatRequest, modelID, serializedResponse string) error {
	if !s.cfg.Enabled {
		return nil
	}
	query := QueryText(req.Messages)
	if query == "" {
		return nil
	}
	if req.Stream && !s.cfg.CacheStreaming {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("embedding generation failed, skipping cache store", map[string]interface{}{"error": err.Error()})
		return nil
	}

	now := s.nowSec()
	entry := &domain.CachedEntry{
		ID:                 s.idFactory(),
		Embedding:          embedding,
		QueryText:          query,
		SerializedResponse: serializedResponse,
		CreatedAtSec:       now,
		ExpiresAtSec:       now + s.cfg.TTLSeconds,
	}
	if s.cfg.IncludeModelInKey {
		entry.ModelID = modelID
	}
	if s.cfg.IncludeTemperatureInKey {
		entry.Temperature = req.Temperature
	}
	s.cache.Store(entry)
	return nil
}
