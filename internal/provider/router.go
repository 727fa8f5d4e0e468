package provider

import (
	"context"
	"sync"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// ModelStore and CredentialStore are the narrow read surfaces the router
// needs from the model/credential repositories (internal/storage), kept
// as local interfaces per spec.md §9's "interfaces over concrete types".
type ModelStore interface {
	GetModel(ctx context.Context, id string) (*domain.Model, error)
}

type CredentialStore interface {
	GetCredential(ctx context.Context, id string) (*domain.Credential, error)
}

const defaultRouterCapacity = 100

type cacheKey struct {
	credentialType domain.CredentialType
	credentialID   string
}

// Router resolves a model reference to a concrete, cached LlmProvider
// instance. The cache is keyed by (credential_type, credential_id); on
// overflow it evicts the first half of the insertion order, matching
// spec.md §9's documented choice (FIFO over true LRU) — see DESIGN.md.
type Router struct {
	registry    *Registry
	models      ModelStore
	credentials CredentialStore
	logger      logging.Logger

	mu       sync.RWMutex
	cache    map[cacheKey]LlmProvider
	order    []cacheKey // append-only insertion order; the "arena index"
	capacity int
}

func NewRouter(registry *Registry, models ModelStore, credentials CredentialStore, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Router{
		registry:    registry,
		models:      models,
		credentials: credentials,
		logger:      logger.WithComponent("provider.router"),
		cache:       make(map[cacheKey]LlmProvider),
		capacity:    defaultRouterCapacity,
	}
}

// Resolve returns a ready LlmProvider and the vendor model string for
// modelID, manufacturing and caching a new provider instance on cache miss.
func (r *Router) Resolve(ctx context.Context, modelID string) (LlmProvider, string, error) {
	model, err := r.models.GetModel(ctx, modelID)
	if err != nil {
		return nil, "", err
	}
	cred, err := r.credentials.GetCredential(ctx, model.CredentialID)
	if err != nil {
		return nil, "", err
	}
	key := cacheKey{credentialType: model.CredentialType, credentialID: cred.ID}

	r.mu.RLock()
	p, hit := r.cache[key]
	r.mu.RUnlock()
	if hit {
		return p, model.ProviderModel, nil
	}

	pluginIDs := r.registry.PluginsFor(model.CredentialType)
	var chosen Plugin
	for _, id := range pluginIDs {
		plugin, ok := r.registry.Get(id)
		if ok && plugin.State() == PluginReady {
			chosen = plugin
			break
		}
	}
	if chosen == nil {
		return nil, "", domain.NewProviderError("router.resolve", string(model.CredentialType),
			"no ready plugin supports this credential type", nil)
	}

	instance, err := chosen.CreateLlmProvider(ProviderConfig{
		CredentialType: model.CredentialType,
		APIKey:         cred.APIKey,
		BaseURL:        cred.BaseURL,
		Extra:          cred.Extra,
	})
	if err != nil {
		return nil, "", domain.NewProviderError("router.resolve", chosen.Metadata().Name, "provider construction failed", err)
	}

	r.mu.Lock()
	r.cache[key] = instance
	r.order = append(r.order, key)
	if len(r.cache) > r.capacity {
		r.evictOldestHalfLocked()
	}
	r.mu.Unlock()

	return instance, model.ProviderModel, nil
}

// evictOldestHalfLocked removes the oldest half of the cache by insertion
// order. Callers hold r.mu for writing.
func (r *Router) evictOldestHalfLocked() {
	n := len(r.order) / 2
	if n == 0 {
		n = 1
	}
	for i := 0; i < n && i < len(r.order); i++ {
		delete(r.cache, r.order[i])
	}
	r.order = r.order[n:]
	r.logger.Debug("router cache evicted", map[string]interface{}{"evicted": n, "remaining": len(r.cache)})
}

// Size reports the current number of cached provider instances.
func (r *Router) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
