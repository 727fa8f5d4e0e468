package provider

import (
	"context"
	"sync"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// Registry holds every registered Plugin and the credential-type index
// used for router lookups. One RWMutex guards both maps, matching the
// teacher's single-lock-per-map convention (core/redis_registry.go).
type Registry struct {
	mu                  sync.RWMutex
	plugins             map[string]Plugin
	credentialTypeIndex map[domain.CredentialType][]string
	logger              logging.Logger
}

func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Registry{
		plugins:             make(map[string]Plugin),
		credentialTypeIndex: make(map[domain.CredentialType][]string),
		logger:              logger.WithComponent("provider.registry"),
	}
}

// Register adds a plugin. Plugin ids are unique; duplicate registration
// fails with a Conflict error.
func (r *Registry) Register(p Plugin) error {
	meta := p.Metadata()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[meta.ID]; exists {
		return domain.NewConflictError("registry.register", "plugin already registered: "+meta.ID)
	}
	r.plugins[meta.ID] = p
	for _, ct := range p.SupportedCredentialTypes() {
		r.credentialTypeIndex[ct] = append(r.credentialTypeIndex[ct], meta.ID)
	}
	r.logger.Info("plugin registered", map[string]interface{}{"plugin_id": meta.ID, "name": meta.Name})
	return nil
}

// Initialize transitions a plugin from Registered to Initializing to Ready.
// Calling it on a plugin not in Registered state is rejected.
func (r *Registry) Initialize(ctx context.Context, pluginID string) error {
	r.mu.RLock()
	p, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return domain.NewNotFoundError("registry.initialize", "plugin not found: "+pluginID)
	}
	if p.State() != PluginRegistered {
		return domain.NewValidationError("registry.initialize", "plugin must be Registered to initialize")
	}
	if err := p.Initialize(ctx); err != nil {
		return domain.NewProviderError("registry.initialize", p.Metadata().Name, "initialize failed", err)
	}
	return nil
}

// Shutdown transitions a plugin from Ready to ShuttingDown to Stopped.
func (r *Registry) Shutdown(ctx context.Context, pluginID string) error {
	r.mu.RLock()
	p, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return domain.NewNotFoundError("registry.shutdown", "plugin not found: "+pluginID)
	}
	if p.State() != PluginReady {
		return domain.NewValidationError("registry.shutdown", "plugin must be Ready to shut down")
	}
	return p.Shutdown(ctx)
}

// PluginsFor returns the plugin ids that advertise support for a
// credential type, in registration order.
func (r *Registry) PluginsFor(ct domain.CredentialType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.credentialTypeIndex[ct]))
	copy(out, r.credentialTypeIndex[ct])
	return out
}

func (r *Registry) Get(pluginID string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[pluginID]
	return p, ok
}
