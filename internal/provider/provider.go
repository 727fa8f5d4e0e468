// Package provider implements the plugin registry and provider router:
// credential-type -> plugin dispatch, with a FIFO-evicted provider-instance
// cache keyed by credential identity. Grounded on the teacher's
// ai/provider.go functional-options pattern and ai/registry.go.
package provider

import (
	"context"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// LlmProvider is the uniform contract every plugin-manufactured provider
// instance satisfies (spec.md §6).
type LlmProvider interface {
	Chat(ctx context.Context, model string, req domain.ChatRequest) (*domain.LlmResponse, error)
	ChatStream(ctx context.Context, model string, req domain.ChatRequest) (<-chan domain.StreamChunk, error)
	ProviderName() string
	AvailableModels() []string
}

// PluginState is the closed sum of a Plugin's lifecycle states.
type PluginState string

const (
	PluginRegistered   PluginState = "Registered"
	PluginInitializing PluginState = "Initializing"
	PluginReady        PluginState = "Ready"
	PluginShuttingDown PluginState = "ShuttingDown"
	PluginStopped      PluginState = "Stopped"
	PluginError        PluginState = "Error"
)

// PluginMetadata is the descriptive handle for a registered plugin.
type PluginMetadata struct {
	ID      string
	Name    string
	Version string
}

// ProviderConfig is what a Plugin's factory receives to manufacture an
// LlmProvider instance — the credential's material plus any extra params,
// mirroring the teacher's AIConfig/AIOption functional-options shape.
type ProviderConfig struct {
	CredentialType domain.CredentialType
	APIKey         string
	BaseURL        string
	Extra          map[string]string
}

// Plugin is a factory and lifecycle handle for producing LlmProvider
// instances from credentials.
type Plugin interface {
	Metadata() PluginMetadata
	SupportedCredentialTypes() []domain.CredentialType
	State() PluginState
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	CreateLlmProvider(cfg ProviderConfig) (LlmProvider, error)
}
