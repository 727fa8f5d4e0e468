package plugins

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

// AzurePlugin reuses go-openai's Azure config path, since Azure OpenAI is
// wire-compatible with the OpenAI chat completions API and differs only in
// BaseURL/api-version and auth header. Credential.Extra["api_version"]
// overrides the default.
type AzurePlugin struct {
	base
}

func NewAzurePlugin() *AzurePlugin {
	return &AzurePlugin{base: newBase("azure_openai", "Azure OpenAI", "1.0.0", []domain.CredentialType{domain.CredentialAzureOpenAI})}
}

func (p *AzurePlugin) CreateLlmProvider(cfg provider.ProviderConfig) (provider.LlmProvider, error) {
	if cfg.BaseURL == "" {
		return nil, domain.NewValidationError("azure.create_provider", "base_url is required for azure_openai credentials")
	}
	apiVersion := cfg.Extra["api_version"]
	if apiVersion == "" {
		apiVersion = "2024-06-01"
	}
	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	clientCfg.APIVersion = apiVersion
	return &openAIProvider{client: openai.NewClientWithConfig(clientCfg), name: "azure_openai"}, nil
}
