package plugins

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

// OpenAIPlugin wraps github.com/sashabaranov/go-openai. It also backs the
// azure plugin, since Azure OpenAI is wire-compatible and differs only in
// BaseURL/APIVersion (see AzurePlugin).
type OpenAIPlugin struct {
	base
}

func NewOpenAIPlugin() *OpenAIPlugin {
	return &OpenAIPlugin{base: newBase("openai", "OpenAI", "1.0.0", []domain.CredentialType{domain.CredentialOpenAI})}
}

func (p *OpenAIPlugin) CreateLlmProvider(cfg provider.ProviderConfig) (provider.LlmProvider, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{client: openai.NewClientWithConfig(clientCfg), name: "openai"}, nil
}

// openAIProvider is the thin LlmProvider adapter: it constructs the SDK
// client and makes one call, per-provider wire translation beyond that
// stays out of scope (spec.md §1).
type openAIProvider struct {
	client *openai.Client
	name   string
}

func (p *openAIProvider) ProviderName() string { return p.name }

func (p *openAIProvider) AvailableModels() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}
}

func (p *openAIProvider) Chat(ctx context.Context, model string, req domain.ChatRequest) (*domain.LlmResponse, error) {
	oreq := toOpenAIRequest(model, req)
	resp, err := p.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, domain.NewProviderError("openai.chat", p.name, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewProviderError("openai.chat", p.name, "empty choices in response", nil)
	}
	choice := resp.Choices[0]
	return &domain.LlmResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Message:      domain.Message{Role: domain.RoleAssistant, Text: choice.Message.Content},
		FinishReason: finishReasonFromString(string(choice.FinishReason)),
		Usage: &domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *openAIProvider) ChatStream(ctx context.Context, model string, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	oreq := toOpenAIRequest(model, req)
	oreq.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, domain.NewProviderError("openai.chat_stream", p.name, "stream start failed", err)
	}
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				out <- domain.StreamChunk{FinishReason: domain.FinishError}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			c := resp.Choices[0]
			chunk := domain.StreamChunk{Delta: c.Delta.Content}
			if c.FinishReason != "" {
				chunk.FinishReason = finishReasonFromString(string(c.FinishReason))
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toOpenAIRequest(model string, req domain.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: messageText(m),
		})
	}
	oreq := openai.ChatCompletionRequest{Model: model, Messages: messages}
	if req.Temperature != nil {
		oreq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		oreq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		oreq.TopP = float32(*req.TopP)
	}
	return oreq
}
