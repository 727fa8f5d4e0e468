package plugins

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicPlugin wraps github.com/anthropics/anthropic-sdk-go.
type AnthropicPlugin struct {
	base
}

func NewAnthropicPlugin() *AnthropicPlugin {
	return &AnthropicPlugin{base: newBase("anthropic", "Anthropic", "1.0.0", []domain.CredentialType{domain.CredentialAnthropic})}
}

func (p *AnthropicPlugin) CreateLlmProvider(cfg provider.ProviderConfig) (provider.LlmProvider, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{client: anthropicsdk.NewClient(opts...), name: "anthropic"}, nil
}

type anthropicProvider struct {
	client *anthropicsdk.Client
	name   string
}

func (p *anthropicProvider) ProviderName() string { return p.name }

func (p *anthropicProvider) AvailableModels() []string {
	return []string{"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest", "claude-3-opus-latest"}
}

func (p *anthropicProvider) Chat(ctx context.Context, model string, req domain.ChatRequest) (*domain.LlmResponse, error) {
	params, err := toAnthropicParams(model, req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, domain.NewProviderError("anthropic.chat", p.name, "message creation failed", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &domain.LlmResponse{
		ID:           resp.ID,
		Model:        string(resp.Model),
		Message:      domain.Message{Role: domain.RoleAssistant, Text: text},
		FinishReason: finishReasonFromString(string(resp.StopReason)),
		Usage: &domain.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *anthropicProvider) ChatStream(ctx context.Context, model string, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	params, err := toAnthropicParams(model, req)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsUnion().(type) {
			case anthropicsdk.ContentBlockDeltaEvent:
				if variant.Delta.Text != "" {
					select {
					case out <- domain.StreamChunk{Delta: variant.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case anthropicsdk.MessageDeltaEvent:
				if variant.Delta.StopReason != "" {
					out <- domain.StreamChunk{FinishReason: finishReasonFromString(string(variant.Delta.StopReason))}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- domain.StreamChunk{FinishReason: domain.FinishError}
		}
	}()
	return out, nil
}

func toAnthropicParams(model string, req domain.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	var system string
	messages := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system += messageText(m)
			continue
		}
		text := messageText(m)
		if m.Role == domain.RoleAssistant {
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(text)))
		} else {
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(text)))
		}
	}
	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropicsdk.Float(*req.TopP)
	}
	return params, nil
}
