package plugins

import (
	"bytes"
	"context"
	"encoding/json"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrockruntimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/provider"
)

// BedrockPlugin wraps github.com/aws/aws-sdk-go-v2/service/bedrockruntime.
// Credential.Extra carries "region", "access_key_id", "secret_access_key".
type BedrockPlugin struct {
	base
}

func NewBedrockPlugin() *BedrockPlugin {
	return &BedrockPlugin{base: newBase("bedrock", "AWS Bedrock", "1.0.0", []domain.CredentialType{domain.CredentialBedrock})}
}

func (p *BedrockPlugin) CreateLlmProvider(cfg provider.ProviderConfig) (provider.LlmProvider, error) {
	region := cfg.Extra["region"]
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if ak, sk := cfg.Extra["access_key_id"], cfg.Extra["secret_access_key"]; ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, cfg.Extra["session_token"])))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, domain.NewProviderError("bedrock.create_provider", "bedrock", "failed to load AWS config", err)
	}
	return &bedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), name: "bedrock"}, nil
}

// bedrockInvokeBody is the Anthropic-on-Bedrock message request shape —
// the one wire format this thin adapter targets (spec.md §1 keeps deeper
// per-vendor Bedrock translation out of scope).
type bedrockInvokeBody struct {
	AnthropicVersion string              `json:"anthropic_version"`
	MaxTokens        int                 `json:"max_tokens"`
	Temperature      *float64            `json:"temperature,omitempty"`
	TopP             *float64            `json:"top_p,omitempty"`
	System           string              `json:"system,omitempty"`
	Messages         []bedrockInvokeTurn `json:"messages"`
}

type bedrockInvokeTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockInvokeResponse struct {
	ID         string `json:"id"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type bedrockProvider struct {
	client *bedrockruntime.Client
	name   string
}

func (p *bedrockProvider) ProviderName() string { return p.name }

func (p *bedrockProvider) AvailableModels() []string {
	return []string{"anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic.claude-3-haiku-20240307-v1:0"}
}

func (p *bedrockProvider) Chat(ctx context.Context, model string, req domain.ChatRequest) (*domain.LlmResponse, error) {
	body := toBedrockBody(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewInternalError("bedrock.chat", "failed to encode request body", err)
	}
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &model,
		ContentType: awsStrPtr("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, domain.NewProviderError("bedrock.chat", p.name, "invoke model failed", err)
	}
	var decoded bedrockInvokeResponse
	if err := json.Unmarshal(out.Body, &decoded); err != nil {
		return nil, domain.NewProviderError("bedrock.chat", p.name, "failed to decode response body", err)
	}
	var text string
	for _, c := range decoded.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return &domain.LlmResponse{
		ID:           decoded.ID,
		Model:        model,
		Message:      domain.Message{Role: domain.RoleAssistant, Text: text},
		FinishReason: finishReasonFromString(decoded.StopReason),
		Usage: &domain.TokenUsage{
			PromptTokens:     decoded.Usage.InputTokens,
			CompletionTokens: decoded.Usage.OutputTokens,
			TotalTokens:      decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
		},
	}, nil
}

// ChatStream uses InvokeModelWithResponseStream and re-assembles chunked
// JSON events into StreamChunks.
func (p *bedrockProvider) ChatStream(ctx context.Context, model string, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	body := toBedrockBody(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewInternalError("bedrock.chat_stream", "failed to encode request body", err)
	}
	out, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     &model,
		ContentType: awsStrPtr("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, domain.NewProviderError("bedrock.chat_stream", p.name, "invoke model stream failed", err)
	}
	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		stream := out.GetStream()
		defer stream.Close()
		for event := range stream.Events() {
			chunkEvent, ok := event.(*bedrockruntimetypes.ResponseStreamMemberChunk)
			if !ok || chunkEvent.Value.Bytes == nil {
				continue
			}
			var decoded struct {
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
				StopReason string `json:"stop_reason"`
			}
			if err := json.Unmarshal(bytes.TrimSpace(chunkEvent.Value.Bytes), &decoded); err != nil {
				continue
			}
			chunk := domain.StreamChunk{Delta: decoded.Delta.Text}
			if decoded.StopReason != "" {
				chunk.FinishReason = finishReasonFromString(decoded.StopReason)
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func toBedrockBody(req domain.ChatRequest) bedrockInvokeBody {
	body := bedrockInvokeBody{AnthropicVersion: "bedrock-2023-05-31", MaxTokens: defaultAnthropicMaxTokens}
	if req.MaxTokens != nil {
		body.MaxTokens = *req.MaxTokens
	}
	body.Temperature = req.Temperature
	body.TopP = req.TopP
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			body.System += messageText(m)
			continue
		}
		body.Messages = append(body.Messages, bedrockInvokeTurn{Role: string(m.Role), Content: messageText(m)})
	}
	return body
}

func awsStrPtr(s string) *string { return &s }
