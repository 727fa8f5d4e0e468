package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

func TestMessageTextPrefersPlainText(t *testing.T) {
	m := domain.Message{Role: domain.RoleUser, Text: "hello", Parts: []domain.ContentPart{{Type: "text", Text: "ignored"}}}
	assert.Equal(t, "hello", messageText(m))
}

func TestMessageTextJoinsTextParts(t *testing.T) {
	m := domain.Message{Role: domain.RoleUser, Parts: []domain.ContentPart{
		{Type: "text", Text: "foo"},
		{Type: "image", ImageRef: "ref"},
		{Type: "text", Text: "bar"},
	}}
	assert.Equal(t, "foobar", messageText(m))
}

func TestMessageTextEmptyWhenNoPartsOrText(t *testing.T) {
	assert.Empty(t, messageText(domain.Message{Role: domain.RoleUser}))
}

func TestFinishReasonFromStringMapsKnownVendorStrings(t *testing.T) {
	cases := map[string]domain.FinishReason{
		"stop":           domain.FinishStop,
		"end_turn":       domain.FinishStop,
		"stop_sequence":  domain.FinishStop,
		"length":         domain.FinishLength,
		"max_tokens":     domain.FinishLength,
		"content_filter": domain.FinishContentFilter,
		"tool_calls":     domain.FinishToolCalls,
		"tool_use":       domain.FinishToolCalls,
		"function_call":  domain.FinishToolCalls,
		"":               domain.FinishStop,
		"something_odd":  domain.FinishError,
	}
	for in, want := range cases {
		assert.Equal(t, want, finishReasonFromString(in), "finishReasonFromString(%q)", in)
	}
}
