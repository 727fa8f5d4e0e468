package plugins

import "github.com/gomind-contrib/llmgateway/internal/domain"

// messageText extracts the plain-text body of a message, joining parts'
// text segments when the message uses the multi-part form.
func messageText(m domain.Message) string {
	if m.Text != "" || len(m.Parts) == 0 {
		return m.Text
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

func finishReasonFromString(s string) domain.FinishReason {
	switch s {
	case "stop", "end_turn", "stop_sequence":
		return domain.FinishStop
	case "length", "max_tokens":
		return domain.FinishLength
	case "content_filter":
		return domain.FinishContentFilter
	case "tool_calls", "tool_use", "function_call":
		return domain.FinishToolCalls
	case "":
		return domain.FinishStop
	default:
		return domain.FinishError
	}
}
