package agent

import (
	"bytes"
	"encoding/json"

	"mcpchat/model"
)

// completionText is the text counted as completion tokens: the reply content,
// or a JSON rendering of the requested tool calls when there is none.
func completionText(msg model.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.ToolCalls) == 0 {
		return ""
	}

	type call struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	calls := make([]call, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, call{Name: tc.Name, Arguments: tc.Arguments})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(calls); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// modelUsage reports usage for one model call: a local estimate when token
// usage is enabled, else what the server reported, else nothing.
func (e *Engine) modelUsage(prompt []model.Message, resp *model.ChatResponse) (model.Usage, bool) {
	if e.settings.TokenUsageEnabled && e.counter != nil {
		input := e.counter.CountMessages(prompt)
		output := e.counter.CountText(completionText(resp.Message))
		return model.Usage{
			Input:  input,
			Output: output,
			Total:  input + output,
			Source: model.UsageSourceLLM,
			Method: model.UsageMethodLocal,
		}, true
	}

	if resp.Usage != nil {
		return model.Usage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
			Source: model.UsageSourceLLM,
			Method: model.UsageMethodServer,
		}, true
	}

	return model.Usage{}, false
}
