package testutil

import (
	"fmt"

	"mcpchat/model"
)

// TextResponse is a final answer without tool calls.
func TextResponse(content string) *model.ChatResponse {
	return &model.ChatResponse{
		Message: model.AssistantMessage(content),
		Model:   "mock-model",
	}
}

// ToolCallResponse requests one tool call per name/arguments pair.
// Call ids are call_1, call_2, ... in order.
func ToolCallResponse(pairs ...string) *model.ChatResponse {
	if len(pairs)%2 != 0 {
		panic("ToolCallResponse needs name/arguments pairs")
	}
	msg := model.Message{Role: model.RoleAssistant}
	for i := 0; i < len(pairs); i += 2 {
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:        fmt.Sprintf("call_%d", i/2+1),
			Name:      pairs[i],
			Arguments: pairs[i+1],
		})
	}
	return &model.ChatResponse{Message: msg, Model: "mock-model"}
}

// WithUsage attaches server-reported usage to resp.
func WithUsage(resp *model.ChatResponse, prompt, completion int) *model.ChatResponse {
	resp.Usage = &model.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	return resp
}
