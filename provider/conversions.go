package provider

import (
	"fmt"

	"github.com/openai/openai-go/v3"

	"mcpchat/model"
)

// ConvertToOpenAIMessages converts history messages to OpenAI request messages.
//
// Assistant messages that requested tools carry their tool calls so the tool
// results that follow can reference them by id; their content is omitted when
// empty, as the API expects.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))
		case model.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case model.RoleAssistant:
			if !msg.HasToolCalls() {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls)),
			}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for i, call := range msg.ToolCalls {
				assistant.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		}
	}
	return result
}

// ConvertToolsToOpenAI converts tool descriptors to OpenAI function tools.
//
// Descriptor structure:
//
//	{name: "search_arxiv", description: "...", input_schema: {"type": "object", "properties": {...}}}
//
// OpenAI Tool structure:
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "search_arxiv",
//	    "description": "...",
//	    "parameters": {...}
//	  }
//	}
func ConvertToolsToOpenAI(tools []model.ToolDescriptor) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		params := openai.FunctionParameters{}
		for k, v := range tool.InputSchema {
			params[k] = v
		}
		if _, ok := params["type"]; !ok {
			params["type"] = "object"
		}
		if _, ok := params["properties"]; !ok {
			params["properties"] = map[string]any{}
		}

		def := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: params,
		}
		if tool.Description != "" {
			def.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(def)
	}
	return result
}

// ConvertFromOpenAIResponse extracts the first choice of a completion.
// Server-reported usage is attached only when the response carried a usage object.
func ConvertFromOpenAIResponse(resp *openai.ChatCompletion) (*model.ChatResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	msg := model.Message{
		Role:    model.RoleAssistant,
		Content: choice.Content,
	}
	for _, call := range choice.ToolCalls {
		if call.Type != "" && call.Type != "function" {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	out := &model.ChatResponse{
		Message: msg,
		Model:   resp.Model,
	}
	if resp.JSON.Usage.Valid() {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	return out, nil
}
