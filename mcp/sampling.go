package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"mcpchat/config"
	"mcpchat/model"
	"mcpchat/tokenizer"
)

const (
	stopReasonEndTurn = "end_turn"
	stopReasonError   = "error"
)

// SamplingBridge answers sampling requests from backends by delegating to the
// chat model. It records one usage entry per successful call; the agent loop
// drains them after each tool call.
type SamplingBridge struct {
	client     model.Client
	defaults   config.GenerationSettings
	counter    *tokenizer.Counter
	tokenUsage bool
	log        zerolog.Logger

	mu      sync.Mutex
	pending []model.Usage
}

// NewSamplingBridge creates a bridge. counter may be nil when token usage is
// disabled.
func NewSamplingBridge(client model.Client, defaults config.GenerationSettings, counter *tokenizer.Counter, tokenUsage bool) *SamplingBridge {
	return &SamplingBridge{
		client:     client,
		defaults:   defaults,
		counter:    counter,
		tokenUsage: tokenUsage,
		log:        config.Component("sampling"),
	}
}

// CreateMessage implements client.SamplingHandler. It never returns an error:
// failures come back as assistant text with stop reason "error".
func (b *SamplingBridge) CreateMessage(ctx context.Context, request mcptypes.CreateMessageRequest) (*mcptypes.CreateMessageResult, error) {
	req := b.buildRequest(request.CreateMessageParams)

	b.log.Debug().
		Int("messages", len(req.Messages)).
		Msg("[MCP] Sampling request")

	resp, err := b.client.Complete(ctx, req)
	if err != nil {
		b.log.Warn().Err(err).Msg("[MCP] Sampling failed")
		return samplingResult(fmt.Sprintf("Error during sampling: %v", err), b.client.Model(), stopReasonError), nil
	}

	text := resp.Message.Content
	b.record(req.Messages, text, resp.Usage)

	modelName := resp.Model
	if modelName == "" {
		modelName = b.client.Model()
	}
	return samplingResult(text, modelName, stopReasonEndTurn), nil
}

// buildRequest keeps only text turns. Unset parameters fall back to the
// sampling defaults.
func (b *SamplingBridge) buildRequest(params mcptypes.CreateMessageParams) model.ChatRequest {
	var messages []model.Message
	if params.SystemPrompt != "" {
		messages = append(messages, model.SystemMessage(params.SystemPrompt))
	}

	for _, msg := range params.Messages {
		text, ok := samplingText(msg.Content)
		if !ok {
			continue
		}
		switch msg.Role {
		case mcptypes.RoleAssistant:
			messages = append(messages, model.AssistantMessage(text))
		default:
			messages = append(messages, model.UserMessage(text))
		}
	}

	req := model.ChatRequest{
		Messages:    messages,
		MaxTokens:   b.defaults.MaxTokens,
		Temperature: b.defaults.Temperature,
		TopP:        b.defaults.TopP,
		Options:     b.defaults.Options(),
	}

	if params.MaxTokens > 0 {
		req.MaxTokens = model.Int(params.MaxTokens)
	}
	// zero means unset on the wire
	if params.Temperature > 0 {
		req.Temperature = model.Float(params.Temperature)
	}
	if topP, ok := metadataFloat(params.Metadata, "top_p"); ok {
		req.TopP = model.Float(topP)
	}

	return req
}

func (b *SamplingBridge) record(prompt []model.Message, completion string, server *model.TokenUsage) {
	var usage model.Usage
	switch {
	case b.tokenUsage && b.counter != nil:
		input := b.counter.CountMessages(prompt)
		output := b.counter.CountText(completion)
		usage = model.Usage{Input: input, Output: output, Total: input + output, Method: model.UsageMethodLocal}
	case server != nil:
		usage = model.Usage{
			Input:  server.PromptTokens,
			Output: server.CompletionTokens,
			Total:  server.TotalTokens,
			Method: model.UsageMethodServer,
		}
	default:
		return
	}
	usage.Source = model.UsageSourceToolSampling

	b.mu.Lock()
	b.pending = append(b.pending, usage)
	b.mu.Unlock()
}

// DrainUsage returns and clears the recorded usage, oldest first.
func (b *SamplingBridge) DrainUsage() []model.Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

func samplingResult(text, modelName, stopReason string) *mcptypes.CreateMessageResult {
	return &mcptypes.CreateMessageResult{
		SamplingMessage: mcptypes.SamplingMessage{
			Role:    mcptypes.RoleAssistant,
			Content: mcptypes.NewTextContent(text),
		},
		Model:      modelName,
		StopReason: stopReason,
	}
}

// samplingText returns the text of a sampling message. Content arrives as a
// typed value in process and as a map when decoded from the wire.
func samplingText(content any) (string, bool) {
	switch c := content.(type) {
	case mcptypes.TextContent:
		return c.Text, true
	case *mcptypes.TextContent:
		return c.Text, true
	case map[string]any:
		if c["type"] != "text" {
			return "", false
		}
		text, ok := c["text"].(string)
		return text, ok
	case string:
		return c, true
	}
	return "", false
}

func metadataFloat(metadata any, key string) (float64, bool) {
	m, ok := metadata.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
