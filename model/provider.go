package model

import "context"

// Client abstracts the chat-completion endpoint.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: the provider implementation imports model, and the agent and mcp
// packages consume Client without importing the provider package.
//
// Implementations hold no conversation state, so a single Client is shared by the
// agent loop and the MCP sampling bridge.
type Client interface {
	// Complete sends one non-streaming chat completion request.
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Model returns the model name used for requests.
	Model() string
}

// ChatRequest carries the messages and the per-call overrides for one completion.
// Nil overrides fall back to the client's configured defaults. Options are merged
// key by key over the default provider options.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDescriptor
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Options     map[string]any
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	Message Message
	Model   string
	Usage   *TokenUsage // nil when the endpoint did not report usage
}

// ToolDescriptor describes a callable tool offered to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }
