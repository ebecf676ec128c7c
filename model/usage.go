package model

// UsageSource tells which path consumed the tokens.
type UsageSource string

const (
	UsageSourceLLM          UsageSource = "llm"
	UsageSourceToolSampling UsageSource = "tool-sampling"
)

// UsageMethod tells how the numbers were obtained.
type UsageMethod string

const (
	UsageMethodLocal  UsageMethod = "local"
	UsageMethodServer UsageMethod = "server"
)

// Usage is the token accounting for a single model call. It is emitted, never persisted.
type Usage struct {
	Input  int         `json:"input"`
	Output int         `json:"output"`
	Total  int         `json:"total"`
	Source UsageSource `json:"source"`
	Method UsageMethod `json:"method"`
}

// TokenUsage is what the endpoint reported for a completion, when it reported anything.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
