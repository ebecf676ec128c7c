package provider

import (
	"context"
	"fmt"
	"maps"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mcpchat/config"
	"mcpchat/model"
)

// OpenAIClient implements model.Client against any OpenAI-compatible
// chat-completion endpoint (Ollama's /v1 API by default) using the official
// OpenAI Go SDK. It keeps no per-conversation state.
type OpenAIClient struct {
	client   openai.Client
	model    string
	baseURL  string
	defaults config.GenerationSettings
}

// NewOpenAIClient creates a client.
//
// Parameters:
//   - baseURL: endpoint base URL including /v1 (default: config.DefaultBaseURL)
//   - apiKey: API key; Ollama accepts any non-empty value (default: "ollama")
//   - modelName: model used for every request (required)
//   - defaults: generation settings applied when a request leaves a field unset
func NewOpenAIClient(baseURL, apiKey, modelName string, defaults config.GenerationSettings, opts ...option.RequestOption) (*OpenAIClient, error) {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = config.DefaultAPIKey
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientOpts := append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)

	return &OpenAIClient{
		client:   openai.NewClient(clientOpts...),
		model:    modelName,
		baseURL:  baseURL,
		defaults: defaults,
	}, nil
}

// NewFromSettings builds the shared client from resolved settings.
func NewFromSettings(s *config.Settings) (*OpenAIClient, error) {
	return NewOpenAIClient(s.BaseURL, s.APIKey, s.Model, s.LLM)
}

// Model implements model.Client.
func (c *OpenAIClient) Model() string {
	return c.model
}

// BaseURL returns the endpoint the client talks to.
func (c *OpenAIClient) BaseURL() string {
	return c.baseURL
}

// Complete implements model.Client with a single non-streaming request.
func (c *OpenAIClient) Complete(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	params, options := c.buildParams(req)

	var reqOpts []option.RequestOption
	if len(options) > 0 {
		reqOpts = append(reqOpts, option.WithJSONSet("options", options))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return ConvertFromOpenAIResponse(resp)
}

// buildParams applies the configured defaults and then the request's overrides.
// It returns the Ollama options separately because they travel as an extra body field.
func (c *OpenAIClient) buildParams(req model.ChatRequest) (openai.ChatCompletionNewParams, map[string]any) {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(req.Messages),
		Model:    openai.ChatModel(c.model),
	}

	maxTokens := firstInt(req.MaxTokens, c.defaults.MaxTokens)
	if maxTokens != nil {
		params.MaxTokens = openai.Int(int64(*maxTokens))
	}
	temperature := firstFloat(req.Temperature, c.defaults.Temperature)
	if temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}
	topP := firstFloat(req.TopP, c.defaults.TopP)
	if topP != nil {
		params.TopP = openai.Float(*topP)
	}

	if len(req.Tools) > 0 {
		params.Tools = ConvertToolsToOpenAI(req.Tools)
	}

	options := c.defaults.Options()
	maps.Copy(options, req.Options)

	return params, options
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
