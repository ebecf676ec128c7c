package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/config"
	"mcpchat/model"
	"mcpchat/provider/testutil"
	"mcpchat/tokenizer"
)

func samplingRequest(params mcptypes.CreateMessageParams) mcptypes.CreateMessageRequest {
	return mcptypes.CreateMessageRequest{CreateMessageParams: params}
}

func TestSamplingBridgeAppliesDefaults(t *testing.T) {
	mock := testutil.NewMockClient("mock-model", testutil.TextResponse("short summary"))
	defaults := config.GenerationSettings{
		MaxTokens:   model.Int(131072),
		Temperature: model.Float(0.8),
		NumCtx:      model.Int(1048576),
	}
	bridge := NewSamplingBridge(mock, defaults, nil, false)

	result, err := bridge.CreateMessage(context.Background(), samplingRequest(mcptypes.CreateMessageParams{
		SystemPrompt: "You summarize papers.",
		Messages: []mcptypes.SamplingMessage{
			{Role: mcptypes.RoleUser, Content: mcptypes.NewTextContent("summarize this")},
			{Role: mcptypes.RoleUser, Content: mcptypes.NewImageContent("AAAA", "image/png")},
			{Role: mcptypes.RoleAssistant, Content: map[string]any{"type": "text", "text": "earlier answer"}},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, mcptypes.RoleAssistant, result.Role)
	text, ok := mcptypes.AsTextContent(result.Content)
	require.True(t, ok)
	assert.Equal(t, "short summary", text.Text)
	assert.Equal(t, "mock-model", result.Model)
	assert.Equal(t, "end_turn", result.StopReason)

	require.Equal(t, 1, mock.Calls())
	req := mock.Requests()[0]
	assert.Equal(t, []model.Message{
		model.SystemMessage("You summarize papers."),
		model.UserMessage("summarize this"),
		model.AssistantMessage("earlier answer"),
	}, req.Messages)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 131072, *req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.8, *req.Temperature)
	assert.Nil(t, req.TopP)
	assert.Equal(t, map[string]any{"num_ctx": 1048576}, req.Options)
}

func TestSamplingBridgeHonoursOverrides(t *testing.T) {
	mock := testutil.NewMockClient("mock-model", testutil.TextResponse("ok"))
	defaults := config.GenerationSettings{
		MaxTokens:   model.Int(131072),
		Temperature: model.Float(0.8),
		TopP:        model.Float(0.5),
	}
	bridge := NewSamplingBridge(mock, defaults, nil, false)

	_, err := bridge.CreateMessage(context.Background(), samplingRequest(mcptypes.CreateMessageParams{
		Messages:    []mcptypes.SamplingMessage{{Role: mcptypes.RoleUser, Content: mcptypes.NewTextContent("hi")}},
		MaxTokens:   100,
		Temperature: 0.3,
		Metadata:    map[string]any{"top_p": 0.95},
	}))
	require.NoError(t, err)

	req := mock.Requests()[0]
	assert.Equal(t, 100, *req.MaxTokens)
	assert.Equal(t, 0.3, *req.Temperature)
	assert.Equal(t, 0.95, *req.TopP)
}

func TestSamplingBridgeErrorBecomesText(t *testing.T) {
	mock := testutil.NewMockClient("mock-model")
	mock.CompleteFunc = func(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}
	bridge := NewSamplingBridge(mock, config.GenerationSettings{}, tokenizer.NewWhitespace(), true)

	result, err := bridge.CreateMessage(context.Background(), samplingRequest(mcptypes.CreateMessageParams{
		Messages: []mcptypes.SamplingMessage{{Role: mcptypes.RoleUser, Content: mcptypes.NewTextContent("hi")}},
	}))
	require.NoError(t, err)

	text, ok := mcptypes.AsTextContent(result.Content)
	require.True(t, ok)
	assert.Equal(t, "Error during sampling: connection refused", text.Text)
	assert.Equal(t, "error", result.StopReason)
	assert.Equal(t, "mock-model", result.Model)
	assert.Empty(t, bridge.DrainUsage())
}

func TestSamplingBridgeUsage(t *testing.T) {
	tests := []struct {
		name       string
		counter    *tokenizer.Counter
		tokenUsage bool
		response   *model.ChatResponse
		want       []model.Usage
	}{
		{
			name:       "local estimate",
			counter:    tokenizer.NewWhitespace(),
			tokenUsage: true,
			response:   testutil.WithUsage(testutil.TextResponse("three word reply"), 50, 60),
			want: []model.Usage{{
				// "user" + "two words"
				Input: 3, Output: 3, Total: 6,
				Source: model.UsageSourceToolSampling, Method: model.UsageMethodLocal,
			}},
		},
		{
			name:     "server usage",
			response: testutil.WithUsage(testutil.TextResponse("reply"), 50, 60),
			want: []model.Usage{{
				Input: 50, Output: 60, Total: 110,
				Source: model.UsageSourceToolSampling, Method: model.UsageMethodServer,
			}},
		},
		{
			name:     "nothing reported",
			response: testutil.TextResponse("reply"),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockClient("mock-model", tt.response)
			bridge := NewSamplingBridge(mock, config.GenerationSettings{}, tt.counter, tt.tokenUsage)

			_, err := bridge.CreateMessage(context.Background(), samplingRequest(mcptypes.CreateMessageParams{
				Messages: []mcptypes.SamplingMessage{{Role: mcptypes.RoleUser, Content: mcptypes.NewTextContent("two words")}},
			}))
			require.NoError(t, err)

			assert.Equal(t, tt.want, bridge.DrainUsage())
			assert.Empty(t, bridge.DrainUsage(), "drain clears the buffer")
		})
	}
}

// A backend tool that asks the client to sample exercises the full round trip.
func TestSamplingThroughGateway(t *testing.T) {
	srv := server.NewMCPServer("summarizer", "1.0.0", server.WithToolCapabilities(false))
	srv.EnableSampling()
	srv.AddTool(mcptypes.NewTool("summarize", mcptypes.WithString("text", mcptypes.Required())),
		func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			text, err := req.RequireString("text")
			if err != nil {
				return mcptypes.NewToolResultError(err.Error()), nil
			}
			result, err := srv.RequestSampling(ctx, mcptypes.CreateMessageRequest{
				CreateMessageParams: mcptypes.CreateMessageParams{
					Messages:  []mcptypes.SamplingMessage{{Role: mcptypes.RoleUser, Content: mcptypes.NewTextContent(text)}},
					MaxTokens: 64,
				},
			})
			if err != nil {
				return mcptypes.NewToolResultError("sampling failed: " + err.Error()), nil
			}
			reply, _ := mcptypes.AsTextContent(result.Content)
			return mcptypes.NewToolResultText("summary: " + reply.Text), nil
		})

	mock := testutil.NewMockClient("mock-model", testutil.WithUsage(testutil.TextResponse("it is about RAG"), 12, 5))
	g := NewGateway(NewSamplingBridge(mock, config.GenerationSettings{}, nil, false))
	t.Cleanup(func() { _ = g.Close() })

	c, err := client.NewInProcessClientWithSamplingHandler(srv, g.Sampler())
	require.NoError(t, err)
	require.NoError(t, g.AttachClient(context.Background(), "summarizer", c))

	cat, err := g.ListTools(context.Background())
	require.NoError(t, err)

	out, err := g.CallTool(context.Background(), cat, "summarize", map[string]any{"text": "long paper"})
	require.NoError(t, err)
	assert.Equal(t, "summary: it is about RAG", out)

	require.Equal(t, 1, mock.Calls())
	assert.Equal(t, 64, *mock.Requests()[0].MaxTokens)

	usage := g.Sampler().DrainUsage()
	require.Len(t, usage, 1)
	assert.Equal(t, model.UsageMethodServer, usage[0].Method)
	assert.Equal(t, 17, usage[0].Total)
}
