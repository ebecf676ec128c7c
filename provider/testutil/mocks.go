package testutil

import (
	"context"
	"fmt"
	"sync"

	"mcpchat/model"
)

// MockClient implements model.Client for testing. Each call records the request
// and is answered by CompleteFunc, which defaults to replaying Responses in order.
type MockClient struct {
	// Configurable responses
	CompleteFunc func(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
	Responses    []*model.ChatResponse

	// State
	mu           sync.Mutex
	requests     []model.ChatRequest
	currentModel string
}

// NewMockClient creates a mock that replays the given responses, one per call.
func NewMockClient(modelName string, responses ...*model.ChatResponse) *MockClient {
	mock := &MockClient{
		currentModel: modelName,
		Responses:    responses,
	}
	mock.CompleteFunc = mock.defaultComplete
	return mock
}

func (m *MockClient) defaultComplete(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock client: no scripted response left")
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

func (m *MockClient) Complete(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	m.mu.Lock()
	req.Messages = model.CloneMessages(req.Messages)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	return m.CompleteFunc(ctx, req)
}

func (m *MockClient) Model() string {
	return m.currentModel
}

// Requests returns every request received so far.
func (m *MockClient) Requests() []model.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ChatRequest(nil), m.requests...)
}

// Calls returns the number of Complete calls.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
