package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpchat/config"
	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/provider/testutil"
	"mcpchat/storage"
)

type toolInvocation struct {
	name string
	args map[string]any
}

// fakeTools is a scripted tool gateway.
type fakeTools struct {
	mu      sync.Mutex
	catalog mcp.Catalog
	listErr error
	results map[string]string
	errs    map[string]error
	usage   []model.Usage
	calls   []toolInvocation
}

func newFakeTools(names ...string) *fakeTools {
	tools := make([]model.ToolDescriptor, len(names))
	for i, n := range names {
		tools[i] = model.ToolDescriptor{Name: n, InputSchema: map[string]any{"type": "object"}}
	}
	return &fakeTools{
		catalog: mcp.BuildCatalog([]mcp.ServerTools{{Server: "arxiv", Tools: tools}}),
		results: map[string]string{},
		errs:    map[string]error{},
	}
}

func (f *fakeTools) ListTools(ctx context.Context) (mcp.Catalog, error) {
	if f.listErr != nil {
		return mcp.Catalog{}, f.listErr
	}
	return f.catalog, nil
}

func (f *fakeTools) CallTool(ctx context.Context, cat mcp.Catalog, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !cat.Has(name) {
		return "", mcp.ErrToolNotFound
	}
	f.calls = append(f.calls, toolInvocation{name: name, args: args})
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.results[name], nil
}

func (f *fakeTools) DrainSamplingUsage() []model.Usage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.usage
	f.usage = nil
	return out
}

func (f *fakeTools) invocations() []toolInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolInvocation(nil), f.calls...)
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.Defaults(t.TempDir())
	s.TokenUsageEnabled = false
	return s
}

func newTestStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ms, err := storage.NewMemoryStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })
	return ms
}

func newTestEngine(t *testing.T, settings *config.Settings, client *testutil.MockClient, tools ToolGateway, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSystemPrompt("sys")}, opts...)
	return NewEngine(settings, client, tools, opts...)
}

// runTurn adds content as the user message and collects every event of the turn.
func runTurn(t *testing.T, e *Engine, content string) []model.Event {
	t.Helper()
	require.NoError(t, e.AddUserMessage(context.Background(), content))

	var events []model.Event
	for ev := range e.ProcessTurn(context.Background()) {
		events = append(events, ev)
	}
	return events
}

func eventsOfType(events []model.Event, typ model.EventType) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func eventTypes(events []model.Event) []model.EventType {
	types := make([]model.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
