package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/config"
)

// newSearchServer returns an in-process backend exposing search_arxiv, whose
// result names the backend, and one resource per uri.
func newSearchServer(name string, uris ...string) *server.MCPServer {
	srv := server.NewMCPServer(name, "1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.AddTool(mcptypes.NewTool("search_arxiv",
		mcptypes.WithDescription("Search arXiv papers"),
		mcptypes.WithString("query", mcptypes.Required()),
	), func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcptypes.NewToolResultError(err.Error()), nil
		}
		return mcptypes.NewToolResultText(fmt.Sprintf("%s:%s", name, query)), nil
	})

	srv.AddTool(mcptypes.NewTool(name+"_fail"), func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
		return nil, errors.New("backend exploded")
	})

	for _, uri := range uris {
		srv.AddResource(mcptypes.NewResource(uri, uri, mcptypes.WithMIMEType("text/plain")),
			func(ctx context.Context, req mcptypes.ReadResourceRequest) ([]mcptypes.ResourceContents, error) {
				return []mcptypes.ResourceContents{
					mcptypes.TextResourceContents{URI: req.Params.URI, MIMEType: "text/plain", Text: name + " serves " + req.Params.URI},
				}, nil
			})
	}

	return srv
}

func attachInProcess(t *testing.T, g *Gateway, name string, srv *server.MCPServer) {
	t.Helper()
	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)
	require.NoError(t, g.AttachClient(context.Background(), name, c))
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g := NewGateway(nil)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGatewayRoutesToLastRegisteredBackend(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "first", newSearchServer("first"))
	attachInProcess(t, g, "second", newSearchServer("second"))

	assert.Equal(t, []string{"first", "second"}, g.Servers())

	ctx := context.Background()
	cat, err := g.ListTools(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"search_arxiv", "first_fail", "second_fail"}, cat.Names())

	server, _ := cat.Route("search_arxiv")
	assert.Equal(t, "second", server)

	out, err := g.CallTool(ctx, cat, "search_arxiv", map[string]any{"query": "rag"})
	require.NoError(t, err)
	assert.Equal(t, "second:rag", out)
}

func TestGatewayCallToolUnknownName(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "arxiv", newSearchServer("arxiv"))

	cat, err := g.ListTools(context.Background())
	require.NoError(t, err)

	_, err = g.CallTool(context.Background(), cat, "search", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestGatewayCallToolUsesSnapshot(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "arxiv", newSearchServer("arxiv"))

	// a catalog taken before any backend existed routes nothing
	stale := BuildCatalog(nil)
	_, err := g.CallTool(context.Background(), stale, "search_arxiv", map[string]any{"query": "x"})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestGatewayCallToolBackendError(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "arxiv", newSearchServer("arxiv"))

	cat, err := g.ListTools(context.Background())
	require.NoError(t, err)

	_, err = g.CallTool(context.Background(), cat, "arxiv_fail", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arxiv_fail")
}

func TestGatewayWithoutBackends(t *testing.T) {
	g := newTestGateway(t)

	cat, err := g.ListTools(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cat.Len())

	assert.Empty(t, g.ListResources(context.Background()))

	_, err = g.ReadResource(context.Background(), "papers://index")
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestGatewayResources(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "a", newSearchServer("a", "papers://a"))
	attachInProcess(t, g, "b", newSearchServer("b", "papers://shared", "papers://b"))

	ctx := context.Background()
	groups := g.ListResources(ctx)
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].Server)
	require.NoError(t, groups[0].Err)
	require.Len(t, groups[0].Resources, 1)
	assert.Equal(t, "papers://a", groups[0].Resources[0].URI)
	assert.Equal(t, "b", groups[1].Server)
	assert.Len(t, groups[1].Resources, 2)

	// a does not have it, b does: first success wins
	content, err := g.ReadResource(ctx, "papers://shared")
	require.NoError(t, err)
	assert.Equal(t, "b", content.Server)
	assert.Equal(t, "b serves papers://shared", content.Text)

	_, err = g.ReadResource(ctx, "papers://missing")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

// fakeSession records Close calls and can fail on every operation.
type fakeSession struct {
	closed   bool
	closeErr error
	listErr  error
}

func (f *fakeSession) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	return nil, f.listErr
}

func (f *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return mcptypes.NewToolResultText("ok"), nil
}

func (f *fakeSession) ListResources(ctx context.Context) ([]mcptypes.Resource, error) {
	return nil, f.listErr
}

func (f *fakeSession) ReadResource(ctx context.Context, uri string) (*mcptypes.ReadResourceResult, error) {
	return nil, errors.New("unsupported")
}

func (f *fakeSession) Close() error {
	f.closed = true
	return f.closeErr
}

func TestGatewayListToolsSkipsFailingBackend(t *testing.T) {
	g := newTestGateway(t)
	attachInProcess(t, g, "healthy", newSearchServer("healthy"))
	g.Attach("broken", &fakeSession{listErr: errors.New("backend down")})

	ctx := context.Background()
	cat, err := g.ListTools(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"search_arxiv", "healthy_fail"}, cat.Names())

	server, ok := cat.Route("search_arxiv")
	require.True(t, ok)
	assert.Equal(t, "healthy", server)

	text, err := g.CallTool(ctx, cat, "search_arxiv", map[string]any{"query": "rag"})
	require.NoError(t, err)
	assert.Equal(t, "healthy:rag", text)

	groups := g.ListResources(ctx)
	require.Len(t, groups, 2)
	assert.NoError(t, groups[0].Err)
	assert.Error(t, groups[1].Err)
}

func TestGatewayListToolsAllBackendsFailing(t *testing.T) {
	g := newTestGateway(t)
	g.Attach("broken", &fakeSession{listErr: errors.New("pipe closed")})

	cat, err := g.ListTools(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cat.Len())
}

func TestGatewayListToolsCancelled(t *testing.T) {
	g := newTestGateway(t)
	g.Attach("broken", &fakeSession{listErr: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.ListTools(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayCloseAggregatesErrors(t *testing.T) {
	g := NewGateway(nil)
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	a := &fakeSession{closeErr: errA}
	b := &fakeSession{}
	c := &fakeSession{closeErr: errC}
	g.Attach("a", a)
	g.Attach("b", b)
	g.Attach("c", c)

	err := g.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.True(t, c.closed)
	assert.Empty(t, g.Servers())

	// closing again is a no-op
	assert.NoError(t, g.Close())
}

func TestGatewayConnectSkipsFailingBackends(t *testing.T) {
	g := newTestGateway(t)

	connected, err := g.Connect(context.Background(), []config.ServerConfig{
		{Name: "missing", Command: "/nonexistent/mcp-backend-binary"},
	})
	assert.Zero(t, connected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Empty(t, g.Servers())
}
