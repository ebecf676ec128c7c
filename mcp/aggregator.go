package mcp

import (
	"context"
	"errors"
	"fmt"
)

// ListTools queries every backend and returns a fresh catalog. A backend
// that fails to list its tools is logged and left out of the catalog; only a
// cancelled ctx fails the call. With no backends the catalog is empty.
func (g *Gateway) ListTools(ctx context.Context) (Catalog, error) {
	sessions := g.snapshot()
	servers := make([]ServerTools, 0, len(sessions))

	for _, s := range sessions {
		tools, err := s.session.ListTools(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Catalog{}, fmt.Errorf("failed to list tools: %w", ctxErr)
			}
			g.log.Warn().Err(err).Str("server", s.name).Msg("[MCP] Failed to list tools, backend left out of catalog")
			continue
		}
		servers = append(servers, ServerTools{Server: s.name, Tools: ConvertMCPTools(tools)})
	}

	cat := BuildCatalog(servers)
	g.log.Debug().Int("tools", cat.Len()).Int("servers", len(servers)).Msg("[MCP] Catalog rebuilt")
	return cat, nil
}

// CallTool runs name on the backend the catalog routes it to and returns the
// result text. Results the backend flags as errors are returned as text too,
// since the model is expected to read them.
func (g *Gateway) CallTool(ctx context.Context, cat Catalog, name string, args map[string]any) (string, error) {
	server, ok := cat.Route(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	session, ok := g.session(server)
	if !ok {
		return "", fmt.Errorf("backend %s for tool %s is no longer connected", server, name)
	}

	g.log.Debug().Str("server", server).Str("tool", name).Interface("args", args).Msg("[MCP] Calling tool")

	result, err := session.CallTool(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("tool %s on %s failed: %w", name, server, err)
	}

	text := ExtractText(result)
	if result != nil && result.IsError {
		g.log.Debug().Str("tool", name).Str("result", text).Msg("[MCP] Tool reported an error")
	}
	return text, nil
}

// ListResources lists resources grouped by backend in configuration order.
// A failing backend is reported in its group rather than failing the call.
func (g *Gateway) ListResources(ctx context.Context) []ServerResources {
	sessions := g.snapshot()
	groups := make([]ServerResources, 0, len(sessions))

	for _, s := range sessions {
		resources, err := s.session.ListResources(ctx)
		if err != nil {
			g.log.Debug().Err(err).Str("server", s.name).Msg("[MCP] Failed to list resources")
		}
		groups = append(groups, ServerResources{Server: s.name, Resources: resources, Err: err})
	}

	return groups
}

// ReadResource probes backends in order and returns the first successful read.
func (g *Gateway) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	sessions := g.snapshot()
	if len(sessions) == 0 {
		return nil, ErrNoBackends
	}

	var errs []error
	for _, s := range sessions {
		result, err := s.session.ReadResource(ctx, uri)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		return &ResourceContent{
			Server: s.name,
			URI:    uri,
			Text:   ResourceText(result),
			Result: result,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrResourceNotFound, uri, errors.Join(errs...))
}
