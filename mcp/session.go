package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// ClientName and ClientVersion identify this program during MCP initialization.
const (
	ClientName    = "mcpchat"
	ClientVersion = "0.1.0"
)

const closeTimeout = 1 * time.Second

// Session is one live connection to a tool backend.
type Session interface {
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
	ListResources(ctx context.Context) ([]mcptypes.Resource, error)
	ReadResource(ctx context.Context, uri string) (*mcptypes.ReadResourceResult, error)
	Close() error
}

// clientSession adapts an initialized mcp-go client. cmd is set for stdio
// backends so the process can be killed if the client does not close in time.
type clientSession struct {
	name   string
	client *client.Client
	cmd    *exec.Cmd
	log    zerolog.Logger
}

// open starts and initializes the client. On failure the session is closed.
func (s *clientSession) open(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to start client: %w", err)
	}

	initRequest := mcptypes.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcptypes.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcptypes.Implementation{
		Name:    ClientName,
		Version: ClientVersion,
	}

	result, err := s.client.Initialize(ctx, initRequest)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}

	s.log.Debug().
		Str("server", s.name).
		Str("server_name", result.ServerInfo.Name).
		Str("protocol", result.ProtocolVersion).
		Msg("[MCP] Session initialized")

	return nil
}

func (s *clientSession) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	result, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *clientSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	request := mcptypes.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return s.client.CallTool(ctx, request)
}

func (s *clientSession) ListResources(ctx context.Context) ([]mcptypes.Resource, error) {
	result, err := s.client.ListResources(ctx, mcptypes.ListResourcesRequest{})
	if err != nil {
		return nil, err
	}
	return result.Resources, nil
}

func (s *clientSession) ReadResource(ctx context.Context, uri string) (*mcptypes.ReadResourceResult, error) {
	request := mcptypes.ReadResourceRequest{}
	request.Params.URI = uri
	return s.client.ReadResource(ctx, request)
}

// Close closes the client with a short timeout, then kills the backend
// process if there is one.
func (s *clientSession) Close() error {
	s.log.Debug().Str("server", s.name).Dur("timeout", closeTimeout).Msg("[MCP] Closing session")

	closeDone := make(chan error, 1)
	go func() {
		closeDone <- s.client.Close()
	}()

	var closeErr error
	timedOut := false
	select {
	case closeErr = <-closeDone:
	case <-time.After(closeTimeout):
		timedOut = true
	}

	// Kill local process ONLY
	switch {
	case s.cmd != nil && s.cmd.Process != nil:
		err := s.cmd.Process.Kill()
		switch {
		case err == nil:
			s.log.Debug().Str("server", s.name).Int("pid", s.cmd.Process.Pid).Msg("[MCP] Killed backend process")
		case errors.Is(err, os.ErrProcessDone):
		case timedOut:
			closeErr = fmt.Errorf("close timed out and kill failed: %w", err)
		}
	case timedOut:
		closeErr = fmt.Errorf("close timed out after %s", closeTimeout)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", s.name, closeErr)
	}
	return nil
}
