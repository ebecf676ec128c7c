package mcp

import (
	"errors"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrToolNotFound is returned when a tool name has no route in the catalog.
	ErrToolNotFound = errors.New("tool not found")
	// ErrNoBackends is returned by operations that need at least one session.
	ErrNoBackends = errors.New("no tool backends connected")
	// ErrResourceNotFound is returned when no backend could read a resource.
	ErrResourceNotFound = errors.New("resource not found")
)

// ServerResources is the resource list of one backend. Err is set when the
// backend failed to list its resources.
type ServerResources struct {
	Server    string
	Resources []mcptypes.Resource
	Err       error
}

// ResourceContent is a resource read from the first backend that served it.
type ResourceContent struct {
	Server string
	URI    string
	Text   string
	Result *mcptypes.ReadResourceResult
}

type namedSession struct {
	name    string
	session Session
}
