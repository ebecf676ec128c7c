package ui

import (
	"errors"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"mcpchat/mcp"
)

func sampleResources() []mcp.ServerResources {
	return []mcp.ServerResources{
		{
			Server: "arxiv",
			Resources: []mcptypes.Resource{
				{URI: "arxiv://categories", Name: "Categories", MIMEType: "application/json"},
				{URI: "arxiv://recent", Name: "arxiv://recent"},
			},
		},
		{Server: "notes"},
		{Server: "broken", Err: errors.New("method not found")},
	}
}

func TestFormatResources(t *testing.T) {
	want := "arxiv\n" +
		"  arxiv://categories  Categories  [application/json]\n" +
		"  arxiv://recent\n" +
		"\n" +
		"notes\n" +
		"  (no resources)\n" +
		"\n" +
		"broken\n" +
		"  (failed to list resources: method not found)"
	assert.Equal(t, want, FormatResources(sampleResources()))
}

func TestFormatResourcesWithoutServers(t *testing.T) {
	assert.Equal(t, "No tool servers connected.", FormatResources(nil))
}
