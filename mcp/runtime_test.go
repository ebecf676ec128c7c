package mcp

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRuntime(t *testing.T) {
	missing := func(string) (string, error) { return "", exec.ErrNotFound }

	tests := []struct {
		command string
		wantErr string
	}{
		{"npx", "npx not found (install Node.js)"},
		{"/usr/local/bin/uvx", "uvx not found (install uv)"},
		{"python3", "Python not found"},
		{"./servers/arxiv", "command not found: ./servers/arxiv"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			_, err := resolveRuntime(tt.command, missing)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, exec.ErrNotFound))
		})
	}
}

func TestResolveRuntimeFound(t *testing.T) {
	rt, err := resolveRuntime("npx", func(string) (string, error) { return "/usr/bin/npx", nil })
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/npx", rt.Path)

	_, err = resolveRuntime("  ", exec.LookPath)
	assert.EqualError(t, err, "empty command")
}
