package mcp

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runtime is the resolved executable of a backend command.
type Runtime struct {
	Command string
	Path    string
}

// runtimeHints names what to install when a well-known launcher is missing.
var runtimeHints = map[string]string{
	"node":    "Node.js not found",
	"npx":     "npx not found (install Node.js)",
	"python":  "Python not found",
	"python3": "Python not found",
	"uv":      "uv not found",
	"uvx":     "uvx not found (install uv)",
	"docker":  "Docker not found",
	"go":      "Go not found",
}

// ResolveRuntime checks that a backend command can be executed before it is
// launched, so a missing interpreter is reported by name instead of as a
// failed handshake.
func ResolveRuntime(command string) (*Runtime, error) {
	return resolveRuntime(command, exec.LookPath)
}

func resolveRuntime(command string, lookPath func(string) (string, error)) (*Runtime, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("empty command")
	}

	path, err := lookPath(command)
	if err != nil {
		base := strings.TrimSuffix(filepath.Base(command), ".exe")
		if hint, ok := runtimeHints[base]; ok {
			return nil, fmt.Errorf("%s: %w", hint, err)
		}
		return nil, fmt.Errorf("command not found: %s: %w", command, err)
	}

	return &Runtime{Command: command, Path: path}, nil
}
