package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/rs/zerolog"

	"mcpchat/config"
)

// launchStdio spawns a backend process and returns an initialized session.
// The sampling handler, when set, answers the backend's sampling requests.
func launchStdio(ctx context.Context, server config.ServerConfig, sampler client.SamplingHandler, log zerolog.Logger) (*clientSession, error) {
	// a PATH override is only visible to the child, so skip the lookup
	if _, ok := server.Env["PATH"]; !ok {
		rt, err := ResolveRuntime(server.Command)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("server", server.Name).Str("path", rt.Path).Msg("[MCP] Resolved command")
	}

	env := configToEnv(server.Env)
	session := &clientSession{name: server.Name, log: log}

	log.Debug().
		Str("server", server.Name).
		Str("command", server.Command).
		Strs("args", server.Args).
		Strs("env_keys", sortedKeys(server.Env)).
		Msg("[MCP] Launching backend")

	// The process lives until Close, not until the connect context ends.
	cmdFunc := func(_ context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.Command(command, args...)
		cmd.Env = env
		session.cmd = cmd
		return cmd, nil
	}

	stdio := transport.NewStdioWithOptions(
		server.Command,
		env,
		server.Args,
		transport.WithCommandFunc(cmdFunc),
	)

	var opts []client.ClientOption
	if sampler != nil {
		opts = append(opts, client.WithSamplingHandler(sampler))
	}
	session.client = client.NewClient(stdio, opts...)

	if err := session.open(ctx); err != nil {
		return nil, err
	}

	// Log PID
	switch {
	case session.cmd != nil && session.cmd.Process != nil:
		log.Debug().Str("server", server.Name).Int("pid", session.cmd.Process.Pid).Msg("[MCP] Started backend")
	}

	if stderr, ok := client.GetStderr(session.client); ok {
		go drainStderr(server.Name, stderr, log)
	}

	return session, nil
}

// drainStderr forwards backend stderr to the debug log so the pipe never fills.
func drainStderr(name string, r io.Reader, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Debug().Str("server", name).Msg("[MCP] stderr: " + scanner.Text())
	}
}

func configToEnv(envMap map[string]string) []string {
	// Start with current process environment to preserve PATH and other system vars
	env := os.Environ()

	// Add/override with custom env vars
	for _, k := range sortedKeys(envMap) {
		env = append(env, fmt.Sprintf("%s=%s", k, envMap[k]))
	}

	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
