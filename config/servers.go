package config

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// ServerConfig describes one stdio tool server from mcp.json.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// LoadServers reads the mcpServers section of an mcp.json file. Servers keep the
// order they appear in the file, which decides tool-name collisions later on.
// Arguments starting with ./ or ../ are resolved against root. A missing file
// yields no servers.
func LoadServers(path, root string) ([]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			Log.Warn().Str("path", path).Msg("[MCP] server config not found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseServers(data, root)
}

// ParseServers parses mcp.json content. Comments and trailing commas are tolerated.
func ParseServers(data []byte, root string) ([]ServerConfig, error) {
	clean := jsonc.ToJSON(data)
	if !gjson.ValidBytes(clean) {
		return nil, fmt.Errorf("failed to parse server config: invalid JSON")
	}

	servers := gjson.GetBytes(clean, "mcpServers")
	if !servers.Exists() {
		return nil, nil
	}
	if !servers.IsObject() {
		return nil, fmt.Errorf("failed to parse server config: mcpServers must be an object")
	}

	var result []ServerConfig
	servers.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		command := value.Get("command").String()
		if command == "" {
			Log.Warn().Str("server", name).Msg("[MCP] server entry has no command, skipping")
			return true
		}

		cfg := ServerConfig{Name: name, Command: command}
		for _, arg := range value.Get("args").Array() {
			cfg.Args = append(cfg.Args, ResolveArg(root, arg.String()))
		}
		if env := value.Get("env"); env.IsObject() {
			cfg.Env = map[string]string{}
			env.ForEach(func(k, v gjson.Result) bool {
				cfg.Env[k.String()] = v.String()
				return true
			})
		}

		result = append(result, cfg)
		return true
	})
	return result, nil
}
