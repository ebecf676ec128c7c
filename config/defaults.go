package config

func GenerateConfigTemplate() string {
	return `# mcpchat configuration
# Location: <root>/config.toml
# This file uses TOML format: https://toml.io
# Environment variables (and <root>/.env) take precedence over this file.

[model]
# OpenAI-compatible endpoint; "/v1" is appended when missing (OLLAMA_HOST)
host = "http://localhost:11434/v1"
key = "ollama"
name = "nemotron-3-nano:latest"
assistant_name = "Nemotron"
# Local token accounting (TOKEN_USAGE_ENABLED, TOKENIZER_MODEL)
token_usage = true
tokenizer = "cl100k_base"

[llm]
temperature = 0.8
num_ctx = 1048576
# max_tokens = 4096
# top_p = 0.9
# top_k = 40
# repeat_penalty = 1.1
# num_predict = 2048

[sampling]
# Defaults for generation requests coming from MCP servers
max_tokens = 131072
temperature = 0.8
num_ctx = 1048576

[memory]
enabled = true
db_path = "data/memory.db"
default_incognito = false
summary_enabled = true
summary_max_tokens = 512
summary_scheduler_enabled = true
summary_interval_seconds = 600

[agent]
max_turns = 10
mcp_config = "mcp.json"
# system_prompt_file = "prompt.md"
`
}

func GenerateServersTemplate() string {
	return `{
  // Tool servers launched over stdio. Arguments starting with ./ or ../
  // are resolved against the client root directory.
  "mcpServers": {
    "arxiv": {
      "command": "uv",
      "args": ["run", "./servers/arxiv_server.py"],
      "env": {}
    }
  }
}
`
}
