package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL       = "http://localhost:11434/v1"
	DefaultAPIKey        = "ollama"
	DefaultModel         = "nemotron-3-nano:latest"
	DefaultAssistantName = "Nemotron"
	DefaultTokenizer     = "cl100k_base"
	DefaultMemoryDBPath  = "data/memory.db"
	DefaultMCPConfigPath = "mcp.json"
	DefaultMaxTurns      = 10
)

// GenerationSettings holds model generation parameters. Nil fields are left to
// the endpoint. TopK, RepeatPenalty, NumCtx and NumPredict are Ollama options and
// travel in the request's "options" body field.
type GenerationSettings struct {
	MaxTokens     *int     `toml:"max_tokens"`
	Temperature   *float64 `toml:"temperature"`
	TopP          *float64 `toml:"top_p"`
	TopK          *int     `toml:"top_k"`
	RepeatPenalty *float64 `toml:"repeat_penalty"`
	NumCtx        *int     `toml:"num_ctx"`
	NumPredict    *int     `toml:"num_predict"`
}

// Options returns the Ollama-specific fields that are set.
func (g GenerationSettings) Options() map[string]any {
	options := map[string]any{}
	if g.NumCtx != nil {
		options["num_ctx"] = *g.NumCtx
	}
	if g.TopK != nil {
		options["top_k"] = *g.TopK
	}
	if g.RepeatPenalty != nil {
		options["repeat_penalty"] = *g.RepeatPenalty
	}
	if g.NumPredict != nil {
		options["num_predict"] = *g.NumPredict
	}
	return options
}

// Settings is the fully resolved application configuration.
type Settings struct {
	RootDir string

	BaseURL       string
	APIKey        string
	Model         string
	AssistantName string

	LLM      GenerationSettings
	Sampling GenerationSettings

	TokenUsageEnabled bool
	TokenizerModel    string

	MemoryEnabled                 bool
	MemoryDBPath                  string
	MemoryDefaultIncognito        bool
	MemorySummaryEnabled          bool
	MemorySummaryMaxTokens        int
	MemorySummarySchedulerEnabled bool
	MemorySummaryInterval         time.Duration

	MaxTurns         int
	MCPConfigPath    string
	SystemPromptFile string

	Debug bool
}

// Defaults returns the built-in settings rooted at rootDir.
func Defaults(rootDir string) *Settings {
	return &Settings{
		RootDir:       rootDir,
		BaseURL:       DefaultBaseURL,
		APIKey:        DefaultAPIKey,
		Model:         DefaultModel,
		AssistantName: DefaultAssistantName,
		LLM: GenerationSettings{
			Temperature: floatPtr(0.8),
			NumCtx:      intPtr(1048576),
		},
		Sampling: GenerationSettings{
			MaxTokens:   intPtr(131072),
			Temperature: floatPtr(0.8),
			NumCtx:      intPtr(1048576),
		},
		TokenUsageEnabled:             true,
		TokenizerModel:                DefaultTokenizer,
		MemoryEnabled:                 true,
		MemoryDBPath:                  DefaultMemoryDBPath,
		MemorySummaryEnabled:          true,
		MemorySummaryMaxTokens:        512,
		MemorySummarySchedulerEnabled: true,
		MemorySummaryInterval:         600 * time.Second,
		MaxTurns:                      DefaultMaxTurns,
		MCPConfigPath:                 DefaultMCPConfigPath,
	}
}

// Load resolves settings for the client rooted at rootDir. Precedence, lowest
// first: built-in defaults, <root>/config.toml, <root>/.env, the process environment.
// Values from .env never override variables already present in the environment.
func Load(rootDir string) (*Settings, error) {
	root, err := filepath.Abs(ExpandPath(rootDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	envPath := filepath.Join(root, ".env")
	if FileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	s := Defaults(root)

	if err := s.applyFile(filepath.Join(root, "config.toml")); err != nil {
		return nil, err
	}

	s.applyEnvOverrides()
	s.finalize()

	return s, nil
}

func (s *Settings) applyEnvOverrides() {
	s.BaseURL = envString("OLLAMA_HOST", s.BaseURL)
	s.APIKey = envString("OLLAMA_KEY", s.APIKey)
	s.Model = envString("OLLAMA_MODEL", s.Model)
	s.AssistantName = envString("ASSISTANT_NAME", s.AssistantName)

	s.LLM = envGeneration("LLM", s.LLM)
	s.Sampling = envGeneration("SAMPLING", s.Sampling)

	s.TokenUsageEnabled = envBool("TOKEN_USAGE_ENABLED", s.TokenUsageEnabled)
	s.TokenizerModel = envString("TOKENIZER_MODEL", s.TokenizerModel)

	s.MemoryEnabled = envBool("MEMORY_ENABLED", s.MemoryEnabled)
	s.MemoryDBPath = envString("MEMORY_DB_PATH", s.MemoryDBPath)
	s.MemoryDefaultIncognito = envBool("MEMORY_DEFAULT_INCOGNITO", s.MemoryDefaultIncognito)
	s.MemorySummaryEnabled = envBool("MEMORY_SUMMARY_ENABLED", s.MemorySummaryEnabled)
	s.MemorySummaryMaxTokens = envInt("MEMORY_SUMMARY_MAX_TOKENS", s.MemorySummaryMaxTokens)
	s.MemorySummarySchedulerEnabled = envBool("MEMORY_SUMMARY_SCHEDULER_ENABLED", s.MemorySummarySchedulerEnabled)
	interval := envInt("MEMORY_SUMMARY_INTERVAL_SECONDS", int(s.MemorySummaryInterval/time.Second))
	s.MemorySummaryInterval = time.Duration(interval) * time.Second

	s.MaxTurns = envInt("AGENT_MAX_TURNS", s.MaxTurns)
	s.MCPConfigPath = envString("MCP_CONFIG_PATH", s.MCPConfigPath)
	s.SystemPromptFile = envString("SYSTEM_PROMPT_FILE", s.SystemPromptFile)

	s.Debug = envBool("MCPCHAT_DEBUG", s.Debug)
}

// finalize normalises values and restores defaults for anything left unusable.
func (s *Settings) finalize() {
	s.BaseURL = NormalizeBaseURL(s.BaseURL)

	switch {
	case s.MemorySummaryMaxTokens <= 0:
		s.MemorySummaryMaxTokens = 512
	}
	switch {
	case s.MemorySummaryInterval <= 0:
		s.MemorySummaryInterval = 600 * time.Second
	}
	switch {
	case s.MaxTurns <= 0:
		s.MaxTurns = DefaultMaxTurns
	}

	s.MemoryDBPath = s.ResolvePath(s.MemoryDBPath)
	s.MCPConfigPath = s.ResolvePath(s.MCPConfigPath)
	if s.SystemPromptFile != "" {
		s.SystemPromptFile = s.ResolvePath(s.SystemPromptFile)
	}
}

// ResolvePath makes p absolute relative to the root directory.
func (s *Settings) ResolvePath(p string) string {
	p = ExpandPath(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.RootDir, p)
}

// NormalizeBaseURL adds a scheme when missing and makes sure the URL ends in /v1.
func NormalizeBaseURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return DefaultBaseURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	if !strings.HasSuffix(url, "/v1") {
		url = strings.TrimRight(url, "/") + "/v1"
	}
	return url
}

// DataDir is the directory holding the memory database and the debug log.
func (s *Settings) DataDir() string {
	return filepath.Dir(s.MemoryDBPath)
}

// EnsureDataDir creates the data directory, or tightens an existing one, to
// owner-only permissions.
func (s *Settings) EnsureDataDir() error {
	if err := EnsureDataDirPermissions(s.DataDir()); err != nil {
		return fmt.Errorf("failed to prepare data directory: %w", err)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
