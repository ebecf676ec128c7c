package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type modelFileConfig struct {
	Host          *string `toml:"host"`
	Key           *string `toml:"key"`
	Name          *string `toml:"name"`
	AssistantName *string `toml:"assistant_name"`
	Tokenizer     *string `toml:"tokenizer"`
	TokenUsage    *bool   `toml:"token_usage"`
}

type memoryFileConfig struct {
	Enabled                 *bool   `toml:"enabled"`
	DBPath                  *string `toml:"db_path"`
	DefaultIncognito        *bool   `toml:"default_incognito"`
	SummaryEnabled          *bool   `toml:"summary_enabled"`
	SummaryMaxTokens        *int    `toml:"summary_max_tokens"`
	SummarySchedulerEnabled *bool   `toml:"summary_scheduler_enabled"`
	SummaryIntervalSeconds  *int    `toml:"summary_interval_seconds"`
}

type agentFileConfig struct {
	MaxTurns         *int    `toml:"max_turns"`
	MCPConfig        *string `toml:"mcp_config"`
	SystemPromptFile *string `toml:"system_prompt_file"`
}

// FileConfig mirrors config.toml. Every field is optional; absent keys keep the
// value from the layer below.
type FileConfig struct {
	Model    modelFileConfig    `toml:"model"`
	LLM      GenerationSettings `toml:"llm"`
	Sampling GenerationSettings `toml:"sampling"`
	Memory   memoryFileConfig   `toml:"memory"`
	Agent    agentFileConfig    `toml:"agent"`
}

// LoadFileConfig decodes a config.toml. A missing file is not an error and yields nil.
func LoadFileConfig(path string) (*FileConfig, error) {
	if !FileExists(path) {
		return nil, nil
	}

	var fc FileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, key := range meta.Undecoded() {
		Log.Warn().Str("key", key.String()).Str("file", path).Msg("[Config] unknown key")
	}

	return &fc, nil
}

func (s *Settings) applyFile(path string) error {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}

	setString(&s.BaseURL, fc.Model.Host)
	setString(&s.APIKey, fc.Model.Key)
	setString(&s.Model, fc.Model.Name)
	setString(&s.AssistantName, fc.Model.AssistantName)
	setString(&s.TokenizerModel, fc.Model.Tokenizer)
	setBool(&s.TokenUsageEnabled, fc.Model.TokenUsage)

	s.LLM = overlayGeneration(s.LLM, fc.LLM)
	s.Sampling = overlayGeneration(s.Sampling, fc.Sampling)

	setBool(&s.MemoryEnabled, fc.Memory.Enabled)
	setString(&s.MemoryDBPath, fc.Memory.DBPath)
	setBool(&s.MemoryDefaultIncognito, fc.Memory.DefaultIncognito)
	setBool(&s.MemorySummaryEnabled, fc.Memory.SummaryEnabled)
	setInt(&s.MemorySummaryMaxTokens, fc.Memory.SummaryMaxTokens)
	setBool(&s.MemorySummarySchedulerEnabled, fc.Memory.SummarySchedulerEnabled)
	if fc.Memory.SummaryIntervalSeconds != nil {
		s.MemorySummaryInterval = time.Duration(*fc.Memory.SummaryIntervalSeconds) * time.Second
	}

	setInt(&s.MaxTurns, fc.Agent.MaxTurns)
	setString(&s.MCPConfigPath, fc.Agent.MCPConfig)
	setString(&s.SystemPromptFile, fc.Agent.SystemPromptFile)

	return nil
}

func overlayGeneration(base, top GenerationSettings) GenerationSettings {
	if top.MaxTokens != nil {
		base.MaxTokens = top.MaxTokens
	}
	if top.Temperature != nil {
		base.Temperature = top.Temperature
	}
	if top.TopP != nil {
		base.TopP = top.TopP
	}
	if top.TopK != nil {
		base.TopK = top.TopK
	}
	if top.RepeatPenalty != nil {
		base.RepeatPenalty = top.RepeatPenalty
	}
	if top.NumCtx != nil {
		base.NumCtx = top.NumCtx
	}
	if top.NumPredict != nil {
		base.NumPredict = top.NumPredict
	}
	return base
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// WriteTemplates creates config.toml, mcp.json and keybindings.toml in root
// when they are missing.
// It returns the paths it wrote.
func WriteTemplates(root string) ([]string, error) {
	files := []struct {
		name    string
		content string
	}{
		{"config.toml", GenerateConfigTemplate()},
		{DefaultMCPConfigPath, GenerateServersTemplate()},
		{keybindingsFile, GenerateKeybindingsTemplate()},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(root, f.name)
		if FileExists(path) {
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), 0600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
