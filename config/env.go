package config

import (
	"os"
	"strconv"
	"strings"
)

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func envString(name, fallback string) string {
	if value, ok := lookupEnv(name); ok {
		return value
	}
	return fallback
}

// envBool accepts 1/true/yes/y/on (any case) as true; any other non-empty value is false.
func envBool(name string, fallback bool) bool {
	value, ok := lookupEnv(name)
	if !ok {
		return fallback
	}
	return ParseBool(value)
}

func envInt(name string, fallback int) int {
	value, ok := lookupEnv(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		Log.Warn().Str("var", name).Str("value", value).Msg("[Config] ignoring malformed integer")
		return fallback
	}
	return n
}

func envIntPtr(name string, fallback *int) *int {
	value, ok := lookupEnv(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		Log.Warn().Str("var", name).Str("value", value).Msg("[Config] ignoring malformed integer")
		return fallback
	}
	return &n
}

func envFloatPtr(name string, fallback *float64) *float64 {
	value, ok := lookupEnv(name)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		Log.Warn().Str("var", name).Str("value", value).Msg("[Config] ignoring malformed number")
		return fallback
	}
	return &f
}

// envGeneration overlays <prefix>_MAX_TOKENS, _TEMPERATURE, _TOP_P, _TOP_K,
// _REPEAT_PENALTY, _NUM_CTX and _NUM_PREDICT onto g.
func envGeneration(prefix string, g GenerationSettings) GenerationSettings {
	return GenerationSettings{
		MaxTokens:     envIntPtr(prefix+"_MAX_TOKENS", g.MaxTokens),
		Temperature:   envFloatPtr(prefix+"_TEMPERATURE", g.Temperature),
		TopP:          envFloatPtr(prefix+"_TOP_P", g.TopP),
		TopK:          envIntPtr(prefix+"_TOP_K", g.TopK),
		RepeatPenalty: envFloatPtr(prefix+"_REPEAT_PENALTY", g.RepeatPenalty),
		NumCtx:        envIntPtr(prefix+"_NUM_CTX", g.NumCtx),
		NumPredict:    envIntPtr(prefix+"_NUM_PREDICT", g.NumPredict),
	}
}

func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
