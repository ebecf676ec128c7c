package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const keybindingsFile = "keybindings.toml"

// KeyBindingsConfig holds modifier customization and optional per-action overrides
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions"`
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // alt, ctrl, meta, super
	Secondary string `toml:"secondary"` // alt+shift, ctrl+shift
}

type actionDef struct {
	modifier string // primary, secondary or none
	key      string
}

// actionRegistry maps chat view actions to their default keys. Any of them can
// be overridden in the [actions] table of keybindings.toml.
var actionRegistry = map[string]actionDef{
	"help":                {"primary", "h"},
	"quit":                {"primary", "q"},
	"new_conversation":    {"primary", "n"},
	"conversation_picker": {"primary", "o"},
	"toggle_incognito":    {"primary", "t"},
	"yank_last_response":  {"primary", "y"},
	"yank_conversation":   {"secondary", "y"},
	"toggle_steps":        {"primary", "s"},

	"scroll_down":      {"primary", "j"},
	"scroll_up":        {"primary", "k"},
	"half_page_down":   {"secondary", "j"},
	"half_page_up":     {"secondary", "k"},
	"scroll_to_top":    {"primary", "g"},
	"scroll_to_bottom": {"secondary", "g"},

	"picker_down":  {"none", "down"},
	"picker_up":    {"none", "up"},
	"picker_close": {"none", "esc"},
}

// DefaultKeybindings returns the built-in modifiers with no overrides.
func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   "alt",
			Secondary: "alt+shift",
		},
	}
}

// LoadKeybindings reads <root>/keybindings.toml. A missing file yields the
// defaults.
func LoadKeybindings(root string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	path := filepath.Join(root, keybindingsFile)

	if !FileExists(path) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keybindings: %w", err)
	}

	if cfg.Modifiers.Primary == "" {
		cfg.Modifiers.Primary = "alt"
	}
	if cfg.Modifiers.Secondary == "" {
		cfg.Modifiers.Secondary = "alt+shift"
	}

	if ok, warning := cfg.Validate(); !ok {
		return nil, fmt.Errorf("invalid keybindings: %s", warning)
	} else if warning != "" {
		l := Component("config")
		l.Warn().Str("path", path).Msg("[Config] " + warning)
	}

	return cfg, nil
}

// GenerateKeybindingsTemplate returns the keybindings.toml written by init.
func GenerateKeybindingsTemplate() string {
	return `# mcpchat keybindings
# Location: <root>/keybindings.toml

[modifiers]
primary = "alt"          # alt, ctrl, meta, super
secondary = "alt+shift"

# Per-action overrides. Actions: help, quit, new_conversation,
# conversation_picker, toggle_incognito, yank_last_response,
# yank_conversation, toggle_steps, scroll_down, scroll_up, half_page_down,
# half_page_up, scroll_to_top, scroll_to_bottom, picker_down, picker_up,
# picker_close
[actions]
# conversation_picker = "ctrl+o"
# quit = "ctrl+shift+q"
`
}

// Primary returns the primary modifier
func (kb *KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return "alt"
	}
	return kb.Modifiers.Primary
}

// Secondary returns the secondary modifier
func (kb *KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return "alt+shift"
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey builds a keybinding string with primary modifier
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey builds a keybinding string with the secondary modifier. When
// that modifier includes shift and key is a lowercase letter, the letter is
// upper-cased instead, which is what terminals report: "alt+shift" and "s"
// give "alt+S".
func (kb *KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	if strings.Contains(strings.ToLower(secondary), "shift") && len(key) == 1 && key[0] >= 'a' && key[0] <= 'z' {
		var mods []string
		for _, part := range strings.Split(secondary, "+") {
			if strings.ToLower(part) != "shift" {
				mods = append(mods, part)
			}
		}
		if len(mods) > 0 {
			return strings.Join(mods, "+") + "+" + strings.ToUpper(key)
		}
		return strings.ToUpper(key)
	}

	return secondary + "+" + key
}

// GetActionKey returns the key for an action: the user override when set,
// else the registry default. Unknown actions return "".
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if override, ok := kb.Actions[action]; ok && override != "" {
		return override
	}

	def, ok := actionRegistry[action]
	if !ok {
		return ""
	}
	switch def.modifier {
	case "primary":
		return kb.PrimaryKey(def.key)
	case "secondary":
		return kb.SecondaryKey(def.key)
	}
	return def.key
}

// DisplayActionKey returns a display-friendly version of an action's keybinding
// Example: "ctrl+shift+j" -> "Ctrl+Shift+J"
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return capitalizeKeybinding(key)
}

// capitalizeKeybinding renders "alt+D" as "Alt+Shift+D".
func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")

	hasShift := false
	for _, p := range parts {
		if strings.ToLower(p) == "shift" {
			hasShift = true
		}
	}

	var result []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				result = append(result, "Shift")
			}
			result = append(result, part)
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}

	return strings.Join(result, "+")
}

// Validate returns (isValid, warningMessage)
func (kb *KeyBindingsConfig) Validate() (bool, string) {
	primary := kb.Primary()
	secondary := kb.Secondary()

	if primary == "shift" || secondary == "shift" {
		return false, "Shift alone conflicts with typing"
	}

	if strings.Contains(primary, "ctrl") || strings.Contains(secondary, "ctrl") {
		return true, "Ctrl may conflict with terminal shortcuts (Ctrl+C, Ctrl+Z, Ctrl+D)"
	}

	return true, ""
}
