package agent

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseToolArguments decodes the argument text of a tool call. Strict JSON is
// tried first; models sometimes emit single-quoted or otherwise relaxed
// mappings, which are read as a YAML flow mapping where the unquoted
// literals None, True and False mean null, true and false. Anything that is
// not a mapping yields an empty map, so a bad call never stops the turn.
func ParseToolArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return map[string]any{}
	}
	rewriteLiterals(&doc)

	args = nil
	if err := doc.Decode(&args); err == nil && args != nil {
		return args
	}

	return map[string]any{}
}

// rewriteLiterals retags plain None/True/False scalars. Quoted ones stay
// strings.
func rewriteLiterals(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Style == 0 {
		switch n.Value {
		case "None":
			n.Tag, n.Value = "!!null", "null"
		case "True":
			n.Tag, n.Value = "!!bool", "true"
		case "False":
			n.Tag, n.Value = "!!bool", "false"
		}
	}
	for _, c := range n.Content {
		rewriteLiterals(c)
	}
}
