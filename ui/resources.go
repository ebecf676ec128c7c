package ui

import (
	"fmt"
	"strings"

	"mcpchat/mcp"
)

// FormatResources lists resources grouped by backend. Backends whose listing
// failed show the error in place of their resources.
func FormatResources(groups []mcp.ServerResources) string {
	if len(groups) == 0 {
		return "No tool servers connected."
	}

	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", g.Server)

		if g.Err != nil {
			fmt.Fprintf(&b, "  (failed to list resources: %v)\n", g.Err)
			continue
		}
		if len(g.Resources) == 0 {
			b.WriteString("  (no resources)\n")
			continue
		}
		for _, r := range g.Resources {
			line := "  " + r.URI
			if r.Name != "" && r.Name != r.URI {
				line += "  " + r.Name
			}
			if r.MIMEType != "" {
				line += "  [" + r.MIMEType + "]"
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
