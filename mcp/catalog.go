package mcp

import (
	"mcpchat/model"
)

// ServerTools is the tool list one backend reported.
type ServerTools struct {
	Server string
	Tools  []model.ToolDescriptor
}

// Catalog is an immutable snapshot of the aggregated tool set and the route
// from each tool name to the backend that owns it. A catalog is built once per
// turn iteration and handed to CallTool, so dispatch always agrees with the
// schemas the model was shown.
type Catalog struct {
	tools  []model.ToolDescriptor
	routes map[string]string
}

// BuildCatalog aggregates backend tool lists in the order given. When two
// backends expose the same name, the later backend wins: its descriptor
// replaces the earlier one in place and the route points to it.
func BuildCatalog(servers []ServerTools) Catalog {
	cat := Catalog{routes: make(map[string]string)}
	index := make(map[string]int)

	for _, st := range servers {
		for _, tool := range st.Tools {
			if i, seen := index[tool.Name]; seen {
				cat.tools[i] = tool
			} else {
				index[tool.Name] = len(cat.tools)
				cat.tools = append(cat.tools, tool)
			}
			cat.routes[tool.Name] = st.Server
		}
	}

	return cat
}

// Tools returns a copy of the descriptors.
func (c Catalog) Tools() []model.ToolDescriptor {
	return append([]model.ToolDescriptor(nil), c.tools...)
}

// Names lists tool names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

func (c Catalog) Has(name string) bool {
	_, ok := c.routes[name]
	return ok
}

// Route returns the backend that owns name.
func (c Catalog) Route(name string) (string, bool) {
	server, ok := c.routes[name]
	return server, ok
}

func (c Catalog) Len() int {
	return len(c.tools)
}
