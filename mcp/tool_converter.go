package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"mcpchat/model"
)

// ConvertMCPTools converts MCP tools to model tool descriptors
func ConvertMCPTools(mcpTools []mcptypes.Tool) []model.ToolDescriptor {
	descriptors := make([]model.ToolDescriptor, 0, len(mcpTools))

	for _, mcpTool := range mcpTools {
		descriptors = append(descriptors, model.ToolDescriptor{
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			InputSchema: convertInputSchema(mcpTool),
		})
	}

	return descriptors
}

// convertInputSchema flattens an MCP input schema into a generic JSON schema map.
// A raw schema, when the server supplied one, takes precedence.
func convertInputSchema(tool mcptypes.Tool) map[string]any {
	if len(tool.RawInputSchema) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(tool.RawInputSchema, &raw); err == nil {
			return raw
		}
	}

	inputSchema := tool.InputSchema
	schema := map[string]any{
		"type": inputSchema.Type,
	}
	if inputSchema.Type == "" {
		schema["type"] = "object"
	}

	properties := make(map[string]any, len(inputSchema.Properties))
	for name, prop := range inputSchema.Properties {
		properties[name] = convertPropertyValue(prop)
	}
	schema["properties"] = properties

	if len(inputSchema.Required) > 0 {
		schema["required"] = inputSchema.Required
	}

	// Handle $defs if present
	if inputSchema.Defs != nil {
		schema["$defs"] = inputSchema.Defs
	}
	if inputSchema.AdditionalProperties != nil {
		schema["additionalProperties"] = inputSchema.AdditionalProperties
	}

	return schema
}

// convertPropertyValue normalizes a property definition to a plain map so it
// serializes the same way regardless of the Go type the server used.
func convertPropertyValue(propValue any) any {
	if propMap, ok := propValue.(map[string]any); ok {
		return propMap
	}

	// If it's not a map, try to marshal and unmarshal it
	bytes, err := json.Marshal(propValue)
	if err != nil {
		return propValue
	}
	var m map[string]any
	if err := json.Unmarshal(bytes, &m); err != nil {
		return propValue
	}
	return m
}

// ExtractText renders a tool result as the text fed back to the model.
// Text blocks are joined with newlines; embedded text resources contribute
// their text; other content kinds are included as JSON.
func ExtractText(result *mcptypes.CallToolResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, c.Text)
		case *mcptypes.TextContent:
			parts = append(parts, c.Text)
		case mcptypes.EmbeddedResource:
			if text, ok := mcptypes.AsTextResourceContents(c.Resource); ok {
				parts = append(parts, text.Text)
				continue
			}
			parts = append(parts, marshalContent(c))
		default:
			parts = append(parts, marshalContent(c))
		}
	}

	if len(parts) == 0 && result.StructuredContent != nil {
		return marshalContent(result.StructuredContent)
	}

	return strings.Join(parts, "\n")
}

func marshalContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ResourceText renders the contents of a read resource. Blob contents are
// reported by MIME type and size only.
func ResourceText(result *mcptypes.ReadResourceResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Contents))
	for _, content := range result.Contents {
		switch c := content.(type) {
		case mcptypes.TextResourceContents:
			parts = append(parts, c.Text)
		case *mcptypes.TextResourceContents:
			parts = append(parts, c.Text)
		case mcptypes.BlobResourceContents:
			parts = append(parts, blobLabel(c.MIMEType, len(c.Blob)))
		case *mcptypes.BlobResourceContents:
			parts = append(parts, blobLabel(c.MIMEType, len(c.Blob)))
		}
	}
	return strings.Join(parts, "\n")
}

func blobLabel(mimeType string, size int) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("[binary %s, %d base64 bytes]", mimeType, size)
}
