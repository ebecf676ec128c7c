package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcpchat/model"
)

const maxTitleRunes = 60

// TitleFromMessage derives a conversation title from the first user message:
// its first non-empty line, at most 60 characters. Blank input yields "".
func TitleFromMessage(content string) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	runes := []rune(line)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return string(runes)
}

// ExportedMessage is a message as written by ExportConversation.
type ExportedMessage struct {
	ID         int64            `json:"id"`
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []model.ToolCall `json:"tool_calls,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ConversationExport is the JSON document for one conversation.
type ConversationExport struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Summary   string            `json:"summary,omitempty"`
	Messages  []ExportedMessage `json:"messages"`
}

// BuildExport collects a conversation, its messages and its summary.
func (ms *MemoryStore) BuildExport(ctx context.Context, conversationID string) (*ConversationExport, error) {
	conv, err := ms.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := ms.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	summary, err := ms.GetSummary(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	export := &ConversationExport{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]ExportedMessage, 0, len(messages)),
	}
	if summary != nil {
		export.Summary = summary.Text
	}
	for _, m := range messages {
		export.Messages = append(export.Messages, ExportedMessage{
			ID:         m.ID,
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
			CreatedAt:  m.Timestamp,
		})
	}
	return export, nil
}

// ExportToJSON exports a conversation to a JSON file at the specified path
func (ms *MemoryStore) ExportToJSON(ctx context.Context, conversationID, exportPath string) error {
	export, err := ms.BuildExport(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Ensure directory exists (0700 - user-only access)
	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to file (0600 - exports contain conversation content)
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)

	// Remove leading/trailing hyphens and dots
	name = strings.Trim(name, "-.")

	// Limit length
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}

	if name == "" {
		name = "conversation"
	}

	return name
}

// GenerateExportPath returns <dir>/mcpchat-<title>-<timestamp>.json.
func GenerateExportPath(dir, title string, now time.Time) string {
	filename := fmt.Sprintf("mcpchat-%s-%s.json", SanitizeFilename(title), now.Format("20060102-150405"))
	return filepath.Join(dir, filename)
}
