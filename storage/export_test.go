package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/model"
)

func TestTitleFromMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "single line", content: "Find papers on RAG", want: "Find papers on RAG"},
		{name: "first line only", content: "  Compare LoRA variants\nwith details\n", want: "Compare LoRA variants"},
		{name: "blank", content: " \n\t", want: ""},
		{name: "capped at sixty runes", content: strings.Repeat("é", 70), want: strings.Repeat("é", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromMessage(tt.content))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "RAG-vs-fine-tuning--2024", SanitizeFilename("RAG vs fine/tuning: 2024?"))
	assert.Equal(t, "conversation", SanitizeFilename("..//.."))
	assert.Len(t, []rune(SanitizeFilename(strings.Repeat("a", 80))), 50)
}

func TestGenerateExportPath(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	got := GenerateExportPath("/tmp/out", "Find papers", now)
	assert.Equal(t, filepath.Join("/tmp/out", "mcpchat-Find-papers-20250304-050607.json"), got)
}

func TestExportToJSON(t *testing.T) {
	ms := newTestStore(t, WithClock(steppingClock()))
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)
	require.NoError(t, ms.UpdateTitle(ctx, conv.ID, "Diffusion survey"))
	first, err := ms.AddMessage(ctx, conv.ID, model.UserMessage("survey diffusion models"))
	require.NoError(t, err)
	_, err = ms.AddMessage(ctx, conv.ID, model.AssistantMessage("Here is a survey."))
	require.NoError(t, err)
	require.NoError(t, ms.SaveSummary(ctx, conv.ID, "user wants a diffusion survey", first))

	path := filepath.Join(t.TempDir(), "nested", "export.json")
	require.NoError(t, ms.ExportToJSON(ctx, conv.ID, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export ConversationExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, conv.ID, export.ID)
	assert.Equal(t, "Diffusion survey", export.Title)
	assert.Equal(t, "user wants a diffusion survey", export.Summary)
	require.Len(t, export.Messages, 2)
	assert.Equal(t, model.RoleUser, export.Messages[0].Role)
	assert.Equal(t, "Here is a survey.", export.Messages[1].Content)
	assert.True(t, export.Messages[0].CreatedAt.Before(export.Messages[1].CreatedAt))
}

func TestExportUnknownConversation(t *testing.T) {
	ms := newTestStore(t)
	err := ms.ExportToJSON(context.Background(), "missing", filepath.Join(t.TempDir(), "x.json"))
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
