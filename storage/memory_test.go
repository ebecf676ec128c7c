package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/model"
)

func newTestStore(t *testing.T, opts ...Option) *MemoryStore {
	t.Helper()
	ms, err := NewMemoryStore(filepath.Join(t.TempDir(), "memory.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })
	return ms
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestMessagesKeepInsertionOrderWithCollidingTimestamps(t *testing.T) {
	frozen := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ms := newTestStore(t, WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	const n = 25
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		_, err := ms.AddMessage(ctx, conv.ID, model.Message{Role: role, Content: fmt.Sprintf("message %02d", i)})
		require.NoError(t, err)
	}

	msgs, err := ms.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("message %02d", i), m.Content)
		assert.Equal(t, frozen, m.Timestamp)
		if i > 0 {
			assert.Greater(t, m.ID, msgs[i-1].ID)
		}
	}
}

func TestAddMessagePreservesToolMetadata(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	call := model.Message{
		Role:      model.RoleAssistant,
		ToolCalls: []model.ToolCall{{ID: "call_1", Name: "search_arxiv", Arguments: `{"query":"llm"}`}},
	}
	result := model.ToolMessage("call_1", "[]")

	_, err = ms.AddMessage(ctx, conv.ID, call)
	require.NoError(t, err)
	_, err = ms.AddMessage(ctx, conv.ID, result)
	require.NoError(t, err)

	msgs, err := ms.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, call.ToolCalls, msgs[0].ToolCalls)
	assert.Equal(t, "call_1", msgs[1].ToolCallID)
	assert.Equal(t, model.RoleTool, msgs[1].Role)
}

func TestAddMessageUnknownConversation(t *testing.T) {
	ms := newTestStore(t)

	_, err := ms.AddMessage(context.Background(), "missing", model.UserMessage("hi"))
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestAddMessageBumpsUpdatedAt(t *testing.T) {
	ms := newTestStore(t, WithClock(steppingClock()))
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	_, err = ms.AddMessage(ctx, conv.ID, model.UserMessage("hello"))
	require.NoError(t, err)

	got, err := ms.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))
	assert.Equal(t, conv.CreatedAt, got.CreatedAt)
}

func TestSaveSummaryUpserts(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	none, err := ms.GetSummary(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, ms.SaveSummary(ctx, conv.ID, "first", 1))
	require.NoError(t, ms.SaveSummary(ctx, conv.ID, "second", 4))

	var rows int
	require.NoError(t, ms.db.QueryRow(`SELECT COUNT(*) FROM summaries WHERE conversation_id = ?`, conv.ID).Scan(&rows))
	assert.Equal(t, 1, rows)

	s, err := ms.GetSummary(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "second", s.Text)
	assert.Equal(t, int64(4), s.ThroughMessageID)
}

func TestTitle(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	title, err := ms.GetTitle(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, title)

	require.NoError(t, ms.UpdateTitle(ctx, conv.ID, "Attention papers"))
	title, err = ms.GetTitle(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Attention papers", title)

	assert.ErrorIs(t, ms.UpdateTitle(ctx, "missing", "x"), ErrConversationNotFound)
	_, err = ms.GetTitle(ctx, "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDeleteConversationCascades(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	keep, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)
	drop, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	for _, id := range []string{keep.ID, drop.ID} {
		_, err := ms.AddMessage(ctx, id, model.UserMessage("quantum error correction"))
		require.NoError(t, err)
		require.NoError(t, ms.SaveSummary(ctx, id, "summary", 1))
	}

	require.NoError(t, ms.DeleteConversation(ctx, drop.ID))

	_, err = ms.GetConversation(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msgs, err := ms.GetMessages(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	s, err := ms.GetSummary(ctx, drop.ID)
	require.NoError(t, err)
	assert.Nil(t, s)

	found, err := ms.ListConversations(ctx, "quantum")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, keep.ID, found[0].ID)
}

func TestListConversationsOrderedByUpdate(t *testing.T) {
	ms := newTestStore(t, WithClock(steppingClock()))
	ctx := context.Background()

	first, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)
	second, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	_, err = ms.AddMessage(ctx, first.ID, model.UserMessage("bump"))
	require.NoError(t, err)

	convs, err := ms.ListConversations(ctx, "")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)

	latest, err := ms.LatestConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestListConversationsLimit(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < defaultListLimit+5; i++ {
		_, err := ms.CreateConversation(ctx, true)
		require.NoError(t, err)
	}

	convs, err := ms.ListConversations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, convs, defaultListLimit)
}

func TestListConversationsSearch(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantFTS bool
	}{
		{name: "full-text index", wantFTS: true},
		{name: "substring fallback", opts: []Option{WithoutFTS()}, wantFTS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newTestStore(t, tt.opts...)
			ctx := context.Background()
			assert.Equal(t, tt.wantFTS, ms.FTSEnabled())

			byTitle, err := ms.CreateConversation(ctx, true)
			require.NoError(t, err)
			require.NoError(t, ms.UpdateTitle(ctx, byTitle.ID, "Diffusion models survey"))
			_, err = ms.AddMessage(ctx, byTitle.ID, model.UserMessage("unrelated text"))
			require.NoError(t, err)

			byBody, err := ms.CreateConversation(ctx, true)
			require.NoError(t, err)
			require.NoError(t, ms.UpdateTitle(ctx, byBody.ID, "Reading list"))
			_, err = ms.AddMessage(ctx, byBody.ID, model.AssistantMessage("Here are three diffusion papers."))
			require.NoError(t, err)

			neither, err := ms.CreateConversation(ctx, true)
			require.NoError(t, err)
			require.NoError(t, ms.UpdateTitle(ctx, neither.ID, "Graph networks"))
			_, err = ms.AddMessage(ctx, neither.ID, model.UserMessage("message passing"))
			require.NoError(t, err)

			convs, err := ms.ListConversations(ctx, "diffusion")
			require.NoError(t, err)

			ids := make([]string, 0, len(convs))
			for _, c := range convs {
				ids = append(ids, c.ID)
			}
			assert.ElementsMatch(t, []string{byTitle.ID, byBody.ID}, ids)
		})
	}
}

func TestListConversationsSearchEscapesWildcards(t *testing.T) {
	ms := newTestStore(t, WithoutFTS())
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)
	_, err = ms.AddMessage(ctx, conv.ID, model.UserMessage("accuracy of 95 percent"))
	require.NoError(t, err)

	convs, err := ms.ListConversations(ctx, "95%")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSearchMessages(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithoutFTS()}} {
		ms := newTestStore(t, opts...)
		ctx := context.Background()

		conv, err := ms.CreateConversation(ctx, true)
		require.NoError(t, err)
		require.NoError(t, ms.UpdateTitle(ctx, conv.ID, "Vision"))
		long := "Vision transformers " + strings.Repeat("patch ", 40)
		_, err = ms.AddMessage(ctx, conv.ID, model.AssistantMessage(long))
		require.NoError(t, err)

		matches, err := ms.SearchMessages(ctx, "transformers", 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, conv.ID, matches[0].ConversationID)
		assert.Equal(t, "Vision", matches[0].ConversationTitle)
		assert.True(t, strings.HasSuffix(matches[0].Preview, "..."))
		assert.Len(t, []rune(matches[0].Preview), previewLength+3)

		empty, err := ms.SearchMessages(ctx, "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	}
}

func TestRoundTripAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	ms, err := NewMemoryStore(path)
	require.NoError(t, err)

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	want := []model.Message{
		model.UserMessage("What is retrieval augmented generation?"),
		model.AssistantMessage("RAG combines retrieval with generation."),
		model.UserMessage("Any surveys?"),
		model.AssistantMessage("Yes, several."),
	}
	for _, m := range want {
		_, err := ms.AddMessage(ctx, conv.ID, m)
		require.NoError(t, err)
	}
	require.NoError(t, ms.SaveSummary(ctx, conv.ID, "old summary", 2))
	require.NoError(t, ms.SaveSummary(ctx, conv.ID, "User is surveying RAG.", 4))
	require.NoError(t, ms.Close())

	reopened, err := NewMemoryStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	msgs, err := reopened.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, len(want))
	for i, m := range msgs {
		assert.Equal(t, want[i].Role, m.Role)
		assert.Equal(t, want[i].Content, m.Content)
	}

	s, err := reopened.GetSummary(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "User is surveying RAG.", s.Text)

	tail, err := reopened.GetMessagesAfter(ctx, conv.ID, msgs[1].ID)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "Any surveys?", tail[0].Content)
}

func TestOpenMigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
	CREATE TABLE conversations (id TEXT PRIMARY KEY, title TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL, is_persistent INTEGER NOT NULL DEFAULT 1);
	CREATE TABLE messages (id INTEGER PRIMARY KEY AUTOINCREMENT, conversation_id TEXT NOT NULL, role TEXT NOT NULL, content TEXT NOT NULL, created_at TEXT NOT NULL);
	CREATE TABLE summaries (conversation_id TEXT PRIMARY KEY, summary TEXT NOT NULL, updated_at TEXT NOT NULL);
	INSERT INTO conversations VALUES ('c1', 'Old chat', '2024-05-01T10:00:00Z', '2024-05-01T10:00:00Z', 1);
	INSERT INTO messages (conversation_id, role, content, created_at) VALUES ('c1', 'user', 'neural radiance fields', '2024-05-01T10:00:00Z');
	INSERT INTO summaries VALUES ('c1', 'NeRF discussion', '2024-05-01T10:00:00Z');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	ms, err := NewMemoryStore(path)
	require.NoError(t, err)
	defer ms.Close()

	for _, col := range []struct{ table, column string }{
		{"messages", "tool_call_id"},
		{"messages", "tool_calls"},
		{"summaries", "through_message_id"},
	} {
		ok, err := ms.columnExists(col.table, col.column)
		require.NoError(t, err)
		assert.True(t, ok, col.column)
	}

	ctx := context.Background()
	msgs, err := ms.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), msgs[0].Timestamp)

	s, err := ms.GetSummary(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(0), s.ThroughMessageID)

	// pre-existing rows are indexed when the full-text table is first created
	convs, err := ms.ListConversations(ctx, "radiance")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
}

func TestConcurrentWriters(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	conv, err := ms.CreateConversation(ctx, true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := ms.AddMessage(ctx, conv.ID, model.UserMessage(fmt.Sprintf("w%d-%d", i, j)))
				assert.NoError(t, err)
			}
			assert.NoError(t, ms.SaveSummary(ctx, conv.ID, fmt.Sprintf("writer %d", i), 0))
		}(i)
	}
	wg.Wait()

	msgs, err := ms.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 80)
}
