package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const previewLength = 100

// MessageMatch is a message whose content matched a search query.
type MessageMatch struct {
	ConversationID    string
	ConversationTitle string
	MessageID         int64
	Role              string
	Preview           string
	Timestamp         time.Time
}

// ListConversations returns up to 50 conversations, most recently updated first.
// With a non-empty search term, only conversations whose title contains the term
// or whose messages match it are returned. Message matching uses the full-text
// index when available and a substring scan otherwise.
func (ms *MemoryStore) ListConversations(ctx context.Context, search string) ([]Conversation, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	search = strings.TrimSpace(search)
	if search == "" {
		return ms.queryConversations(ctx,
			`SELECT id, title, created_at, updated_at, is_persistent FROM conversations
			 ORDER BY updated_at DESC, rowid DESC LIMIT ?`, defaultListLimit)
	}

	like := likePattern(search)

	if ms.ftsEnabled {
		convs, err := ms.queryConversations(ctx,
			`SELECT id, title, created_at, updated_at, is_persistent FROM conversations
			 WHERE title LIKE ? ESCAPE '\'
			    OR id IN (SELECT conversation_id FROM messages_fts WHERE messages_fts MATCH ?)
			 ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
			like, ftsQuery(search), defaultListLimit)
		if err == nil {
			return convs, nil
		}
		ms.log.Warn().Err(err).Str("search", search).Msg("[Memory] full-text query failed, falling back to substring search")
	}

	return ms.queryConversations(ctx,
		`SELECT id, title, created_at, updated_at, is_persistent FROM conversations
		 WHERE title LIKE ? ESCAPE '\'
		    OR id IN (SELECT conversation_id FROM messages WHERE content LIKE ? ESCAPE '\')
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		like, like, defaultListLimit)
}

func (ms *MemoryStore) queryConversations(ctx context.Context, query string, args ...any) ([]Conversation, error) {
	rows, err := ms.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// SearchMessages finds messages across all conversations that match query.
// System messages are never stored, so every match is user, assistant or tool content.
func (ms *MemoryStore) SearchMessages(ctx context.Context, query string, limit int) ([]MessageMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageMatch{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ftsEnabled {
		matches, err := ms.queryMatches(ctx,
			`SELECT m.id, m.conversation_id, COALESCE(c.title, ''), m.role, m.content, m.created_at
			 FROM messages_fts f
			 JOIN messages m ON m.id = f.rowid
			 JOIN conversations c ON c.id = m.conversation_id
			 WHERE messages_fts MATCH ?
			 ORDER BY bm25(messages_fts), m.id DESC LIMIT ?`,
			ftsQuery(query), limit)
		if err == nil {
			return matches, nil
		}
		ms.log.Warn().Err(err).Str("query", query).Msg("[Memory] full-text query failed, falling back to substring search")
	}

	return ms.queryMatches(ctx,
		`SELECT m.id, m.conversation_id, COALESCE(c.title, ''), m.role, m.content, m.created_at
		 FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.content LIKE ? ESCAPE '\'
		 ORDER BY m.id DESC LIMIT ?`,
		likePattern(query), limit)
}

func (ms *MemoryStore) queryMatches(ctx context.Context, query string, args ...any) ([]MessageMatch, error) {
	rows, err := ms.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	matches := []MessageMatch{}
	for rows.Next() {
		var m MessageMatch
		var content, createdAt string
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.ConversationTitle, &m.Role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Preview = preview(content)
		m.Timestamp = parseTime(createdAt)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ftsQuery turns free text into an FTS5 expression: every whitespace separated
// term becomes a quoted prefix match and all terms must occur.
func ftsQuery(search string) string {
	terms := strings.Fields(search)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(quoted, " ")
}

// likePattern builds a %term% pattern with LIKE wildcards escaped.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return content
}
