package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mcpchat/model"
)

const defaultListLimit = 50

// Conversation is one stored chat.
type Conversation struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsPersistent bool
}

// StoredMessage is a persisted message with its insertion sequence number.
type StoredMessage struct {
	ID int64
	model.Message
}

// Summary is the rolling summary of a conversation. ThroughMessageID is the id of
// the newest message the summary covers.
type Summary struct {
	ConversationID   string
	Text             string
	ThroughMessageID int64
	UpdatedAt        time.Time
}

// CreateConversation inserts a new conversation with a fresh id and no title.
func (ms *MemoryStore) CreateConversation(ctx context.Context, persistent bool) (*Conversation, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.timestamp()
	conv := &Conversation{
		ID:           uuid.NewString(),
		CreatedAt:    parseTime(now),
		UpdatedAt:    parseTime(now),
		IsPersistent: persistent,
	}

	_, err := ms.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at, is_persistent) VALUES (?, NULL, ?, ?, ?)`,
		conv.ID, now, now, boolToInt(persistent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	ms.log.Debug().Str("conversation", conv.ID).Msg("[Memory] created conversation")
	return conv, nil
}

// GetConversation loads a conversation's metadata.
func (ms *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	row := ms.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, is_persistent FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// LatestConversation returns the most recently updated conversation, or
// ErrConversationNotFound when the store is empty.
func (ms *MemoryStore) LatestConversation(ctx context.Context) (*Conversation, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	row := ms.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, is_persistent FROM conversations
		 ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest conversation: %w", err)
	}
	return conv, nil
}

// AddMessage appends msg to the conversation and bumps its updated_at.
// It returns the message's sequence id.
func (ms *MemoryStore) AddMessage(ctx context.Context, conversationID string, msg model.Message) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	toolCalls := ""
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return 0, fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	now := ms.timestamp()
	var id int64
	err := ms.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConversationNotFound
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, tool_call_id, tool_calls, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			conversationID, msg.Role, msg.Content, msg.ToolCallID, toolCalls, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetMessages returns every message of the conversation in insertion order.
func (ms *MemoryStore) GetMessages(ctx context.Context, conversationID string) ([]StoredMessage, error) {
	return ms.GetMessagesAfter(ctx, conversationID, 0)
}

// GetMessagesAfter returns the messages whose sequence id is greater than afterID,
// in insertion order.
func (ms *MemoryStore) GetMessagesAfter(ctx context.Context, conversationID string, afterID int64) ([]StoredMessage, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rows, err := ms.db.QueryContext(ctx,
		`SELECT id, role, content, tool_call_id, tool_calls, created_at FROM messages
		 WHERE conversation_id = ? AND id > ? ORDER BY id ASC`,
		conversationID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var toolCalls, createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.ToolCallID, &toolCalls, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls of message %d: %w", m.ID, err)
			}
		}
		m.Timestamp = parseTime(createdAt)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// UpdateTitle sets the conversation title.
func (ms *MemoryStore) UpdateTitle(ctx context.Context, conversationID, title string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	res, err := ms.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, ms.timestamp(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// GetTitle returns the title, or "" when none has been set.
func (ms *MemoryStore) GetTitle(ctx context.Context, conversationID string) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var title sql.NullString
	err := ms.db.QueryRowContext(ctx,
		`SELECT title FROM conversations WHERE id = ?`, conversationID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrConversationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load title: %w", err)
	}
	return title.String, nil
}

// SaveSummary stores the summary for a conversation, replacing any previous one.
func (ms *MemoryStore) SaveSummary(ctx context.Context, conversationID, text string, throughMessageID int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, err := ms.db.ExecContext(ctx,
		`INSERT INTO summaries (conversation_id, summary, through_message_id, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
			summary = excluded.summary,
			through_message_id = excluded.through_message_id,
			updated_at = excluded.updated_at`,
		conversationID, text, throughMessageID, ms.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// GetSummary returns the conversation summary, or nil when there is none.
func (ms *MemoryStore) GetSummary(ctx context.Context, conversationID string) (*Summary, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := Summary{ConversationID: conversationID}
	var updatedAt string
	err := ms.db.QueryRowContext(ctx,
		`SELECT summary, through_message_id, updated_at FROM summaries WHERE conversation_id = ?`,
		conversationID,
	).Scan(&s.Text, &s.ThroughMessageID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// DeleteConversation removes the conversation with its messages and summary.
func (ms *MemoryStore) DeleteConversation(ctx context.Context, conversationID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM messages WHERE conversation_id = ?`,
			`DELETE FROM summaries WHERE conversation_id = ?`,
			`DELETE FROM conversations WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, conversationID); err != nil {
				return fmt.Errorf("failed to delete conversation: %w", err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var title sql.NullString
	var createdAt, updatedAt string
	var persistent int
	if err := row.Scan(&c.ID, &title, &createdAt, &updatedAt, &persistent); err != nil {
		return nil, err
	}
	c.Title = title.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.IsPersistent = persistent != 0
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
