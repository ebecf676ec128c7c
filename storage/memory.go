package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"mcpchat/config"
)

// ErrConversationNotFound is returned when an operation targets an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MemoryStore persists conversations, their messages and summaries in SQLite.
// All access goes through one connection guarded by a mutex, so foreground turn
// processing and the background summarizer can share a store safely.
type MemoryStore struct {
	mu         sync.Mutex
	db         *sql.DB
	path       string
	ftsEnabled bool
	log        zerolog.Logger
	now        func() time.Time
}

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithoutFTS disables the full-text index, forcing substring search. It exists
// for builds of SQLite without FTS5 and for exercising the fallback path.
func WithoutFTS() Option {
	return func(ms *MemoryStore) {
		ms.ftsEnabled = false
	}
}

// WithClock replaces time.Now, mainly for tests that need colliding timestamps.
func WithClock(now func() time.Time) Option {
	return func(ms *MemoryStore) {
		ms.now = now
	}
}

// NewMemoryStore opens (creating if needed) the database at dbPath.
func NewMemoryStore(dbPath string, opts ...Option) (*MemoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ms := &MemoryStore{
		db:         db,
		path:       dbPath,
		ftsEnabled: true,
		log:        config.Component("memory"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}

	if err := ms.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return ms, nil
}

func (ms *MemoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		is_persistent INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_call_id TEXT NOT NULL DEFAULT '',
		tool_calls TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	CREATE TABLE IF NOT EXISTS summaries (
		conversation_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		through_message_id INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`

	if _, err := ms.db.Exec(schema); err != nil {
		return err
	}

	// Databases written before tool metadata and summary high-water marks existed
	// lack these columns
	if err := ms.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	if ms.ftsEnabled {
		ms.ftsEnabled = ms.tryEnableFTS()
	}

	return nil
}

// migrateSchema adds missing columns to existing databases
func (ms *MemoryStore) migrateSchema() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"messages", "tool_call_id", `ALTER TABLE messages ADD COLUMN tool_call_id TEXT NOT NULL DEFAULT ''`},
		{"messages", "tool_calls", `ALTER TABLE messages ADD COLUMN tool_calls TEXT NOT NULL DEFAULT ''`},
		{"summaries", "through_message_id", `ALTER TABLE summaries ADD COLUMN through_message_id INTEGER NOT NULL DEFAULT 0`},
	}

	for _, m := range migrations {
		exists, err := ms.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", m.column, err)
		}

		switch {
		case !exists:
			if _, err := ms.db.Exec(m.ddl); err != nil {
				return fmt.Errorf("failed to add %s column: %w", m.column, err)
			}
			ms.log.Debug().Str("table", m.table).Str("column", m.column).Msg("[Memory] added column")
		}
	}

	return nil
}

// columnExists checks if a column exists in a table
func (ms *MemoryStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := ms.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}

		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// tryEnableFTS creates the external-content FTS5 index and its sync triggers.
// It reports false when the SQLite build has no FTS5, leaving search on the
// substring path.
func (ms *MemoryStore) tryEnableFTS() bool {
	var existing int
	if err := ms.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'messages_fts'`,
	).Scan(&existing); err != nil {
		ms.log.Warn().Err(err).Msg("[Memory] full-text search unavailable")
		return false
	}

	ddl := `
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		content,
		conversation_id UNINDEXED,
		content='messages',
		content_rowid='id'
	);
	CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, content, conversation_id)
		VALUES (new.id, new.content, new.conversation_id);
	END;
	CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, content, conversation_id)
		VALUES ('delete', old.id, old.content, old.conversation_id);
	END;
	CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, content, conversation_id)
		VALUES ('delete', old.id, old.content, old.conversation_id);
		INSERT INTO messages_fts(rowid, content, conversation_id)
		VALUES (new.id, new.content, new.conversation_id);
	END;
	`
	if _, err := ms.db.Exec(ddl); err != nil {
		ms.log.Warn().Err(err).Msg("[Memory] full-text search unavailable, using substring search")
		return false
	}

	// Index rows that predate the index
	if existing == 0 {
		if _, err := ms.db.Exec(`INSERT INTO messages_fts(messages_fts) VALUES ('rebuild')`); err != nil {
			ms.log.Warn().Err(err).Msg("[Memory] failed to rebuild full-text index")
			return false
		}
	}

	return true
}

// FTSEnabled reports whether message search uses the full-text index.
func (ms *MemoryStore) FTSEnabled() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.ftsEnabled
}

// Path returns the database file path.
func (ms *MemoryStore) Path() string {
	return ms.path
}

// Close closes the database. Further calls fail.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.db.Close()
}

func (ms *MemoryStore) timestamp() string {
	return ms.now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use plain RFC 3339
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// withTx runs fn in a transaction, rolling back on error.
func (ms *MemoryStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
