// Package agent drives conversations: it owns the message history, runs the
// model/tool loop for each turn and persists what needs to survive a restart.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mcpchat/config"
	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/storage"
	"mcpchat/tokenizer"
)

const summaryPreamble = "Conversation summary for continuity. Use this to maintain context across sessions.\n\n"

// ToolGateway is the tool side of the loop.
type ToolGateway interface {
	ListTools(ctx context.Context) (mcp.Catalog, error)
	CallTool(ctx context.Context, cat mcp.Catalog, name string, args map[string]any) (string, error)
	DrainSamplingUsage() []model.Usage
}

// ConversationStore is the part of the memory store the engine writes to.
type ConversationStore interface {
	CreateConversation(ctx context.Context, persistent bool) (*storage.Conversation, error)
	GetConversation(ctx context.Context, id string) (*storage.Conversation, error)
	AddMessage(ctx context.Context, conversationID string, msg model.Message) (int64, error)
	GetMessages(ctx context.Context, conversationID string) ([]storage.StoredMessage, error)
	GetMessagesAfter(ctx context.Context, conversationID string, afterID int64) ([]storage.StoredMessage, error)
	GetTitle(ctx context.Context, conversationID string) (string, error)
	UpdateTitle(ctx context.Context, conversationID, title string) error
	GetSummary(ctx context.Context, conversationID string) (*storage.Summary, error)
	SaveSummary(ctx context.Context, conversationID, text string, throughMessageID int64) error
}

// Engine is the conversation driver. One turn runs at a time; the summary
// scheduler may call PersistSummary concurrently.
type Engine struct {
	settings     *config.Settings
	client       model.Client
	tools        ToolGateway
	store        ConversationStore
	counter      *tokenizer.Counter
	systemPrompt string
	log          zerolog.Logger

	mu             sync.Mutex
	messages       []model.Message
	conversationID string
	persistent     bool
	dirty          bool
	writes         uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables persistence. Without it every conversation is incognito.
func WithStore(store ConversationStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithCounter sets the tokenizer used for local usage estimates.
func WithCounter(counter *tokenizer.Counter) Option {
	return func(e *Engine) {
		e.counter = counter
	}
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// NewEngine creates an engine with an empty, unsaved conversation.
func NewEngine(settings *config.Settings, client model.Client, tools ToolGateway, opts ...Option) *Engine {
	e := &Engine{
		settings:     settings,
		client:       client,
		tools:        tools,
		systemPrompt: config.DefaultSystemPrompt,
		log:          config.Component("agent"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.counter == nil && settings.TokenUsageEnabled {
		e.counter = tokenizer.New(settings.TokenizerModel)
	}
	e.ResetContext()
	return e
}

// ResetContext drops the in-memory history back to the system prompt.
func (e *Engine) ResetContext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = []model.Message{model.SystemMessage(e.systemPrompt)}
}

func (e *Engine) memoryAvailable() bool {
	return e.store != nil && e.settings.MemoryEnabled
}

// StartConversation begins a new conversation. It is stored only when
// persistent is true and memory is available; otherwise it is incognito.
func (e *Engine) StartConversation(ctx context.Context, persistent bool) error {
	e.ResetContext()

	var id string
	if persistent && e.memoryAvailable() {
		conv, err := e.store.CreateConversation(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to start conversation: %w", err)
		}
		id = conv.ID
	}

	e.mu.Lock()
	e.conversationID = id
	e.persistent = id != ""
	e.dirty = false
	e.mu.Unlock()

	e.log.Debug().Str("conversation", id).Bool("persistent", id != "").Msg("[Agent] Conversation started")
	return nil
}

// LoadConversation resumes a stored conversation. When persistent, the stored
// summary is injected as a system message and only the messages newer than
// the summary are replayed; without a summary every message is replayed.
// A conversation loaded with persistent false keeps its id but starts empty
// and is never written to.
func (e *Engine) LoadConversation(ctx context.Context, id string, persistent bool) error {
	if e.store == nil {
		return errors.New("memory is disabled")
	}
	if _, err := e.store.GetConversation(ctx, id); err != nil {
		return err
	}

	e.ResetContext()
	persistent = persistent && e.memoryAvailable()

	var restored []model.Message
	if persistent {
		summary, err := e.store.GetSummary(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load summary: %w", err)
		}

		var after int64
		if summary != nil && summary.Text != "" {
			restored = append(restored, model.SystemMessage(summaryPreamble+summary.Text))
			after = summary.ThroughMessageID
		}

		stored, err := e.store.GetMessagesAfter(ctx, id, after)
		if err != nil {
			return fmt.Errorf("failed to load messages: %w", err)
		}
		for _, m := range stored {
			restored = append(restored, model.Message{Role: m.Role, Content: m.Content})
		}
	}

	e.mu.Lock()
	e.messages = append(e.messages, restored...)
	e.conversationID = id
	e.persistent = persistent
	e.dirty = false
	e.mu.Unlock()

	e.log.Debug().Str("conversation", id).Int("restored", len(restored)).Msg("[Agent] Conversation loaded")
	return nil
}

// ConversationID is empty for an incognito conversation.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}

func (e *Engine) IsPersistent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistent
}

// Messages returns a copy of the history.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneMessages(e.messages)
}

// AssistantName is the label used for model steps.
func (e *Engine) AssistantName() string {
	return e.settings.AssistantName
}

// AddUserMessage appends a user message, stores it and titles the
// conversation on its first user message. The message stays in history even
// when storing it fails.
func (e *Engine) AddUserMessage(ctx context.Context, content string) error {
	e.appendMessage(model.UserMessage(content))

	if err := e.storeMessage(ctx, model.UserMessage(content)); err != nil {
		return err
	}
	return e.ensureTitle(ctx, content)
}

func (e *Engine) appendMessage(msg model.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *Engine) history() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneMessages(e.messages)
}

func (e *Engine) lastRole() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.messages) == 0 {
		return ""
	}
	return e.messages[len(e.messages)-1].Role
}

// persistTarget returns the conversation to write to, or "" when nothing
// should be stored.
func (e *Engine) persistTarget() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.persistent || e.store == nil {
		return ""
	}
	return e.conversationID
}

// storeMessage persists a non-empty message and marks the conversation dirty.
func (e *Engine) storeMessage(ctx context.Context, msg model.Message) error {
	id := e.persistTarget()
	if id == "" || msg.Content == "" {
		return nil
	}

	if _, err := e.store.AddMessage(ctx, id, msg); err != nil {
		return fmt.Errorf("failed to store %s message: %w", msg.Role, err)
	}

	e.mu.Lock()
	e.dirty = true
	e.writes++
	e.mu.Unlock()
	return nil
}

func (e *Engine) ensureTitle(ctx context.Context, content string) error {
	id := e.persistTarget()
	if id == "" {
		return nil
	}

	current, err := e.store.GetTitle(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read title: %w", err)
	}
	if current != "" {
		return nil
	}

	title := storage.TitleFromMessage(content)
	if title == "" {
		return nil
	}
	if err := e.store.UpdateTitle(ctx, id, title); err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	return nil
}

// SummaryDue reports whether the active conversation has unsummarized writes.
func (e *Engine) SummaryDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistent && e.dirty && e.settings.MemorySummaryEnabled
}

// Dirty reports whether messages were stored since the last summary.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}
