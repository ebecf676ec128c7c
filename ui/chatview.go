package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"mcpchat/config"
	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/storage"
)

// Engine is the conversation driver the chat view talks to.
type Engine interface {
	AddUserMessage(ctx context.Context, content string) error
	ProcessTurn(ctx context.Context) <-chan model.Event
	StartConversation(ctx context.Context, persistent bool) error
	LoadConversation(ctx context.Context, id string, persistent bool) error
	ConversationID() string
	IsPersistent() bool
	Messages() []model.Message
	AssistantName() string
}

// ConversationLister backs the conversation picker.
type ConversationLister interface {
	ListConversations(ctx context.Context, search string) ([]storage.Conversation, error)
	GetTitle(ctx context.Context, conversationID string) (string, error)
}

// Options configures a ChatView.
type Options struct {
	Keys *config.KeyBindingsConfig
	// Conversations is nil when memory is disabled; the picker is then unavailable.
	Conversations ConversationLister
	// Incognito is the mode used for conversations started from the view.
	Incognito bool
	Model     string
	Title     string
	Resources []mcp.ServerResources
}

// ChatView is the bubbletea model of the chat screen. It never touches the
// model or tool servers directly: it adds user messages to the engine and
// renders the events of each turn as they arrive.
type ChatView struct {
	ctx     context.Context
	engine  Engine
	lister  ConversationLister
	keys    *config.KeyBindingsConfig
	model   string
	log     zerolog.Logger
	copyFn  func(string) error
	nowFn   func() time.Time
	spinner spinner.Model

	viewport viewport.Model
	textarea textarea.Model

	width  int
	height int
	ready  bool

	transcript  []entry
	title       string
	incognito   bool
	expandSteps bool
	showHelp    bool
	picker      pickerState
	status      string

	running    bool
	events     <-chan model.Event
	cancelTurn context.CancelFunc
	lastAnswer string
	usage      usageTotals
}

// NewChatView creates the chat screen for engine. ctx bounds every turn.
func NewChatView(ctx context.Context, engine Engine, opts Options) ChatView {
	keys := opts.Keys
	if keys == nil {
		keys = config.DefaultKeybindings()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about a research topic..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	// Enter sends; Alt+Enter inserts a newline
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	v := ChatView{
		ctx:       ctx,
		engine:    engine,
		lister:    opts.Conversations,
		keys:      keys,
		model:     opts.Model,
		log:       config.Component("ui"),
		copyFn:    clipboard.WriteAll,
		nowFn:     time.Now,
		spinner:   sp,
		viewport:  viewport.New(0, 0),
		textarea:  ta,
		title:     opts.Title,
		incognito: opts.Incognito,
		picker:    newPickerState(),
	}

	v.transcript = transcriptFromHistory(engine.Messages(), 80)
	if len(opts.Resources) > 0 {
		v.transcript = append([]entry{{kind: entryInfo, body: "Resources\n" + FormatResources(opts.Resources)}}, v.transcript...)
	}

	return v
}

func (v ChatView) Init() tea.Cmd {
	return textarea.Blink
}

func (v ChatView) View() string {
	if !v.ready {
		return "Loading mcpchat..."
	}

	if v.showHelp {
		return renderHelpModal(v.keys, v.width, v.height)
	}

	if v.picker.active {
		footer := FormatFooter("Enter", "Resume", "Up/Down", "Move", "Esc", "Close")
		return v.picker.render(v.engine.ConversationID(), footer, v.width, v.height)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		v.renderTitle(),
		"",
		v.viewport.View(),
		v.textarea.View(),
		v.renderStatus(),
	)
}

func (v ChatView) renderTitle() string {
	title := AssistantStyle.Render("mcpchat")
	if v.model != "" {
		title += TitleStyle.Render(" - " + v.model)
	}

	name := v.title
	if name == "" {
		name = "New conversation"
	}
	title += UserStyle.Render(" - " + clipWidth(name, 40))

	if !v.engine.IsPersistent() {
		title += IncognitoStyle.Render(" | incognito")
	}
	if v.incognito {
		title += DimStyle.Render(" | next: incognito")
	}
	if v.usage.total > 0 {
		title += DimStyle.Render(fmt.Sprintf(" | tokens %d in / %d out", v.usage.input, v.usage.output))
	}
	if v.running {
		title += " " + v.spinner.View()
	}
	return title
}

func (v ChatView) renderStatus() string {
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	parts := []string{
		v.keys.DisplayActionKey("quit") + " " + descStyle.Render("Quit"),
		v.keys.DisplayActionKey("new_conversation") + " " + descStyle.Render("New"),
	}
	if v.lister != nil {
		parts = append(parts, v.keys.DisplayActionKey("conversation_picker")+" "+descStyle.Render("Resume"))
	}
	parts = append(parts,
		v.keys.DisplayActionKey("yank_last_response")+" "+descStyle.Render("Copy"),
		v.keys.DisplayActionKey("help")+" "+descStyle.Render("Help"),
	)

	status := strings.Join(parts, "  ")
	if v.status != "" {
		status = v.status + "  " + status
	}
	return StatusStyle.Render(status)
}

// refresh re-renders the transcript into the viewport.
func (v *ChatView) refresh(gotoBottom bool) {
	v.viewport.SetContent(renderTranscript(v.transcript, v.engine.AssistantName(), v.expandSteps, v.width))
	if gotoBottom {
		v.viewport.GotoBottom()
	}
}
