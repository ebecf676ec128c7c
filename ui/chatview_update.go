package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"mcpchat/model"
	"mcpchat/storage"
)

// chrome is the height of everything but the viewport: title, blank line,
// textarea and status bar.
const chrome = 6

func (v ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if v.running {
		if _, ok := msg.(spinner.TickMsg); ok {
			var cmd tea.Cmd
			v.spinner, cmd = v.spinner.Update(msg)
			return v, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.viewport.Width = msg.Width
		v.viewport.Height = max(msg.Height-chrome, 1)
		v.textarea.SetWidth(msg.Width)
		v.rerenderAnswers()
		v.ready = true
		v.refresh(true)
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)

	case turnStartedMsg:
		v.events = msg.events
		v.cancelTurn = msg.cancel
		if msg.saveErr != nil {
			v.transcript = append(v.transcript, entry{kind: entryError, body: msg.saveErr.Error()})
			v.refresh(true)
		}
		return v, waitForEvent(v.events)

	case agentEventMsg:
		v.applyEvent(msg.event)
		v.refresh(true)
		return v, waitForEvent(v.events)

	case turnDoneMsg:
		v.endTurn()
		v.refresh(true)
		return v, nil

	case conversationsMsg:
		v.picker.setConversations(msg.conversations, msg.err)
		return v, nil

	case conversationSwitchedMsg:
		if msg.err != nil {
			v.transcript = append(v.transcript, entry{kind: entryError, body: msg.err.Error()})
		} else {
			v.title = msg.title
			v.usage = usageTotals{}
			v.lastAnswer = ""
			v.transcript = transcriptFromHistory(v.engine.Messages(), v.width)
			v.status = ""
		}
		v.refresh(true)
		return v, nil
	}

	var cmd tea.Cmd
	v.textarea, cmd = v.textarea.Update(msg)
	cmds = append(cmds, cmd)
	v.viewport, cmd = v.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return v, tea.Batch(cmds...)
}

func (v ChatView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	kb := v.keys

	if k == "ctrl+c" || k == kb.GetActionKey("quit") {
		if v.cancelTurn != nil {
			v.cancelTurn()
		}
		return v, tea.Quit
	}

	if v.showHelp {
		if k == "esc" || k == kb.GetActionKey("help") {
			v.showHelp = false
		}
		return v, nil
	}

	if v.picker.active {
		return v.handlePickerKey(msg)
	}

	switch k {
	case kb.GetActionKey("help"):
		v.showHelp = true
		return v, nil

	case kb.GetActionKey("yank_last_response"):
		v.copyText(v.lastAnswer, "last answer")
		return v, nil

	case kb.GetActionKey("yank_conversation"):
		v.copyText(conversationText(v.engine.Messages(), v.engine.AssistantName()), "conversation")
		return v, nil

	case kb.GetActionKey("toggle_steps"):
		v.expandSteps = !v.expandSteps
		v.refresh(false)
		return v, nil

	case kb.GetActionKey("toggle_incognito"):
		v.incognito = !v.incognito
		if v.incognito {
			v.status = "Next conversation is incognito"
		} else {
			v.status = "Next conversation is saved"
		}
		return v, nil

	case kb.GetActionKey("new_conversation"):
		if v.running {
			return v, nil
		}
		return v, v.switchConversation("", !v.incognito)

	case kb.GetActionKey("conversation_picker"):
		if v.running || v.lister == nil {
			return v, nil
		}
		v.picker.open()
		return v, tea.Batch(textinput.Blink, v.listConversations())

	case kb.GetActionKey("scroll_down"):
		v.viewport.ScrollDown(1)
		return v, nil
	case kb.GetActionKey("scroll_up"):
		v.viewport.ScrollUp(1)
		return v, nil
	case kb.GetActionKey("half_page_down"):
		v.viewport.HalfPageDown()
		return v, nil
	case kb.GetActionKey("half_page_up"):
		v.viewport.HalfPageUp()
		return v, nil
	case kb.GetActionKey("scroll_to_top"):
		v.viewport.GotoTop()
		return v, nil
	case kb.GetActionKey("scroll_to_bottom"):
		v.viewport.GotoBottom()
		return v, nil

	case "esc":
		if v.running && v.cancelTurn != nil {
			v.cancelTurn()
			v.status = "Stopping..."
		}
		return v, nil

	case "enter":
		text := strings.TrimSpace(v.textarea.Value())
		if v.running || text == "" {
			return v, nil
		}
		v.textarea.Reset()
		return v, v.send(text)
	}

	var cmd tea.Cmd
	v.textarea, cmd = v.textarea.Update(msg)
	return v, cmd
}

func (v ChatView) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := v.keys

	switch msg.String() {
	case kb.GetActionKey("picker_close"), kb.GetActionKey("conversation_picker"):
		v.picker.close()
		return v, nil
	case kb.GetActionKey("picker_down"):
		v.picker.move(1)
		return v, nil
	case kb.GetActionKey("picker_up"):
		v.picker.move(-1)
		return v, nil
	case "enter":
		conv, ok := v.picker.current()
		if !ok {
			return v, nil
		}
		v.picker.close()
		return v, v.switchConversation(conv.ID, true)
	}

	var cmd tea.Cmd
	v.picker.input, cmd = v.picker.input.Update(msg)
	v.picker.applyFilter()
	return v, cmd
}

// send records the user entry and starts a turn.
func (v *ChatView) send(text string) tea.Cmd {
	v.transcript = append(v.transcript, entry{kind: entryUser, at: v.nowFn(), body: text})
	if v.title == "" {
		v.title = storage.TitleFromMessage(text)
	}
	v.running = true
	v.status = ""
	v.refresh(true)

	ctx, cancel := context.WithCancel(v.ctx)
	engine := v.engine

	start := func() tea.Msg {
		saveErr := engine.AddUserMessage(ctx, text)
		return turnStartedMsg{events: engine.ProcessTurn(ctx), cancel: cancel, saveErr: saveErr}
	}
	return tea.Batch(start, v.spinner.Tick)
}

func waitForEvent(events <-chan model.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return turnDoneMsg{}
		}
		return agentEventMsg{event: ev}
	}
}

// applyEvent folds one turn event into the transcript.
func (v *ChatView) applyEvent(ev model.Event) {
	switch ev.Type {
	case model.EventStepStart:
		v.transcript = append(v.transcript, entry{kind: entryStep, at: v.nowFn(), title: ev.Name, stepType: ev.StepType})

	case model.EventStepUpdateName:
		if step := v.lastStep(); step != nil {
			step.title = ev.Name
		}

	case model.EventStepOutput:
		if step := v.lastStep(); step != nil {
			step.body = ev.Output
		}

	case model.EventUsage:
		if ev.Usage == nil {
			return
		}
		v.usage.add(*ev.Usage)
		if step := v.lastStep(); step != nil {
			step.usage = append(step.usage, *ev.Usage)
		}

	case model.EventMessage:
		v.lastAnswer = ev.Content
		v.transcript = append(v.transcript, entry{
			kind:     entryAssistant,
			at:       v.nowFn(),
			body:     ev.Content,
			rendered: RenderMarkdown(ev.Content, v.width),
		})

	case model.EventError:
		v.log.Debug().Str("error", ev.Content).Msg("[UI] Turn error")
		v.transcript = append(v.transcript, entry{kind: entryError, at: v.nowFn(), body: ev.Content})
	}
}

// lastStep returns the most recent step entry of the running turn.
func (v *ChatView) lastStep() *entry {
	for i := len(v.transcript) - 1; i >= 0; i-- {
		switch v.transcript[i].kind {
		case entryStep:
			return &v.transcript[i]
		case entryUser:
			return nil
		}
	}
	return nil
}

func (v *ChatView) endTurn() {
	if v.cancelTurn != nil {
		v.cancelTurn()
	}
	v.running = false
	v.events = nil
	v.cancelTurn = nil
	if v.status == "Stopping..." {
		v.status = "Stopped"
	}
}

func (v *ChatView) rerenderAnswers() {
	for i := range v.transcript {
		if v.transcript[i].kind == entryAssistant {
			v.transcript[i].rendered = RenderMarkdown(v.transcript[i].body, v.width)
		}
	}
}

func (v *ChatView) copyText(text, what string) {
	if text == "" {
		v.status = "Nothing to copy"
		return
	}
	if err := v.copyFn(text); err != nil {
		v.log.Warn().Err(err).Msg("[UI] Clipboard write failed")
		v.status = "Copy failed: " + err.Error()
		return
	}
	v.status = "Copied " + what
}

func (v ChatView) listConversations() tea.Cmd {
	lister := v.lister
	ctx := v.ctx
	return func() tea.Msg {
		convs, err := lister.ListConversations(ctx, "")
		return conversationsMsg{conversations: convs, err: err}
	}
}

// switchConversation starts a new conversation when id is empty and loads id
// otherwise.
func (v ChatView) switchConversation(id string, persistent bool) tea.Cmd {
	engine := v.engine
	lister := v.lister
	ctx := v.ctx
	return func() tea.Msg {
		if id == "" {
			return conversationSwitchedMsg{err: engine.StartConversation(ctx, persistent)}
		}
		if err := engine.LoadConversation(ctx, id, persistent); err != nil {
			return conversationSwitchedMsg{err: fmt.Errorf("failed to resume conversation: %w", err)}
		}
		return conversationSwitchedMsg{title: conversationTitle(ctx, lister, id)}
	}
}

func conversationTitle(ctx context.Context, lister ConversationLister, id string) string {
	if lister == nil {
		return ""
	}
	title, err := lister.GetTitle(ctx, id)
	if err != nil {
		return ""
	}
	return title
}

// conversationText renders the visible conversation as plain text.
func conversationText(history []model.Message, assistant string) string {
	var b strings.Builder
	for _, m := range history {
		var role string
		switch m.Role {
		case model.RoleUser:
			role = "You"
		case model.RoleAssistant:
			if m.Content == "" {
				continue
			}
			role = assistant
		default:
			continue
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
