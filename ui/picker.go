package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"mcpchat/storage"
)

const untitled = "Untitled conversation"

// pickerState is the conversation picker: every stored conversation, narrowed
// by a fuzzy filter over titles.
type pickerState struct {
	active   bool
	loading  bool
	err      error
	input    textinput.Model
	all      []storage.Conversation
	filtered []storage.Conversation
	selected int
}

func newPickerState() pickerState {
	input := textinput.New()
	input.Prompt = "Filter: "
	input.CharLimit = 64
	return pickerState{input: input}
}

func (p *pickerState) open() {
	p.active = true
	p.loading = true
	p.err = nil
	p.selected = 0
	p.input.SetValue("")
	p.input.Focus()
}

func (p *pickerState) close() {
	p.active = false
	p.input.Blur()
}

func (p *pickerState) setConversations(convs []storage.Conversation, err error) {
	p.loading = false
	p.err = err
	p.all = convs
	p.applyFilter()
}

func conversationLabel(c storage.Conversation) string {
	if c.Title == "" {
		return untitled
	}
	return c.Title
}

// applyFilter keeps recency order for an empty filter and fuzzy rank order
// otherwise.
func (p *pickerState) applyFilter() {
	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		p.filtered = p.all
	} else {
		targets := make([]string, len(p.all))
		for i, c := range p.all {
			targets[i] = conversationLabel(c)
		}
		matches := fuzzy.Find(query, targets)
		p.filtered = make([]storage.Conversation, len(matches))
		for i, m := range matches {
			p.filtered[i] = p.all[m.Index]
		}
	}

	if p.selected >= len(p.filtered) {
		p.selected = len(p.filtered) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

func (p *pickerState) move(delta int) {
	next := p.selected + delta
	if next >= 0 && next < len(p.filtered) {
		p.selected = next
	}
}

func (p *pickerState) current() (storage.Conversation, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return storage.Conversation{}, false
	}
	return p.filtered[p.selected], true
}

func (p pickerState) render(currentID string, footer string, width, height int) string {
	modalWidth := width - 10
	if modalWidth > 100 {
		modalWidth = 100
	}
	if modalWidth < 30 {
		modalWidth = 30
	}

	title := lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Width(modalWidth).Render("Conversations")

	header := lipgloss.NewStyle().
		Foreground(dimColor).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(p.input.View() + "  " + fmt.Sprintf("%d of %d", len(p.filtered), len(p.all)))

	var lines []string
	switch {
	case p.loading:
		lines = append(lines, DimStyle.Render("Loading..."))
	case p.err != nil:
		lines = append(lines, ErrorStyle.Render("Failed to list conversations: "+p.err.Error()))
	case len(p.filtered) == 0 && len(p.all) == 0:
		lines = append(lines, DimStyle.Italic(true).Render("No stored conversations yet."))
	case len(p.filtered) == 0:
		lines = append(lines, DimStyle.Italic(true).Render("No matches found"))
	default:
		maxLines := height - 10
		if maxLines < 3 {
			maxLines = 3
		}
		start := 0
		if p.selected >= maxLines {
			start = p.selected - maxLines + 1
		}
		for i := start; i < len(p.filtered) && i < start+maxLines; i++ {
			lines = append(lines, p.renderRow(i, currentID, modalWidth))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		header,
		strings.Join(lines, "\n"),
		"",
		footer,
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}

func (p pickerState) renderRow(i int, currentID string, width int) string {
	c := p.filtered[i]

	marker := "  "
	if c.ID == currentID {
		marker = "● "
	}
	date := c.UpdatedAt.Format("2006-01-02 15:04")
	label := clipWidth(conversationLabel(c), width-len(date)-6)

	row := marker + label
	if pad := width - 2 - len(date) - 2 - runewidth.StringWidth(row); pad > 0 {
		row += strings.Repeat(" ", pad)
	}
	row += "  " + DimStyle.Render(date)

	if i == p.selected {
		return SelectedStyle.Render("▸ ") + SelectedStyle.Render(row)
	}
	return "  " + row
}
