package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"mcpchat/config"
)

func renderHelpModal(kb *config.KeyBindingsConfig, width, height int) string {
	green := lipgloss.NewStyle().Bold(true).Foreground(successColor)
	blue := lipgloss.NewStyle().Foreground(accentColor)

	line := func(action, desc string) string {
		return fmt.Sprintf("• %-13s %s", kb.DisplayActionKey(action), desc)
	}

	conversation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Conversation"),
		"• Enter         Send message",
		"• Alt+Enter     New line",
		"• Esc           Stop the running turn",
		line("new_conversation", "New conversation"),
		line("conversation_picker", "Resume a conversation"),
		line("toggle_incognito", "Incognito for the next one"),
		line("toggle_steps", "Expand tool steps"),
		line("yank_last_response", "Copy last answer"),
		line("yank_conversation", "Copy conversation"),
		line("help", "Toggle this help"),
		line("quit", "Quit"),
	)

	navigation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Navigation"),
		line("scroll_down", "Scroll down 1 line"),
		line("scroll_up", "Scroll up 1 line"),
		line("half_page_down", "Half page down"),
		line("half_page_up", "Half page up"),
		line("scroll_to_top", "Jump to top"),
		line("scroll_to_bottom", "Jump to bottom"),
		"",
		blue.Render("## Picker"),
		"• Type          Fuzzy filter by title",
		"• Up/Down       Move",
		"• Enter         Resume",
		"• Esc           Close",
	)

	columnStyle := lipgloss.NewStyle().Width(44).PaddingLeft(2)
	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		columnStyle.Render(conversation),
		"  ",
		columnStyle.Render(navigation),
	)

	footer := DimStyle.Render(fmt.Sprintf("Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	content := lipgloss.JoinVertical(lipgloss.Center,
		green.Render("mcpchat - Keyboard Shortcuts"),
		"",
		columns,
		"",
		footer,
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
