package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"mcpchat/model"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryStep
	entryError
	entryInfo
)

// entry is one block of the transcript.
type entry struct {
	kind     entryKind
	at       time.Time
	title    string
	stepType model.StepType
	body     string
	usage    []model.Usage
	rendered string // markdown output for assistant entries
}

// usageTotals accumulates the usage events of the current session.
type usageTotals struct {
	input, output, total int
}

func (u *usageTotals) add(usage model.Usage) {
	u.input += usage.Input
	u.output += usage.Output
	u.total += usage.Total
}

// transcriptFromHistory rebuilds the visible transcript of a loaded
// conversation. Only user and assistant turns are shown; a restored summary
// is reduced to a note.
func transcriptFromHistory(history []model.Message, width int) []entry {
	var entries []entry
	for i, m := range history {
		switch m.Role {
		case model.RoleUser:
			entries = append(entries, entry{kind: entryUser, body: m.Content})
		case model.RoleAssistant:
			if m.Content == "" {
				continue
			}
			entries = append(entries, entry{kind: entryAssistant, body: m.Content, rendered: RenderMarkdown(m.Content, width)})
		case model.RoleSystem:
			if i > 0 {
				entries = append(entries, entry{kind: entryInfo, body: "Summary of earlier messages restored."})
			}
		}
	}
	return entries
}

// renderTranscript lays out entries for the viewport. Steps are a single
// clipped line unless expanded.
func renderTranscript(entries []entry, assistant string, expandSteps bool, width int) string {
	if len(entries) == 0 {
		return DimStyle.Render("No messages yet. Ask about a research topic to get started.")
	}

	var b strings.Builder
	for _, e := range entries {
		switch e.kind {
		case entryUser:
			b.WriteString(formatUserMessage(timestamp(e.at), UserStyle.Render("You"), e.body))
		case entryAssistant:
			body := e.rendered
			if body == "" {
				body = e.body
			}
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp(e.at), AssistantStyle.Render(assistant), body)
		case entryStep:
			b.WriteString(formatStep(e, expandSteps, width))
		case entryError:
			fmt.Fprintf(&b, "%s %s\n\n", ErrorStyle.Render("Error:"), e.body)
		case entryInfo:
			fmt.Fprintf(&b, "%s\n\n", DimStyle.Render(e.body))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func timestamp(at time.Time) string {
	if at.IsZero() {
		return DimStyle.Render("[--:--]")
	}
	return DimStyle.Render(at.Format("[15:04]"))
}

func formatUserMessage(ts, role, content string) string {
	bar := UserStyle.Render("┃")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", bar, ts, role)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

func formatStep(e entry, expand bool, width int) string {
	icon := "◆"
	if e.stepType == model.StepTool {
		icon = "🔧"
	}
	header := StepStyle.Render(icon + " " + e.title)

	var usage []string
	for _, u := range e.usage {
		usage = append(usage, formatUsage(u))
	}
	if len(usage) > 0 {
		header += " " + DimStyle.Render(strings.Join(usage, ", "))
	}

	if e.body == "" {
		return header + "\n"
	}

	if expand {
		return header + "\n" + DimStyle.Render(indent(e.body, "  ")) + "\n\n"
	}

	firstLine, _, _ := strings.Cut(e.body, "\n")
	return header + "\n" + DimStyle.Render("  "+clipWidth(firstLine, width-4)) + "\n"
}

func formatUsage(u model.Usage) string {
	return fmt.Sprintf("[%s %s: %d in / %d out]", u.Source, u.Method, u.Input, u.Output)
}

// clipWidth truncates s to width terminal cells.
func clipWidth(s string, width int) string {
	if width <= 3 {
		width = 3
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
