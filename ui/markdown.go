package ui

import (
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
)

const (
	codeBar    = "┃"
	codeBorder = "━"

	ansiRed      = "\x1b[31m"
	ansiDarkGray = "\x1b[90m"
	ansiReset    = "\x1b[0m"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s\x1b]+)`)
)

// RenderMarkdown renders content for a terminal of the given width. Links are
// reduced to plain red URLs so terminals can detect them, inline code is red
// and code blocks are framed.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	content = preprocessLinks(content)

	// autolink stays off so URLs remain plain text
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return postProcessMarkdown(string(rendered), width)
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = colorURLs(rendered)
	rendered = frameCodeBlocks(rendered, width)
	return strings.TrimRight(rendered, "\n")
}

// preprocessLinks turns [text](url) into url.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode swaps the renderer's blue-background inline code for red text.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, ansiRed+"$1"+ansiReset)
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, ansiRed+"$1"+ansiReset)
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's ┃ gutter with a top border labelled
// [code] and a plain bottom border.
func frameCodeBlocks(s string, width int) string {
	lineLen := width - 4
	if lineLen < 8 {
		lineLen = 8
	}
	bottom := ansiDarkGray + strings.Repeat(codeBorder, lineLen) + ansiReset

	label := "[code]"
	left := (lineLen - len(label)) / 2
	right := lineLen - len(label) - left
	top := ansiDarkGray + strings.Repeat(codeBorder, left) + ansiReset + label +
		ansiDarkGray + strings.Repeat(codeBorder, right) + ansiReset

	var result []string
	inCode := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inCode {
				inCode = true
				result = append(result, "", top, "")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}
		if inCode {
			result = append(result, "", bottom, "")
			inCode = false
		}
		result = append(result, line)
	}
	if inCode {
		result = append(result, "", bottom, "")
	}

	return strings.Join(result, "\n")
}

// stripCodeBlockPrefix drops everything up to and including the ┃ and one
// following space.
func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	after := idx + len(codeBar)
	if after < len(line) && line[after] == ' ' {
		after++
	}
	return line[after:]
}
