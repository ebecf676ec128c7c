package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"mcpchat/model"
)

// PrintEvents writes a plain-text progress log of a turn to w and returns the
// final answer. An error event ends the log and is returned as the error.
func PrintEvents(w io.Writer, events <-chan model.Event) (string, error) {
	var (
		answer string
		failed error
	)

	for ev := range events {
		switch ev.Type {
		case model.EventStepStart:
			if ev.StepType == model.StepTool {
				fmt.Fprintf(w, "🔧 %s %s\n", ev.Name, inputText(ev.Input))
			} else {
				fmt.Fprintf(w, "◆ %s\n", ev.Name)
			}
		case model.EventStepUpdateName:
			fmt.Fprintf(w, "  ↳ %s\n", ev.Name)
		case model.EventStepOutput:
			first, rest, _ := strings.Cut(ev.Output, "\n")
			if rest != "" {
				first += " ..."
			}
			fmt.Fprintf(w, "  %s\n", clipWidth(first, 120))
		case model.EventUsage:
			if ev.Usage != nil {
				fmt.Fprintf(w, "  %s\n", formatUsage(*ev.Usage))
			}
		case model.EventMessage:
			answer = ev.Content
		case model.EventError:
			fmt.Fprintf(w, "error: %s\n", ev.Content)
			failed = errors.New(ev.Content)
		}
	}

	return answer, failed
}

func inputText(input any) string {
	if s, ok := input.(string); ok {
		return clipWidth(s, 100)
	}
	return ""
}
