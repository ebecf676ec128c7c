package agent

import (
	"context"
	"fmt"
	"strings"

	"mcpchat/model"
)

const (
	summarizerPrompt   = "You are a concise conversation summarizer."
	summaryInstruction = "Summarize the following conversation for future continuation. " +
		"Focus on user goals, decisions, constraints, and open tasks. " +
		"Keep it concise.\n\n"
	summaryTemperature = 0.2
)

// PersistSummary summarizes every stored message of the active conversation
// and saves the result together with the id of the newest message it covers.
// It does nothing for incognito conversations, when summaries are disabled, or
// when nothing has been stored yet. The dirty flag is cleared only if no
// message was stored while the summary was being generated.
func (e *Engine) PersistSummary(ctx context.Context) error {
	if !e.settings.MemorySummaryEnabled {
		return nil
	}

	id := e.persistTarget()
	if id == "" {
		return nil
	}

	e.mu.Lock()
	writes := e.writes
	e.mu.Unlock()

	stored, err := e.store.GetMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load messages for summary: %w", err)
	}
	if len(stored) == 0 {
		return nil
	}

	lines := make([]string, len(stored))
	for i, m := range stored {
		lines[i] = m.Role + ": " + m.Content
	}

	resp, err := e.client.Complete(ctx, model.ChatRequest{
		Messages: []model.Message{
			model.SystemMessage(summarizerPrompt),
			model.UserMessage(summaryInstruction + strings.Join(lines, "\n")),
		},
		MaxTokens:   model.Int(e.settings.MemorySummaryMaxTokens),
		Temperature: model.Float(summaryTemperature),
	})
	if err != nil {
		return fmt.Errorf("failed to summarize conversation: %w", err)
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		e.log.Debug().Str("conversation", id).Msg("[Summary] Model returned an empty summary")
		return nil
	}

	through := stored[len(stored)-1].ID
	if err := e.store.SaveSummary(ctx, id, text, through); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	e.mu.Lock()
	if e.writes == writes {
		e.dirty = false
	}
	e.mu.Unlock()

	e.log.Debug().Str("conversation", id).Int64("through", through).Int("chars", len(text)).Msg("[Summary] Summary saved")
	return nil
}
