package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mcpchat/mcp"
	"mcpchat/model"
)

const (
	toolCallRequested = "Tool Call Requested"
	responseGenerated = "Response generated."
	eventBuffer       = 16
)

// turnState is the position of a turn in the model/tool cycle.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateExecutingTools
	stateForcedFinal
	stateTerminal
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateExecutingTools:
		return "executing_tools"
	case stateForcedFinal:
		return "forced_final"
	case stateTerminal:
		return "terminal"
	}
	return "unknown"
}

// turn carries the state of one ProcessTurn run.
type turn struct {
	engine  *Engine
	ctx     context.Context
	out     chan<- model.Event
	catalog mcp.Catalog
	pending []model.ToolCall
	calls   int
}

// ProcessTurn answers the latest user message. The model is called with the
// current tool catalog until it replies without tool calls or the per-turn
// budget of model calls is spent; when the budget runs out right after tool
// results, one last call is made without tools. Progress is delivered in order
// on the returned channel, which is closed when the turn ends. Every failure
// ends the turn with exactly one error event.
func (e *Engine) ProcessTurn(ctx context.Context) <-chan model.Event {
	out := make(chan model.Event, eventBuffer)

	go func() {
		defer close(out)
		t := &turn{engine: e, ctx: ctx, out: out}
		t.run()
	}()

	return out
}

func (t *turn) run() {
	budget := t.engine.settings.MaxTurns
	if budget <= 0 {
		budget = 1
	}

	state := stateAwaitingModel
	for state != stateTerminal {
		t.engine.log.Debug().Str("state", state.String()).Int("model_calls", t.calls).Msg("[Agent] Turn step")

		switch state {
		case stateAwaitingModel:
			if t.calls >= budget {
				state = stateForcedFinal
				continue
			}
			state = t.awaitModel()
		case stateExecutingTools:
			state = t.executeTools()
		case stateForcedFinal:
			t.forcedFinal()
			state = stateTerminal
		}
	}
}

// emit delivers ev unless the consumer has gone away.
func (t *turn) emit(ev model.Event) bool {
	select {
	case t.out <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *turn) fail(format string, args ...any) turnState {
	msg := fmt.Sprintf(format, args...)
	t.engine.log.Warn().Str("error", msg).Msg("[Agent] Turn aborted")
	t.emit(model.ErrorEvent(msg))
	return stateTerminal
}

func (t *turn) awaitModel() turnState {
	e := t.engine

	cat, err := e.tools.ListTools(t.ctx)
	if err != nil {
		return t.fail("Failed to list tools: %v", err)
	}
	t.catalog = cat

	history := e.history()
	if !t.emit(model.StepStartEvent(e.settings.AssistantName, model.StepLLM, history)) {
		return stateTerminal
	}

	t.calls++
	resp, err := e.client.Complete(t.ctx, model.ChatRequest{
		Messages: history,
		Tools:    cat.Tools(),
	})
	if err != nil {
		return t.fail("LLM Error: %v", err)
	}

	t.emitUsage(history, resp)

	output := resp.Message.Content
	if output == "" {
		output = toolCallRequested
	}
	t.emit(model.StepOutputEvent(output))

	if !resp.Message.HasToolCalls() {
		t.finish(resp.Message, true)
		return stateTerminal
	}

	e.appendMessage(resp.Message)
	t.pending = resp.Message.ToolCalls
	return stateExecutingTools
}

func (t *turn) emitUsage(prompt []model.Message, resp *model.ChatResponse) {
	if usage, ok := t.engine.modelUsage(prompt, resp); ok {
		t.emit(model.UsageEvent(usage))
	}
}

// finish records the final answer, stores it and hands it to the consumer.
func (t *turn) finish(msg model.Message, announce bool) {
	e := t.engine
	e.appendMessage(msg)

	if announce {
		t.emit(model.StepOutputEvent(responseGenerated))
	}
	t.emit(model.MessageEvent(msg.Content))

	if err := e.storeMessage(t.ctx, model.AssistantMessage(msg.Content)); err != nil {
		t.fail("Failed to save response: %v", err)
	}
}

// executeTools runs the pending calls sequentially, in the order the model
// requested them. Failures become tool messages; the turn continues.
func (t *turn) executeTools() turnState {
	for _, call := range t.pending {
		if t.ctx.Err() != nil {
			return stateTerminal
		}
		t.executeTool(call)
	}
	t.pending = nil
	return stateAwaitingModel
}

func (t *turn) executeTool(call model.ToolCall) {
	e := t.engine
	t.emit(model.StepStartEvent(call.Name, model.StepTool, call.Arguments))

	args := ParseToolArguments(call.Arguments)
	name := call.Name

	if !t.catalog.Has(name) {
		// models often shorten the arXiv search tool
		if name == "search" {
			name = arxivSearchToolName
			t.emit(model.StepUpdateNameEvent(arxivSearchToolName + " (corrected)"))
		} else {
			t.toolError(call, fmt.Sprintf("Tool '%s' not found. Available tools: %s", name, bracketList(t.catalog.Names())))
			return
		}
	}

	content, err := e.tools.CallTool(t.ctx, t.catalog, name, args)
	// sampling done by the server during this call is reported after its output
	sampling := e.tools.DrainSamplingUsage()
	defer func() {
		for _, usage := range sampling {
			t.emit(model.UsageEvent(usage))
		}
	}()

	if err != nil {
		if errors.Is(err, mcp.ErrToolNotFound) {
			t.toolError(call, fmt.Sprintf("Tool '%s' not found. Available tools: %s", name, bracketList(t.catalog.Names())))
			return
		}
		t.toolError(call, err.Error())
		return
	}

	t.emit(model.StepOutputEvent(DisplayOutput(name, content)))
	e.appendMessage(model.ToolMessage(call.ID, content))
}

func (t *turn) toolError(call model.ToolCall, reason string) {
	msg := "Error executing tool: " + reason
	t.engine.log.Debug().Str("tool", call.Name).Str("error", reason).Msg("[Agent] Tool call failed")
	t.engine.appendMessage(model.ToolMessage(call.ID, msg))
	t.emit(model.StepOutputEvent(msg))
}

// forcedFinal makes one tool-less model call when the budget ran out with
// tool results still unanswered.
func (t *turn) forcedFinal() {
	e := t.engine
	if e.lastRole() != model.RoleTool {
		return
	}

	history := e.history()
	if !t.emit(model.StepStartEvent(e.settings.AssistantName+" (Final)", model.StepLLM, history)) {
		return
	}

	t.calls++
	resp, err := e.client.Complete(t.ctx, model.ChatRequest{Messages: history})
	if err != nil {
		t.fail("Final LLM Error: %v", err)
		return
	}

	t.emitUsage(history, resp)
	t.emit(model.StepOutputEvent(resp.Message.Content))

	// no tools were offered, so any tool calls are dropped
	final := model.AssistantMessage(resp.Message.Content)
	t.finish(final, false)
}

// bracketList renders names as ['a', 'b'].
func bracketList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
