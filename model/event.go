package model

// EventType identifies a progress event emitted while a turn is processed.
type EventType string

const (
	EventStepStart      EventType = "step_start"
	EventStepUpdateName EventType = "step_update_name"
	EventStepOutput     EventType = "step_output"
	EventUsage          EventType = "usage"
	EventMessage        EventType = "message"
	EventError          EventType = "error"
)

// StepType distinguishes model steps from tool steps.
type StepType string

const (
	StepLLM  StepType = "llm"
	StepTool StepType = "tool"
)

// Event is one entry of the ordered stream a turn produces for the presentation layer.
// Only the fields relevant to Type are populated:
//   - step_start: Name, StepType, Input ([]Message snapshot for llm steps, raw argument text for tools)
//   - step_update_name: Name
//   - step_output: Output
//   - usage: Usage
//   - message, error: Content
type Event struct {
	Type     EventType
	Name     string
	StepType StepType
	Input    any
	Output   string
	Content  string
	Usage    *Usage
}

func StepStartEvent(name string, stepType StepType, input any) Event {
	return Event{Type: EventStepStart, Name: name, StepType: stepType, Input: input}
}

func StepUpdateNameEvent(name string) Event {
	return Event{Type: EventStepUpdateName, Name: name}
}

func StepOutputEvent(output string) Event {
	return Event{Type: EventStepOutput, Output: output}
}

func UsageEvent(u Usage) Event {
	return Event{Type: EventUsage, Usage: &u}
}

func MessageEvent(content string) Event {
	return Event{Type: EventMessage, Content: content}
}

func ErrorEvent(content string) Event {
	return Event{Type: EventError, Content: content}
}
