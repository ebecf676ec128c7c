package ui

import (
	"context"

	"mcpchat/model"
	"mcpchat/storage"
)

// turnStartedMsg carries the event stream of a turn that has begun. saveErr
// is set when the user message could not be stored; the turn still runs.
type turnStartedMsg struct {
	events  <-chan model.Event
	cancel  context.CancelFunc
	saveErr error
}

type agentEventMsg struct {
	event model.Event
}

// turnDoneMsg is sent once the event stream is closed.
type turnDoneMsg struct{}

type conversationsMsg struct {
	conversations []storage.Conversation
	err           error
}

// conversationSwitchedMsg reports the outcome of starting or loading a conversation.
type conversationSwitchedMsg struct {
	title string
	err   error
}
