package agent

import (
	"context"

	"ventwave/internal/llm"
)

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Sender dispatches one user turn to the model. emit may be nil; calls to
// it are serialized.
type Sender interface {
	Send(ctx context.Context, input llm.Input, emit func(Event)) (*llm.Response, error)
}
