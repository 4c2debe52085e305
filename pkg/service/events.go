package service

import (
	"encoding/json"
	"fmt"
)

// Stream event types. Only these five values ever reach a client.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventAnswer   = "answer"
	EventDone     = "done"
	EventError    = "error"
)

// Progress reports plan completion for multi-step requests.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// StreamEvent is the wire-stable streaming payload.
type StreamEvent struct {
	Type     string    `json:"type"`
	Content  string    `json:"content,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// SSE renders the event in text/event-stream framing.
func (e StreamEvent) SSE() []byte {
	payload, err := json.Marshal(e)
	if err != nil {
		// Events are built from plain strings and ints; this cannot
		// happen for well-formed events.
		payload = []byte(`{"type":"error","content":"event serialization failed"}`)
	}
	return []byte(fmt.Sprintf("data: %s\n\n", payload))
}

// EmitFunc consumes stream events. Returning an error stops the run;
// the emitter is never called again after it errors.
type EmitFunc func(StreamEvent) error
