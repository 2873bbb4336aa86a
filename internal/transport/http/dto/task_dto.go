package dto

import (
	"github.com/tubesum/backend/internal/domain"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Stream frame types
const (
	EventTypeStatus   = "status"
	EventTypeArtifact = "artifact"
	EventTypeError    = "error"
)

// StreamFrame is one websocket message on a task stream.
type StreamFrame struct {
	Type  string           `json:"type"`
	Event domain.TaskEvent `json:"event,omitempty"`
	Error string           `json:"error,omitempty"`
	Final bool             `json:"final"`
}

func EventToFrame(ev domain.TaskEvent) StreamFrame {
	frame := StreamFrame{Type: EventTypeStatus, Event: ev, Final: ev.IsFinal()}
	if _, ok := ev.(domain.TaskArtifactUpdateEvent); ok {
		frame.Type = EventTypeArtifact
	}
	return frame
}

func ErrorFrame(err error) StreamFrame {
	return StreamFrame{Type: EventTypeError, Error: err.Error(), Final: true}
}
