package domain

import "time"

type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// IsTerminal reports whether no further transition may leave the state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
)

type Part struct {
	Type     PartType       `json:"type"`
	Text     string         `json:"text,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func DataPart(data any) Part {
	return Part{Type: PartTypeData, Data: data}
}

type Message struct {
	Role     Role           `json:"role" validate:"required,oneof=user agent"`
	Parts    []Part         `json:"parts" validate:"required,min=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func AgentMessage(text string) *Message {
	return &Message{Role: RoleAgent, Parts: []Part{TextPart(text)}}
}

// FirstText returns the text of the first text part.
func (m Message) FirstText() (string, bool) {
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			return p.Text, true
		}
	}
	return "", false
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTaskStatus(state TaskState, msg *Message) TaskStatus {
	return TaskStatus{State: state, Message: msg, Timestamp: time.Now().UTC()}
}

type Artifact struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index"`
	Append      *bool          `json:"append,omitempty"`
	LastChunk   *bool          `json:"lastChunk,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone copies the task so callers can read it without holding the owner's lock.
func (t *Task) Clone() *Task {
	c := *t
	if t.Status.Message != nil {
		msg := *t.Status.Message
		c.Status.Message = &msg
	}
	c.Artifacts = append([]Artifact(nil), t.Artifacts...)
	c.History = append([]Message(nil), t.History...)
	return &c
}

// WithHistory returns a copy keeping only the last n history messages.
// A nil or non-positive length drops history entirely.
func (t *Task) WithHistory(length *int) *Task {
	c := t.Clone()
	if length == nil || *length <= 0 {
		c.History = nil
		return c
	}
	if n := *length; len(c.History) > n {
		c.History = c.History[len(c.History)-n:]
	}
	return c
}

type TaskSendParams struct {
	ID                  string         `json:"id" validate:"required"`
	SessionID           string         `json:"sessionId,omitempty"`
	Message             Message        `json:"message"`
	AcceptedOutputModes []string       `json:"acceptedOutputModes,omitempty"`
	HistoryLength       *int           `json:"historyLength,omitempty" validate:"omitempty,min=0"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type TaskQueryParams struct {
	ID            string         `json:"id" validate:"required"`
	HistoryLength *int           `json:"historyLength,omitempty" validate:"omitempty,min=0"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type TaskIDParams struct {
	ID       string         `json:"id" validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
