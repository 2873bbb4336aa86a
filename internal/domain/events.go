package domain

// TaskEvent is one notification on a task's event stream.
type TaskEvent interface {
	TaskID() string
	IsFinal() bool
}

type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e TaskStatusUpdateEvent) TaskID() string { return e.ID }
func (e TaskStatusUpdateEvent) IsFinal() bool  { return e.Final }

type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e TaskArtifactUpdateEvent) TaskID() string { return e.ID }
func (e TaskArtifactUpdateEvent) IsFinal() bool  { return false }

// AgentUpdate is one increment produced by an agent run. The last update of
// a run has Final set; Failed marks an explicit failure outcome.
type AgentUpdate struct {
	Content string
	Data    any
	Final   bool
	Failed  bool
}

func Progress(content string) AgentUpdate {
	return AgentUpdate{Content: content}
}

func Completed(content string, data any) AgentUpdate {
	return AgentUpdate{Content: content, Data: data, Final: true}
}

func Failed(content string) AgentUpdate {
	return AgentUpdate{Content: content, Final: true, Failed: true}
}
