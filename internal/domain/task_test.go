package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskState_IsTerminal(t *testing.T) {
	assert.True(t, TaskStateCompleted.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.True(t, TaskStateCanceled.IsTerminal())
	assert.False(t, TaskStateSubmitted.IsTerminal())
	assert.False(t, TaskStateWorking.IsTerminal())
	assert.False(t, TaskStateUnknown.IsTerminal())
}

func TestTask_WithHistory(t *testing.T) {
	task := &Task{
		ID: "t1",
		History: []Message{
			{Role: RoleUser, Parts: []Part{TextPart("one")}},
			{Role: RoleAgent, Parts: []Part{TextPart("two")}},
			{Role: RoleAgent, Parts: []Part{TextPart("three")}},
		},
	}

	assert.Nil(t, task.WithHistory(nil).History)

	zero := 0
	assert.Nil(t, task.WithHistory(&zero).History)

	two := 2
	trimmed := task.WithHistory(&two)
	require.Len(t, trimmed.History, 2)
	text, _ := trimmed.History[0].FirstText()
	assert.Equal(t, "two", text)

	many := 10
	assert.Len(t, task.WithHistory(&many).History, 3)
	assert.Len(t, task.History, 3, "original must not be trimmed")
}

func TestTask_CloneIsIndependent(t *testing.T) {
	task := &Task{
		ID:        "t1",
		Status:    NewTaskStatus(TaskStateWorking, AgentMessage("busy")),
		Artifacts: []Artifact{{Parts: []Part{TextPart("a")}}},
	}

	c := task.Clone()
	c.Status.Message.Parts = nil
	c.Artifacts = append(c.Artifacts, Artifact{Index: 1})

	assert.Len(t, task.Status.Message.Parts, 1)
	assert.Len(t, task.Artifacts, 1)
}

func TestMessage_FirstText(t *testing.T) {
	msg := Message{Role: RoleUser, Parts: []Part{DataPart([]string{"x"}), TextPart("hello")}}
	text, ok := msg.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = Message{Parts: []Part{DataPart(1)}}.FirstText()
	assert.False(t, ok)
}

func TestResult(t *testing.T) {
	ok := Success("S1")
	assert.True(t, ok.Ok())
	assert.Equal(t, "S1", ok.Value())
	assert.Empty(t, ok.Reason())

	failed := Failure[string]("timeout")
	assert.False(t, failed.Ok())
	assert.Empty(t, failed.Value())
	assert.Equal(t, "timeout", failed.Reason())
	assert.Equal(t, "Failure: timeout", failed.String())

	assert.Equal(t, "unknown reason", Failure[[]string]("").Reason())
}
