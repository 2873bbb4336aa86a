package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/memory"
)

func newTestTaskService(agent ports.Agent, sniff bool) (ports.TaskService, ports.TaskRepository) {
	repo := memory.NewTaskRepository()
	return NewTaskService(TaskServiceConfig{Repo: repo, Agent: agent, SniffFailureText: sniff}), repo
}

func sendParams(id string) domain.TaskSendParams {
	return domain.TaskSendParams{
		ID: id,
		Message: domain.Message{
			Role:  domain.RoleUser,
			Parts: []domain.Part{domain.TextPart("channel UC1 date 2024-05-01")},
		},
	}
}

func intPtr(n int) *int { return &n }

func TestTaskService_SendTaskCompletes(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{
		domain.Progress("Looking up videos"),
		domain.Completed("Final", nil),
	}}
	svc, _ := newTestTaskService(agent, true)

	params := sendParams("t1")
	params.HistoryLength = intPtr(10)
	task, err := svc.SendTask(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStateCompleted, task.Status.State)
	assert.NotEmpty(t, task.SessionID)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, []domain.Part{domain.TextPart("Final")}, task.Artifacts[0].Parts)
	require.Len(t, task.History, 1, "one-shot runs record no working statuses")
	assert.Equal(t, domain.RoleUser, task.History[0].Role)
}

func TestTaskService_SendTaskOmitsHistoryByDefault(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}
	svc, _ := newTestTaskService(agent, true)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	assert.Nil(t, task.History)
}

func TestTaskService_SendTaskDataArtifact(t *testing.T) {
	agent := &scriptedAgent{
		types:   []string{"application/json"},
		updates: []domain.AgentUpdate{domain.Completed("Found 1 videos", []string{"u1"})},
	}
	svc, _ := newTestTaskService(agent, true)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, []domain.Part{domain.DataPart([]string{"u1"})}, task.Artifacts[0].Parts)
}

func TestTaskService_SendTaskFailure(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Failed("Error: no videos matched the request")}}
	svc, _ := newTestTaskService(agent, false)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStateFailed, task.Status.State)
	assert.Empty(t, task.Artifacts)
	require.NotNil(t, task.Status.Message)
	text, _ := task.Status.Message.FirstText()
	assert.Equal(t, "Error: no videos matched the request", text)
}

func TestTaskService_FailureTextSniffing(t *testing.T) {
	cases := []struct {
		name    string
		content string
		sniff   bool
		expect  domain.TaskState
	}{
		{name: "error prefix sniffed", content: "error: quota exceeded", sniff: true, expect: domain.TaskStateFailed},
		{name: "failed word sniffed", content: "Summary: the upload FAILED", sniff: true, expect: domain.TaskStateFailed},
		{name: "clean text", content: "All good", sniff: true, expect: domain.TaskStateCompleted},
		{name: "sniffing off", content: "Error: quota exceeded", sniff: false, expect: domain.TaskStateCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed(tc.content, nil)}}
			svc, _ := newTestTaskService(agent, tc.sniff)

			task, err := svc.SendTask(context.Background(), sendParams("t1"))
			require.NoError(t, err)
			assert.Equal(t, tc.expect, task.Status.State)
		})
	}
}

func TestTaskService_SniffedProgressEndsRun(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{
		domain.Progress("Error: peer unreachable"),
		domain.Completed("Final", nil),
	}}
	svc, _ := newTestTaskService(agent, true)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFailed, task.Status.State)
}

func TestTaskService_EmptyResultFails(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("  ", nil)}}
	svc, _ := newTestTaskService(agent, true)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFailed, task.Status.State)
}

func TestTaskService_AgentStopsWithoutResult(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Progress("Looking up videos")}}
	svc, _ := newTestTaskService(agent, true)

	task, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFailed, task.Status.State)
}

func TestTaskService_TerminalTransitionHappensOnce(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{
		domain.Completed("first", nil),
		domain.Completed("second", nil),
	}}
	svc, repo := newTestTaskService(agent, true)

	_, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, stored.Artifacts, 1)
	assert.Equal(t, "first", stored.Artifacts[0].Parts[0].Text)
}

func TestTaskService_RejectsInvalidRequests(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}

	t.Run("missing id", func(t *testing.T) {
		svc, _ := newTestTaskService(agent, true)
		_, err := svc.SendTask(context.Background(), sendParams(""))
		assert.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("no parts", func(t *testing.T) {
		svc, _ := newTestTaskService(agent, true)
		params := sendParams("t1")
		params.Message.Parts = nil
		_, err := svc.SendTask(context.Background(), params)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("no text part", func(t *testing.T) {
		svc, _ := newTestTaskService(agent, true)
		params := sendParams("t1")
		params.Message.Parts = []domain.Part{domain.DataPart(map[string]any{"q": 1})}
		_, err := svc.SendTask(context.Background(), params)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})

	t.Run("duplicate id", func(t *testing.T) {
		svc, _ := newTestTaskService(agent, true)
		_, err := svc.SendTask(context.Background(), sendParams("t1"))
		require.NoError(t, err)
		_, err = svc.SendTask(context.Background(), sendParams("t1"))
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestTaskService_IncompatibleOutputModes(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}
	svc, repo := newTestTaskService(agent, true)

	params := sendParams("t1")
	params.AcceptedOutputModes = []string{"image/png"}
	_, err := svc.SendTask(context.Background(), params)
	assert.ErrorIs(t, err, ErrContentTypeNotSupported)

	_, err = repo.Get(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskService_SendTaskSubscribeEventOrder(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{
		domain.Progress("Looking up videos"),
		domain.Progress("Video 1 of 1 done"),
		domain.Completed("Final", nil),
	}}
	svc, repo := newTestTaskService(agent, true)

	sub, err := svc.SendTaskSubscribe(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	defer sub.Close()

	events := collectEvents(sub)
	require.Len(t, events, 4)

	for _, ev := range events[:2] {
		status, ok := ev.(domain.TaskStatusUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStateWorking, status.Status.State)
		assert.False(t, status.Final)
	}
	artifact, ok := events[2].(domain.TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "Final", artifact.Artifact.Parts[0].Text)

	final, ok := events[3].(domain.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
	assert.Equal(t, domain.TaskStateCompleted, final.Status.State)

	stored, err := repo.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, stored.Status.State)
	assert.Len(t, stored.History, 3, "user message plus both working statuses")
}

func TestTaskService_SubscribeDrainsAgentAfterTerminalUpdate(t *testing.T) {
	updates := []domain.AgentUpdate{domain.Progress("Error: quota exceeded")}
	for i := 0; i < 64; i++ {
		updates = append(updates, domain.Progress("still working"))
	}
	agent := &scriptedAgent{updates: updates, done: make(chan struct{})}
	svc, repo := newTestTaskService(agent, true)

	sub, err := svc.SendTaskSubscribe(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	defer sub.Close()

	events := collectEvents(sub)
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].IsFinal())

	select {
	case <-agent.done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent was left blocked on trailing updates")
	}

	stored, err := repo.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFailed, stored.Status.State)
}

func TestTaskService_FinderQueryMentioningFailureCompletes(t *testing.T) {
	tools := &stubListingTools{result: domain.Success([]string{"u1"})}
	svc, _ := newTestTaskService(NewFinderAgent(FinderAgentConfig{Tools: tools}), true)

	params := sendParams("t1")
	params.Message.Parts = []domain.Part{domain.TextPart("channel=UCfailedtech, date=2024-10-26")}
	task, err := svc.SendTask(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Len(t, tools.queries, 1)
}

func TestTaskService_SendTaskSubscribeFailure(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{
		domain.Progress("Looking up videos"),
		domain.Failed("Error: could not find videos: timeout"),
	}}
	svc, _ := newTestTaskService(agent, true)

	sub, err := svc.SendTaskSubscribe(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	events := collectEvents(sub)
	require.Len(t, events, 2)
	final, ok := events[1].(domain.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
	assert.Equal(t, domain.TaskStateFailed, final.Status.State)
}

func TestTaskService_SubscribeSurvivesCanceledRequest(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Progress("a"), domain.Completed("Final", nil)}}
	svc, repo := newTestTaskService(agent, true)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := svc.SendTaskSubscribe(ctx, sendParams("t1"))
	require.NoError(t, err)
	cancel()
	sub.Close()

	assert.Eventually(t, func() bool {
		task, err := repo.Get(context.Background(), "t1")
		return err == nil && task.Status.State == domain.TaskStateCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestTaskService_ResubscribeLive(t *testing.T) {
	gate := make(chan struct{})
	agent := &scriptedAgent{gate: gate, updates: []domain.AgentUpdate{
		domain.Progress("Looking up videos"),
		domain.Completed("Final", nil),
	}}
	svc, _ := newTestTaskService(agent, true)

	first, err := svc.SendTaskSubscribe(context.Background(), sendParams("t1"))
	require.NoError(t, err)
	defer first.Close()

	second, err := svc.Resubscribe(context.Background(), domain.TaskQueryParams{ID: "t1"})
	require.NoError(t, err)
	close(gate)

	events := collectEvents(second)
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].IsFinal())
}

func TestTaskService_ResubscribeFinished(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}
	svc, _ := newTestTaskService(agent, true)

	_, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	sub, err := svc.Resubscribe(context.Background(), domain.TaskQueryParams{ID: "t1"})
	require.NoError(t, err)

	events := collectEvents(sub)
	require.Len(t, events, 2)
	_, isArtifact := events[0].(domain.TaskArtifactUpdateEvent)
	assert.True(t, isArtifact)
	assert.True(t, events[1].IsFinal())

	_, err = svc.Resubscribe(context.Background(), domain.TaskQueryParams{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskService_GetTask(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}
	svc, _ := newTestTaskService(agent, true)

	_, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	task, err := svc.GetTask(context.Background(), domain.TaskQueryParams{ID: "t1", HistoryLength: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, task.Status.State)
	assert.Len(t, task.History, 1)

	_, err = svc.GetTask(context.Background(), domain.TaskQueryParams{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = svc.GetTask(context.Background(), domain.TaskQueryParams{})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestTaskService_CancelTask(t *testing.T) {
	agent := &scriptedAgent{updates: []domain.AgentUpdate{domain.Completed("Final", nil)}}
	svc, _ := newTestTaskService(agent, true)

	_, err := svc.SendTask(context.Background(), sendParams("t1"))
	require.NoError(t, err)

	_, err = svc.CancelTask(context.Background(), domain.TaskIDParams{ID: "t1"})
	assert.ErrorIs(t, err, ErrTaskNotCancelable)

	_, err = svc.CancelTask(context.Background(), domain.TaskIDParams{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestModesCompatible(t *testing.T) {
	assert.True(t, ModesCompatible([]string{"text"}, nil))
	assert.True(t, ModesCompatible(nil, []string{"image/png"}))
	assert.True(t, ModesCompatible([]string{"text", "text/plain"}, []string{"TEXT/PLAIN"}))
	assert.False(t, ModesCompatible([]string{"text", "text/plain"}, []string{"application/json"}))
}

func TestLooksLikeFailure(t *testing.T) {
	assert.True(t, LooksLikeFailure("Error: nope"))
	assert.True(t, LooksLikeFailure("the call failed"))
	assert.False(t, LooksLikeFailure("a terror movie"))
	assert.False(t, LooksLikeFailure("Video 2 of 3 skipped"))
}
