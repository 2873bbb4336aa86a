package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

type TaskServiceConfig struct {
	Repo  ports.TaskRepository
	Agent ports.Agent
	// SniffFailureText treats content starting with "error:" or containing
	// "failed" as a failure even when the agent did not flag one.
	SniffFailureText bool
	Logger           *logger.Logger
}

// TaskService owns the task state machine: submitted, then zero or more
// working updates, then exactly one of completed or failed.
type TaskService struct {
	repo     ports.TaskRepository
	agent    ports.Agent
	sniff    bool
	broker   *eventBroker
	validate *validator.Validate
	logger   *logger.Logger
}

func NewTaskService(cfg TaskServiceConfig) ports.TaskService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &TaskService{
		repo:     cfg.Repo,
		agent:    cfg.Agent,
		sniff:    cfg.SniffFailureText,
		broker:   newEventBroker(),
		validate: validator.New(),
		logger:   log,
	}
}

// SendTask runs the agent to completion and returns the terminal task.
func (s *TaskService) SendTask(ctx context.Context, params domain.TaskSendParams) (*domain.Task, error) {
	req, err := s.accept(ctx, params)
	if err != nil {
		return nil, err
	}

	final, ok := s.await(s.agent.Stream(ctx, req))
	if !ok {
		final = domain.Failed("Error: agent stopped before producing a result")
	}

	task, err := s.complete(ctx, params.ID, final)
	if err != nil {
		return nil, err
	}
	return task.WithHistory(params.HistoryLength), nil
}

// SendTaskSubscribe starts the agent in the background and streams its
// progress. The run is detached from ctx so a dropped client does not
// abandon the task half way.
func (s *TaskService) SendTaskSubscribe(ctx context.Context, params domain.TaskSendParams) (ports.Subscription, error) {
	req, err := s.accept(ctx, params)
	if err != nil {
		return nil, err
	}

	sub, _ := s.broker.subscribe(params.ID)

	go s.run(context.WithoutCancel(ctx), req)
	return sub, nil
}

// Resubscribe attaches to a running task, or replays the final events of a
// finished one.
func (s *TaskService) Resubscribe(ctx context.Context, params domain.TaskQueryParams) (ports.Subscription, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if sub, ok := s.broker.subscribe(params.ID); ok {
		return sub, nil
	}

	task, err := s.repo.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	return replay(finalEvents(task)...), nil
}

func (s *TaskService) GetTask(ctx context.Context, params domain.TaskQueryParams) (*domain.Task, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	task, err := s.repo.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	return task.WithHistory(params.HistoryLength), nil
}

// CancelTask is not supported: remote calls cannot be interrupted cleanly.
func (s *TaskService) CancelTask(ctx context.Context, params domain.TaskIDParams) (*domain.Task, error) {
	if _, err := s.repo.Get(ctx, params.ID); err != nil {
		return nil, err
	}
	return nil, ErrTaskNotCancelable
}

// accept validates the request, records the submitted task and opens its
// event stream.
func (s *TaskService) accept(ctx context.Context, params domain.TaskSendParams) (ports.AgentRequest, error) {
	if err := s.validate.Struct(params); err != nil {
		return ports.AgentRequest{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if !ModesCompatible(s.agent.SupportedContentTypes(), params.AcceptedOutputModes) {
		s.logger.Warnw("task_output_modes_incompatible", "id", params.ID, "accepted", params.AcceptedOutputModes)
		return ports.AgentRequest{}, ErrContentTypeNotSupported
	}
	query, ok := params.Message.FirstText()
	if !ok || strings.TrimSpace(query) == "" {
		return ports.AgentRequest{}, fmt.Errorf("%w: message has no text part", ErrInvalidParams)
	}

	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	task := &domain.Task{
		ID:        params.ID,
		SessionID: sessionID,
		Status:    domain.NewTaskStatus(domain.TaskStateSubmitted, nil),
		History:   []domain.Message{params.Message},
		Metadata:  params.Metadata,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		if errors.Is(err, domain.ErrTaskExists) {
			return ports.AgentRequest{}, fmt.Errorf("%w: task %s already exists", ErrInvalidParams, params.ID)
		}
		return ports.AgentRequest{}, err
	}
	s.broker.open(params.ID)

	s.logger.Infow("task_submitted", "id", params.ID, "session_id", sessionID)
	return ports.AgentRequest{TaskID: params.ID, SessionID: sessionID, Query: query}, nil
}

// run drives a streaming task: every non-terminal update becomes a working
// status event, the terminal one completes the task.
func (s *TaskService) run(ctx context.Context, req ports.AgentRequest) {
	start := time.Now()
	updates := s.agent.Stream(ctx, req)
	for u := range updates {
		if s.terminal(u) {
			go drain(updates)
			if _, err := s.complete(ctx, req.TaskID, u); err != nil {
				s.logger.Errorw("task_complete_failed", "id", req.TaskID, "error", err)
			}
			s.logger.Infow("task_stream_finished", "id", req.TaskID, "duration_ms", time.Since(start).Milliseconds())
			return
		}

		status := domain.NewTaskStatus(domain.TaskStateWorking, domain.AgentMessage(u.Content))
		if _, err := s.repo.UpdateStatus(ctx, req.TaskID, status); err != nil {
			s.logger.Errorw("task_update_failed", "id", req.TaskID, "error", err)
			continue
		}
		s.broker.publish(domain.TaskStatusUpdateEvent{ID: req.TaskID, Status: status})
	}

	if _, err := s.complete(ctx, req.TaskID, domain.Failed("Error: agent stopped before producing a result")); err != nil {
		s.logger.Errorw("task_complete_failed", "id", req.TaskID, "error", err)
	}
}

// await drains updates and returns the terminal one.
func (s *TaskService) await(updates <-chan domain.AgentUpdate) (domain.AgentUpdate, bool) {
	for u := range updates {
		if s.terminal(u) {
			go drain(updates)
			return u, true
		}
	}
	return domain.AgentUpdate{}, false
}

// complete performs the single terminal transition, publishes the final
// events and closes the task's stream.
func (s *TaskService) complete(ctx context.Context, taskID string, u domain.AgentUpdate) (*domain.Task, error) {
	defer s.broker.finish(taskID)

	failed := u.Failed || s.sniffs(u.Content)
	if !failed && u.Data == nil && strings.TrimSpace(u.Content) == "" {
		failed = true
		u.Content = "Error: agent returned an empty result"
	}

	if failed {
		status := domain.NewTaskStatus(domain.TaskStateFailed, domain.AgentMessage(u.Content))
		task, err := s.repo.UpdateStatus(ctx, taskID, status)
		if err != nil {
			return nil, err
		}
		s.logger.Infow("task_failed", "id", taskID, "message", u.Content)
		s.broker.publish(domain.TaskStatusUpdateEvent{ID: taskID, Status: status, Final: true})
		return task, nil
	}

	artifact := domain.Artifact{Parts: []domain.Part{domain.TextPart(u.Content)}}
	if u.Data != nil {
		artifact.Parts = []domain.Part{domain.DataPart(u.Data)}
	}
	status := domain.NewTaskStatus(domain.TaskStateCompleted, nil)
	task, err := s.repo.Complete(ctx, taskID, artifact, status)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("task_completed", "id", taskID)
	s.broker.publish(domain.TaskArtifactUpdateEvent{ID: taskID, Artifact: task.Artifacts[len(task.Artifacts)-1]})
	s.broker.publish(domain.TaskStatusUpdateEvent{ID: taskID, Status: status, Final: true})
	return task, nil
}

func (s *TaskService) terminal(u domain.AgentUpdate) bool {
	return u.Final || u.Failed || s.sniffs(u.Content)
}

func (s *TaskService) sniffs(content string) bool {
	return s.sniff && LooksLikeFailure(content)
}

// LooksLikeFailure reports whether text reads as an error report.
func LooksLikeFailure(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "error:") || strings.Contains(lower, "failed")
}

// ModesCompatible reports whether the agent can produce one of the accepted
// output modes. An empty list on either side accepts anything.
func ModesCompatible(supported, accepted []string) bool {
	if len(supported) == 0 || len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		for _, s := range supported {
			if strings.EqualFold(a, s) {
				return true
			}
		}
	}
	return false
}

func finalEvents(task *domain.Task) []domain.TaskEvent {
	var events []domain.TaskEvent
	if task.Status.State == domain.TaskStateCompleted && len(task.Artifacts) > 0 {
		events = append(events, domain.TaskArtifactUpdateEvent{ID: task.ID, Artifact: task.Artifacts[len(task.Artifacts)-1]})
	}
	return append(events, domain.TaskStatusUpdateEvent{
		ID:     task.ID,
		Status: task.Status,
		Final:  task.Status.State.IsTerminal(),
	})
}

func drain(updates <-chan domain.AgentUpdate) {
	for range updates {
	}
}
