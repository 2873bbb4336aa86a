package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

// ErrorMarker prefixes text that reports a failure instead of a result.
const ErrorMarker = "Error:"

type DelegateServiceConfig struct {
	Client ports.TaskSender
	Logger *logger.Logger
}

// DelegateService asks the finder peer for videos and reduces its task
// record to a Result.
type DelegateService struct {
	client ports.TaskSender
	logger *logger.Logger
}

func NewDelegateService(cfg DelegateServiceConfig) *DelegateService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &DelegateService{client: cfg.Client, logger: log}
}

func (s *DelegateService) FindItems(ctx context.Context, query, sessionID string) domain.Result[[]string] {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	params := domain.TaskSendParams{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Message: domain.Message{
			Role:  domain.RoleUser,
			Parts: []domain.Part{domain.TextPart(query)},
		},
		AcceptedOutputModes: []string{"application/json"},
	}

	s.logger.Infow("delegate_find_request", "task_id", params.ID, "session_id", sessionID)
	task, err := s.client.SendTask(ctx, params)
	if err != nil {
		s.logger.Warnw("delegate_find_failed", "task_id", params.ID, "error", err)
		return domain.Failure[[]string](failureKind(err))
	}

	res := InterpretDelegateTask(task)
	s.logger.Infow("delegate_find_response", "task_id", params.ID, "state", task.Status.State, "ok", res.Ok(), "count", len(res.Value()))
	return res
}

// InterpretDelegateTask reduces a peer task to its list of items. Structured
// data parts win over text parts holding a JSON list; a list whose first
// element carries the error marker is a propagated failure.
func InterpretDelegateTask(task *domain.Task) domain.Result[[]string] {
	switch task.Status.State {
	case domain.TaskStateCompleted:
		return extractItems(task.Artifacts)
	case domain.TaskStateFailed:
		if task.Status.Message != nil {
			if text, ok := task.Status.Message.FirstText(); ok && strings.TrimSpace(text) != "" {
				return domain.Failure[[]string](text)
			}
		}
		return domain.Failure[[]string](reasonUnknown)
	default:
		return domain.Failure[[]string](fmt.Sprintf("unexpected response state %q", task.Status.State))
	}
}

func extractItems(artifacts []domain.Artifact) domain.Result[[]string] {
	var textFallback *domain.Result[[]string]

	for _, artifact := range artifacts {
		for _, part := range artifact.Parts {
			switch part.Type {
			case domain.PartTypeData:
				if res, ok := itemsFromList(part.Data); ok {
					return res
				}
			case domain.PartTypeText:
				if textFallback != nil {
					continue
				}
				if res, ok := itemsFromText(part.Text); ok {
					textFallback = &res
				}
			}
		}
	}

	if textFallback != nil {
		return *textFallback
	}
	return domain.Failure[[]string](reasonNoParsableResult)
}

func itemsFromText(text string) (domain.Result[[]string], bool) {
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return itemsFromList(decoded)
	}
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, ErrorMarker) {
		return domain.Failure[[]string](trimmed), true
	}
	return domain.Result[[]string]{}, false
}

func itemsFromList(data any) (domain.Result[[]string], bool) {
	var raw []any
	switch v := data.(type) {
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	default:
		return domain.Result[[]string]{}, false
	}

	items := make([]string, 0, len(raw))
	for _, e := range raw {
		text, ok := e.(string)
		if !ok {
			return domain.Result[[]string]{}, false
		}
		items = append(items, text)
	}
	if len(items) > 0 && strings.HasPrefix(strings.TrimSpace(items[0]), ErrorMarker) {
		return domain.Failure[[]string](strings.TrimSpace(items[0])), true
	}
	return domain.Success(items), true
}
