package ports

import (
	"context"

	"github.com/tubesum/backend/internal/domain"
)

// Session is one connection to a tool endpoint. Close must be safe to call
// more than once.
type Session interface {
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
	Close() error
}

// SessionPool lends sessions per endpoint. Every acquired session must be
// released, on failure paths too.
type SessionPool interface {
	Acquire(ctx context.Context, endpoint string) (Session, error)
	Release(endpoint string, session Session)
}

type SummaryTools interface {
	SummarizeItem(ctx context.Context, videoURL string) domain.Result[string]
	Combine(ctx context.Context, summaries []string) domain.Result[string]
}

type ListingTools interface {
	ListItems(ctx context.Context, query domain.ItemQuery) domain.Result[[]string]
}

// TaskSender submits a task to a peer agent and waits for its answer.
type TaskSender interface {
	SendTask(ctx context.Context, params domain.TaskSendParams) (*domain.Task, error)
}

// Delegate asks a peer agent for the videos matching a query.
type Delegate interface {
	FindItems(ctx context.Context, query, sessionID string) domain.Result[[]string]
}

type AgentRequest struct {
	TaskID    string
	SessionID string
	Query     string
}

// Agent runs one request and reports increments on the returned channel,
// which is closed after the final update.
type Agent interface {
	Stream(ctx context.Context, req AgentRequest) <-chan domain.AgentUpdate
	SupportedContentTypes() []string
}

// Subscription delivers the events of one task until the final event.
type Subscription interface {
	Events() <-chan domain.TaskEvent
	Close()
}

type TaskService interface {
	SendTask(ctx context.Context, params domain.TaskSendParams) (*domain.Task, error)
	SendTaskSubscribe(ctx context.Context, params domain.TaskSendParams) (Subscription, error)
	Resubscribe(ctx context.Context, params domain.TaskQueryParams) (Subscription, error)
	GetTask(ctx context.Context, params domain.TaskQueryParams) (*domain.Task, error)
	CancelTask(ctx context.Context, params domain.TaskIDParams) (*domain.Task, error)
}
