package ports

import (
	"context"

	"github.com/tubesum/backend/internal/domain"
)

// TaskRepository stores tasks for the lifetime of the process. Reads return
// copies. UpdateStatus and Complete fail with domain.ErrTaskTerminal once the
// task reached a terminal state.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.Task, error)
	// Complete stores the artifact and the completed status in one step.
	Complete(ctx context.Context, id string, artifact domain.Artifact, status domain.TaskStatus) (*domain.Task, error)
}
