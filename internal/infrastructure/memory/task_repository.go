package memory

import (
	"context"
	"sync"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
)

type taskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewTaskRepository keeps tasks in memory. Tasks are never evicted.
func NewTaskRepository() ports.TaskRepository {
	return &taskRepository{tasks: make(map[string]*domain.Task)}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; exists {
		return domain.ErrTaskExists
	}
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[id]
	if !exists {
		return nil, domain.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.mutable(id)
	if err != nil {
		return nil, err
	}
	r.setStatus(task, status)
	return task.Clone(), nil
}

func (r *taskRepository) Complete(ctx context.Context, id string, artifact domain.Artifact, status domain.TaskStatus) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.mutable(id)
	if err != nil {
		return nil, err
	}
	artifact.Index = len(task.Artifacts)
	task.Artifacts = append(task.Artifacts, artifact)
	r.setStatus(task, status)
	return task.Clone(), nil
}

func (r *taskRepository) mutable(id string) (*domain.Task, error) {
	task, exists := r.tasks[id]
	if !exists {
		return nil, domain.ErrTaskNotFound
	}
	if task.Status.State.IsTerminal() {
		return nil, domain.ErrTaskTerminal
	}
	return task, nil
}

func (r *taskRepository) setStatus(task *domain.Task, status domain.TaskStatus) {
	task.Status = status
	if status.Message != nil {
		task.History = append(task.History, *status.Message)
	}
}
