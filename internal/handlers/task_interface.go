package handlers

import (
	"context"

	"fieldTasks/internal/completion"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
)

type TaskService interface {
	HealthCheck(context.Context) error
	GetTask(ctx context.Context, principal session.Principal, id uuid.UUID) (*task.Task, error)
	ListTasks(ctx context.Context, principal session.Principal, scope service.Scope) ([]*task.Task, error)
}

// DraftRegistry выдаёт черновик подтверждения для пары сотрудник+задача
type DraftRegistry interface {
	Open(principal session.Principal, t *task.Task) (*completion.Workflow, error)
	Discard(principal session.Principal, taskID uuid.UUID)
}
