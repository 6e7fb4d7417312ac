package service

import (
	"context"
	"time"

	"fieldTasks/internal/blob"
	"fieldTasks/internal/models/task"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	GetByID(context.Context, uuid.UUID) (*task.Task, error)
	// ListForStaff - нулевой to снимает верхнюю границу
	ListForStaff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*task.Task, error)
	Complete(context.Context, uuid.UUID, task.Completion) error
}

type IssueRepository interface {
	UpdateIssueStatus(context.Context, uuid.UUID, task.IssueStatus) error
}

type BlobStore interface {
	Upload(ctx context.Context, name string, data []byte, opts blob.UploadOptions) error
	PublicURL(name string) (string, error)
}
