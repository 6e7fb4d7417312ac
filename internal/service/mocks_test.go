package service_test

import (
	"context"
	"time"

	"fieldTasks/internal/blob"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockTaskRepository - мок репозитория задач
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) ListForStaff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*task.Task, error) {
	args := m.Called(ctx, staffID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) Complete(ctx context.Context, id uuid.UUID, c task.Completion) error {
	args := m.Called(ctx, id, c)
	return args.Error(0)
}

// MockIssueRepository - мок репозитория заявок
type MockIssueRepository struct {
	mock.Mock
}

func (m *MockIssueRepository) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status task.IssueStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockBlobStore - мок хранилища фото
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Upload(ctx context.Context, name string, data []byte, opts blob.UploadOptions) error {
	args := m.Called(ctx, name, data, opts)
	return args.Error(0)
}

func (m *MockBlobStore) PublicURL(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)
var _ service.IssueRepository = (*MockIssueRepository)(nil)
var _ service.BlobStore = (*MockBlobStore)(nil)
