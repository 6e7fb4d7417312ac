package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/repository"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Scope string

const ScopeToday Scope = "today"
const ScopeUpcoming Scope = "upcoming"

type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
		now:  time.Now,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

// GetTask отдаёт задачу вместе с заявкой. Чужая задача неотличима от отсутствующей.
func (s *TaskService) GetTask(ctx context.Context, principal session.Principal, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound("Task", id.String())
		}
		return nil, NewRepositoryFailure("get task", err)
	}

	if t.StaffID != principal.UserID {
		logger.Warn("Service: Попытка открыть чужую задачу",
			zap.String("target_id", id.String()),
			zap.String("user_id", principal.UserID.String()))
		return nil, NewNotFound("Task", id.String())
	}

	return t, nil
}

func (s *TaskService) ListTasks(ctx context.Context, principal session.Principal, scope Scope) ([]*task.Task, error) {
	today := task.DateOf(s.now())

	var from, to time.Time
	switch scope {
	case ScopeToday, "":
		from, to = today, today
	case ScopeUpcoming:
		// верхней границы нет
		from = today.AddDate(0, 0, 1)
	default:
		return nil, NewValidationError("scope", "expected today or upcoming")
	}

	tasks, err := s.repo.ListForStaff(ctx, principal.UserID, from, to)
	if err != nil {
		return nil, NewRepositoryFailure("list tasks", err)
	}
	return tasks, nil
}
