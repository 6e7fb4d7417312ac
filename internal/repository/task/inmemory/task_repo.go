package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	repo "fieldTasks/internal/repository"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskStorage struct {
	tasks  map[uuid.UUID]*task.Task
	issues map[uuid.UUID]*task.Issue
	roles  map[uuid.UUID]session.Role
	mtx    *sync.RWMutex
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		tasks:  make(map[uuid.UUID]*task.Task),
		issues: make(map[uuid.UUID]*task.Issue),
		roles:  make(map[uuid.UUID]session.Role),
		mtx:    &sync.RWMutex{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// Create сохраняет задачу; связанная заявка сохраняется отдельно и хранится по id
func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToCreate.CreatedAt = time.Now()
	stored := *taskToCreate
	if taskToCreate.Issue != nil {
		issue := *taskToCreate.Issue
		if _, ok := s.issues[issue.ID]; !ok {
			s.issues[issue.ID] = &issue
		}
		stored.Issue = &task.Issue{ID: issue.ID}
	}
	s.tasks[stored.ID] = &stored
	return nil
}

func (s *TaskStorage) CreateIssue(ctx context.Context, issue *task.Issue) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored := *issue
	s.issues[issue.ID] = &stored
	return nil
}

func (s *TaskStorage) SetUserRole(ctx context.Context, userID uuid.UUID, role session.Role) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.roles[userID] = role
	return nil
}

func (s *TaskStorage) GetUserRole(ctx context.Context, userID uuid.UUID) (session.Role, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	role, ok := s.roles[userID]
	if !ok {
		return "", repo.ErrNotFound
	}
	return role, nil
}

// GetByID возвращает копию задачи вместе с заявкой
func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s.joined(t), nil
}

// ListForStaff - задачи сотрудника с датой в [from, to], по дате и времени. Нулевой to - без верхней границы.
func (s *TaskStorage) ListForStaff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	bounded := !to.IsZero()
	from, to = task.DateOf(from), task.DateOf(to)
	res := []*task.Task{}
	for _, t := range s.tasks {
		if t.StaffID != staffID {
			continue
		}
		if t.ScheduledDate.Before(from) || (bounded && t.ScheduledDate.After(to)) {
			continue
		}
		res = append(res, s.joined(t))
	}

	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		return scheduledTime(a) < scheduledTime(b)
	})
	return res, nil
}

// Complete записывает подтверждение и статус одним изменением
func (s *TaskStorage) Complete(ctx context.Context, id uuid.UUID, completion task.Completion) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}

	now := time.Now()
	c := completion
	t.Completion = &c
	t.Status = task.StatusCompleted
	t.UpdatedAt = &now

	logger.Debug("Repository: Задача отмечена выполненной", zap.String("task_id", id.String()))
	return nil
}

func (s *TaskStorage) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status task.IssueStatus) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return repo.ErrNotFound
	}
	issue.Status = status
	return nil
}

func (s *TaskStorage) joined(t *task.Task) *task.Task {
	res := *t
	if t.Completion != nil {
		c := *t.Completion
		res.Completion = &c
	}
	if t.Issue != nil {
		if issue, ok := s.issues[t.Issue.ID]; ok {
			i := *issue
			res.Issue = &i
		} else {
			res.Issue = nil
		}
	}
	return &res
}

// задачи без времени идут после задач со временем
func scheduledTime(t *task.Task) string {
	if t.ScheduledTime == nil {
		return "~"
	}
	return *t.ScheduledTime
}
