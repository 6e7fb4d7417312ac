package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	repo "fieldTasks/internal/repository"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = time.Millisecond * 100

const selectTask = `SELECT
				t.id,
				t.staff_id,
				t.title,
				t.scheduled_date,
				to_char(t.scheduled_time, 'HH24:MI'),
				t.status,
				t.completion_photo,
				t.completion_lat,
				t.completion_lng,
				t.completion_note,
				t.completed_at,
				t.created_at,
				t.updated_at,
				i.id,
				i.title,
				i.description,
				i.location,
				i.priority,
				i.category,
				i.photo_url,
				i.status
				FROM tasks t
				LEFT JOIN issues i ON i.id = t.issue_id`

type Storage struct {
	pool *pgxpool.Pool
}

type Option func(*pgxpool.Config)

// WithPoolLimits задаёт размеры пула; нулевые значения оставляют умолчания
func WithPoolLimits(maxConns, minConns int32, idle time.Duration) Option {
	return func(c *pgxpool.Config) {
		if maxConns > 0 {
			c.MaxConns = maxConns
		}
		if minConns > 0 {
			c.MinConns = minConns
		}
		if idle > 0 {
			c.MaxConnIdleTime = idle
		}
	}
}

func New(ctx context.Context, connString string, opts ...Option) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// Create сохраняет задачу; заявка должна уже существовать
func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
				(id, staff_id, issue_id, title, scheduled_date, scheduled_time, status)
				VALUES ($1, $2, $3, $4, $5, $6::text::time, $7)
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.ID,
		taskToCreate.StaffID,
		taskToCreate.IssueID(),
		taskToCreate.Title,
		taskToCreate.ScheduledDate,
		taskToCreate.ScheduledTime,
		taskToCreate.Status,
	).Scan(&taskToCreate.CreatedAt)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	warnSlow(start, slowQuery)
	return nil
}

func (s *Storage) CreateIssue(ctx context.Context, issue *task.Issue) error {
	start := time.Now()

	query := `INSERT INTO issues
				(id, title, description, location, priority, category, photo_url, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Location,
		issue.Priority,
		issue.Category,
		issue.PhotoURL,
		issue.Status,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить заявку", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление заявки: %w", err)
	}

	warnSlow(start, slowQuery)
	return nil
}

func (s *Storage) SetUserRole(ctx context.Context, userID uuid.UUID, role session.Role) error {
	query := `INSERT INTO users (id, role) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := s.pool.Exec(ctx, query, userID, role); err != nil {
		logger.Error("Repository: Не удалось сохранить роль", err)
		return fmt.Errorf("сохранение роли: %w", err)
	}
	return nil
}

func (s *Storage) GetUserRole(ctx context.Context, userID uuid.UUID) (session.Role, error) {
	start := time.Now()

	var role session.Role
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить роль", err, zap.Duration("ms", time.Since(start)))
		return "", fmt.Errorf("получение роли: %w", err)
	}

	warnSlow(start, slowQuery)
	return role, nil
}

// GetByID возвращает задачу вместе с заявкой
func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	t, err := scanTask(s.pool.QueryRow(ctx, selectTask+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	warnSlow(start, slowQuery)
	return t, nil
}

// ListForStaff - задачи сотрудника с датой в [from, to]; задачи без времени в конце дня.
// Нулевой to - без верхней границы.
func (s *Storage) ListForStaff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*task.Task, error) {
	start := time.Now()

	query := selectTask + `
				WHERE t.staff_id = $1
				  AND t.scheduled_date >= $2
				  AND ($3::date IS NULL OR t.scheduled_date <= $3::date)
				ORDER BY t.scheduled_date, t.scheduled_time NULLS LAST`

	var upper *time.Time
	if !to.IsZero() {
		d := task.DateOf(to)
		upper = &d
	}

	rows, err := s.pool.Query(ctx, query, staffID, task.DateOf(from), upper)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnSlow(start, slowQuery+time.Millisecond*5*time.Duration(len(tasks)))
	return tasks, nil
}

// Complete записывает статус и подтверждение одним UPDATE
func (s *Storage) Complete(ctx context.Context, id uuid.UUID, completion task.Completion) error {
	start := time.Now()

	query := `UPDATE tasks
			SET status = $1,
				completion_photo = $2,
				completion_lat = $3,
				completion_lng = $4,
				completion_note = NULLIF($5, ''),
				completed_at = $6,
				updated_at = NOW()
			WHERE id = $7`

	tag, err := s.pool.Exec(ctx, query,
		task.StatusCompleted,
		completion.PhotoURL,
		completion.Location.Lat,
		completion.Location.Lng,
		completion.Note,
		completion.CompletedAt,
		id,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("обновление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnSlow(start, slowQuery)
	return nil
}

func (s *Storage) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status task.IssueStatus) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx, `UPDATE issues SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		logger.Error("Repository: Не удалось обновить заявку", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("обновление заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnSlow(start, slowQuery)
	return nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}

	var (
		photo, note               *string
		lat, lng                  *float64
		completedAt               *time.Time
		issueID                   *uuid.UUID
		issueTitle, issueDesc     *string
		issueLoc, issuePriority   *string
		issueCategory, issuePhoto *string
		issueStatus               *string
	)

	err := row.Scan(
		&t.ID,
		&t.StaffID,
		&t.Title,
		&t.ScheduledDate,
		&t.ScheduledTime,
		&t.Status,
		&photo,
		&lat,
		&lng,
		&note,
		&completedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&issueID,
		&issueTitle,
		&issueDesc,
		&issueLoc,
		&issuePriority,
		&issueCategory,
		&issuePhoto,
		&issueStatus,
	)
	if err != nil {
		return nil, err
	}

	if completedAt != nil {
		t.Completion = &task.Completion{
			PhotoURL:    deref(photo),
			Note:        deref(note),
			CompletedAt: *completedAt,
		}
		if lat != nil && lng != nil {
			t.Completion.Location = task.Coordinates{Lat: *lat, Lng: *lng}
		}
	}

	if issueID != nil {
		t.Issue = &task.Issue{
			ID:          *issueID,
			Title:       deref(issueTitle),
			Description: deref(issueDesc),
			Location:    deref(issueLoc),
			Priority:    deref(issuePriority),
			Category:    deref(issueCategory),
			PhotoURL:    deref(issuePhoto),
			Status:      task.IssueStatus(deref(issueStatus)),
		}
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func warnSlow(start time.Time, limit time.Duration) {
	if time.Since(start) > limit {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
}
