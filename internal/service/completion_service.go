package service

import (
	"context"
	"fmt"
	"time"

	"fieldTasks/internal/blob"
	"fieldTasks/internal/capture"
	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CompletionRequest struct {
	TaskID  uuid.UUID
	IssueID *uuid.UUID
	Photo   *capture.Photo
	// Location и LocatedAt - точка и момент её получения
	Location  *task.Coordinates
	LocatedAt time.Time
	Note      string
}

type CompletionResult struct {
	TaskID        uuid.UUID
	PhotoName     string
	Completion    task.Completion
	IssueResolved bool
	// IssueErr - ошибка необязательного шага, пользователю не показывается
	IssueErr error
}

// CompletionService выполняет запись подтверждения: загрузка фото, задача, заявка.
// Шаги строго последовательны, отката нет: фото после неудачного обновления задачи остаётся в хранилище.
type CompletionService struct {
	tasks  TaskRepository
	issues IssueRepository
	blobs  BlobStore
	tracer trace.Tracer
	now    func() time.Time
}

func NewCompletionService(tasks TaskRepository, issues IssueRepository, blobs BlobStore) *CompletionService {
	return &CompletionService{
		tasks:  tasks,
		issues: issues,
		blobs:  blobs,
		tracer: otel.Tracer("fieldTasks/internal/service"),
		now:    time.Now,
	}
}

// PhotoObjectName - имя объекта из задачи, времени и расширения; время исключает коллизии повторных отправок
func PhotoObjectName(taskID uuid.UUID, ts time.Time, photo *capture.Photo) string {
	return fmt.Sprintf("%s-%d.%s", taskID, ts.UnixMilli(), photo.Ext())
}

func ValidateRequest(req CompletionRequest) error {
	if req.Photo == nil || len(req.Photo.Data) == 0 {
		return NewPhotoRequired()
	}
	if req.Location == nil {
		return NewLocationRequired()
	}
	return nil
}

func (s *CompletionService) Submit(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	start := time.Now()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// начатые шаги не отменяются вместе с запросом
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "completion.submit",
		trace.WithAttributes(attribute.String("task.id", req.TaskID.String())))
	defer span.End()

	submittedAt := s.now()
	name := PhotoObjectName(req.TaskID, submittedAt, req.Photo)

	photoURL, err := s.upload(ctx, name, req.Photo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload")
		return nil, err
	}

	completedAt := req.LocatedAt
	if completedAt.IsZero() {
		completedAt = submittedAt
	}
	completion := task.Completion{
		PhotoURL:    photoURL,
		Location:    *req.Location,
		Note:        req.Note,
		CompletedAt: completedAt,
	}

	if err := s.completeTask(ctx, req.TaskID, completion); err != nil {
		logger.Warn("Service: Загруженное фото осталось без задачи", zap.String("object", name))
		span.RecordError(err)
		span.SetStatus(codes.Error, "task update")
		return nil, err
	}

	result := &CompletionResult{
		TaskID:     req.TaskID,
		PhotoName:  name,
		Completion: completion,
	}

	if req.IssueID != nil {
		result.IssueErr = s.resolveIssue(ctx, *req.IssueID)
		result.IssueResolved = result.IssueErr == nil
	}

	logger.Info("Service: Задача выполнена",
		zap.String("task_id", req.TaskID.String()),
		zap.String("photo", name),
		zap.Bool("issue_resolved", result.IssueResolved),
		zap.Duration("ms", time.Since(start)))
	return result, nil
}

func (s *CompletionService) upload(ctx context.Context, name string, photo *capture.Photo) (string, error) {
	ctx, span := s.tracer.Start(ctx, "completion.upload_photo")
	defer span.End()

	err := s.blobs.Upload(ctx, name, photo.Data, blob.UploadOptions{
		Overwrite:   true,
		ContentType: photo.ContentType,
	})
	if err != nil {
		logger.Error("Service: Не удалось загрузить фото", err, zap.String("object", name))
		return "", NewUploadFailed(err)
	}

	// ссылка вычисляется только после подтверждённой загрузки
	photoURL, err := s.blobs.PublicURL(name)
	if err != nil {
		logger.Error("Service: Не удалось получить ссылку на фото", err, zap.String("object", name))
		return "", NewUploadFailed(err)
	}
	return photoURL, nil
}

func (s *CompletionService) completeTask(ctx context.Context, id uuid.UUID, completion task.Completion) error {
	ctx, span := s.tracer.Start(ctx, "completion.update_task")
	defer span.End()

	if err := s.tasks.Complete(ctx, id, completion); err != nil {
		logger.Error("Service: Не удалось обновить задачу", err, zap.String("task_id", id.String()))
		return NewTaskUpdateFailed(err)
	}
	return nil
}

// resolveIssue - необязательный шаг: ошибка логируется и не прерывает отправку
func (s *CompletionService) resolveIssue(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "completion.resolve_issue")
	defer span.End()

	if err := s.issues.UpdateIssueStatus(ctx, id, task.IssueResolved); err != nil {
		span.RecordError(err)
		logger.Error("Service: Не удалось закрыть заявку", err, zap.String("issue_id", id.String()))
		return err
	}
	return nil
}
