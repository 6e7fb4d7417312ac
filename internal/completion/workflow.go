// Package completion держит черновик подтверждения (фото, точка, заметка)
// и управляет его отправкой.
//
// Канал геолокации: idle -> capturing -> captured | error, из error - снова capturing
// по действию пользователя. Пока идёт получение точки или точка уже есть, повторный
// запуск игнорируется. Фото либо есть, либо нет; новое фото заменяет старое и не
// сбрасывает точку.
package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldTasks/internal/capture"
	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LocationStatus string

const LocationIdle LocationStatus = "idle"
const LocationCapturing LocationStatus = "capturing"
const LocationCaptured LocationStatus = "captured"
const LocationError LocationStatus = "error"

type Draft struct {
	Photo          *capture.Photo
	Location       *task.Coordinates
	LocatedAt      time.Time
	LocationStatus LocationStatus
	LocationErr    error
	Note           string
}

type Snapshot struct {
	TaskID         uuid.UUID
	HasPhoto       bool
	PhotoName      string
	Preview        string
	Location       *task.Coordinates
	LocationStatus LocationStatus
	LocationError  string
	Note           string
	CanSubmit      bool
	Submitting     bool
}

type Submitter interface {
	Submit(ctx context.Context, req service.CompletionRequest) (*service.CompletionResult, error)
}

// Reporter принимает ответ устройства на ожидающий запрос геолокации
type Reporter interface {
	Deliver(task.Coordinates) error
	Fail(error) error
}

type Workflow struct {
	taskID    uuid.UUID
	issueID   *uuid.UUID
	principal session.Principal
	geo       capture.Geolocator
	submitter Submitter
	opts      capture.PositionOptions
	now       func() time.Time

	mu         sync.Mutex
	draft      Draft
	locDone    chan struct{}
	submitting bool
	finished   bool
	touchedAt  time.Time
}

type Option func(*Workflow)

func WithPositionOptions(opts capture.PositionOptions) Option {
	return func(w *Workflow) {
		if opts.Timeout > 0 {
			w.opts = opts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// NewWorkflow создаёт пустой черновик; geo == nil означает, что геолокации на устройстве нет
func NewWorkflow(principal session.Principal, t *task.Task, geo capture.Geolocator, submitter Submitter, options ...Option) *Workflow {
	w := &Workflow{
		taskID:    t.ID,
		issueID:   t.IssueID(),
		principal: principal,
		geo:       geo,
		submitter: submitter,
		opts:      capture.DefaultPositionOptions(),
		now:       time.Now,
		draft:     Draft{LocationStatus: LocationIdle},
	}
	for _, opt := range options {
		opt(w)
	}
	w.touchedAt = w.now()
	return w
}

func (w *Workflow) TaskID() uuid.UUID {
	return w.taskID
}

// SelectPhoto - выбор фото пользователем. Отмена выбора черновик не меняет.
func (w *Workflow) SelectPhoto(ctx context.Context, picker capture.Picker) error {
	photo, err := picker.PickImage(ctx)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrCancelled):
			logger.Info("Completion: Выбор фото отменён", zap.String("task_id", w.taskID.String()))
			return nil
		case errors.Is(err, capture.ErrNotImage):
			return service.NewValidationError("photo", "the selected file is not an image")
		case errors.Is(err, capture.ErrTooLarge):
			return service.NewPhotoTooLarge()
		default:
			return service.NewCaptureFailed(err)
		}
	}

	return w.AttachPhoto(photo)
}

// AttachPhoto заменяет фото черновика. Во время отправки черновик не меняется.
func (w *Workflow) AttachPhoto(photo *capture.Photo) error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return service.NewSubmitInProgress()
	}
	w.draft.Photo = photo
	w.touch()
	w.mu.Unlock()

	w.onPhotoCaptured()
	return nil
}

// onPhotoCaptured - правило оркестрации: фото запускает геолокацию, если её ещё не запрашивали
func (w *Workflow) onPhotoCaptured() {
	w.mu.Lock()
	idle := w.draft.LocationStatus == LocationIdle
	w.mu.Unlock()

	if idle {
		w.StartLocationCapture()
	}
}

// StartLocationCapture возвращает true, если выпущен новый запрос
func (w *Workflow) StartLocationCapture() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.finished {
		return false
	}

	switch w.draft.LocationStatus {
	case LocationCapturing, LocationCaptured:
		return false
	}

	if w.geo == nil {
		w.draft.LocationStatus = LocationError
		w.draft.LocationErr = capture.ErrUnsupported
		logger.Warn("Completion: Геолокация недоступна", zap.String("task_id", w.taskID.String()))
		return false
	}

	if p, ok := w.geo.(capture.Preparer); ok {
		p.Prepare()
	}

	done := make(chan struct{})
	w.locDone = done
	w.draft.LocationStatus = LocationCapturing
	w.draft.LocationErr = nil

	go w.locate(done)
	return true
}

func (w *Workflow) locate(done chan struct{}) {
	defer close(done)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.Timeout)
	defer cancel()

	coords, err := w.geo.CurrentPosition(ctx, w.opts)
	if err == nil {
		err = capture.ValidatePosition(coords)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = capture.ErrTimeout
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.draft.LocationStatus = LocationError
		w.draft.LocationErr = err
		logger.Warn("Completion: Не удалось получить точку",
			zap.String("task_id", w.taskID.String()),
			zap.Error(err),
			zap.Duration("ms", time.Since(start)))
		return
	}

	w.draft.Location = &coords
	w.draft.LocatedAt = w.now()
	w.draft.LocationStatus = LocationCaptured
	logger.Info("Completion: Точка получена",
		zap.String("task_id", w.taskID.String()),
		zap.Duration("ms", time.Since(start)))
}

// WaitLocation ждёт завершения текущего запроса геолокации, если он есть
func (w *Workflow) WaitLocation(ctx context.Context) error {
	w.mu.Lock()
	done := w.locDone
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Workflow) ReportPosition(coords task.Coordinates) error {
	return w.report(func(r Reporter) error { return r.Deliver(coords) })
}

func (w *Workflow) ReportFailure(cause error) error {
	return w.report(func(r Reporter) error { return r.Fail(cause) })
}

func (w *Workflow) report(send func(Reporter) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	reporter, ok := w.geo.(Reporter)
	if !ok {
		return capture.ErrUnsupported
	}
	if w.draft.LocationStatus != LocationCapturing {
		return capture.ErrNoPendingRequest
	}
	return send(reporter)
}

func (w *Workflow) SetNote(note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return service.NewSubmitInProgress()
	}
	w.draft.Note = note
	w.touch()
	return nil
}

func (w *Workflow) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Photo != nil && w.draft.Location != nil
}

// Validate называет конкретное недостающее условие
func (w *Workflow) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return service.ValidateRequest(w.requestLocked())
}

// Submit отправляет черновик. При ошибке черновик сохраняется для повтора,
// при успехе очищается.
func (w *Workflow) Submit(ctx context.Context) (*service.CompletionResult, error) {
	w.mu.Lock()
	w.touch()
	if w.submitting {
		w.mu.Unlock()
		return nil, service.NewSubmitInProgress()
	}
	if w.finished {
		w.mu.Unlock()
		return nil, service.NewAlreadyCompleted(w.taskID.String())
	}
	req := w.requestLocked()
	if err := service.ValidateRequest(req); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.submitting = true
	w.mu.Unlock()

	result, err := w.submitter.Submit(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	w.touch()

	if err != nil {
		logger.Warn("Completion: Отправка не удалась, черновик сохранён",
			zap.String("task_id", w.taskID.String()),
			zap.String("user_id", w.principal.UserID.String()),
			zap.Error(err))
		return nil, err
	}

	w.draft = Draft{LocationStatus: LocationIdle}
	w.locDone = nil
	w.finished = true
	return result, nil
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		TaskID:         w.taskID,
		HasPhoto:       w.draft.Photo != nil,
		LocationStatus: w.draft.LocationStatus,
		Note:           w.draft.Note,
		CanSubmit:      w.draft.Photo != nil && w.draft.Location != nil,
		Submitting:     w.submitting,
	}
	if w.draft.Photo != nil {
		s.PhotoName = w.draft.Photo.Name
		s.Preview = w.draft.Photo.Preview
	}
	if w.draft.Location != nil {
		loc := *w.draft.Location
		s.Location = &loc
	}
	if w.draft.LocationErr != nil {
		s.LocationError = w.draft.LocationErr.Error()
	}
	return s
}

func (w *Workflow) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// idleFor - сколько черновик не трогали; занятый черновик не простаивает
func (w *Workflow) idleFor(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting || w.draft.LocationStatus == LocationCapturing {
		return 0
	}
	return now.Sub(w.touchedAt)
}

func (w *Workflow) requestLocked() service.CompletionRequest {
	req := service.CompletionRequest{
		TaskID:    w.taskID,
		IssueID:   w.issueID,
		Photo:     w.draft.Photo,
		LocatedAt: w.draft.LocatedAt,
		Note:      w.draft.Note,
	}
	if w.draft.Location != nil {
		loc := *w.draft.Location
		req.Location = &loc
	}
	return req
}

func (w *Workflow) touch() {
	w.touchedAt = w.now()
}
