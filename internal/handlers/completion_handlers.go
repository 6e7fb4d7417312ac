package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fieldTasks/internal/capture"
	"fieldTasks/internal/completion"
	"fieldTasks/internal/handlers/dto"
	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"go.uber.org/zap"
)

// reportWait - сколько ждать обработки ответа устройства перед выдачей снимка
const reportWait = 2 * time.Second

// CompletionHandler ведёт черновик подтверждения: фото, точка, заметка, отправка
type CompletionHandler struct {
	tasks         TaskService
	drafts        DraftRegistry
	maxPhotoBytes int64
}

func NewCompletionHandler(tasks TaskService, drafts DraftRegistry, maxPhotoBytes int64) *CompletionHandler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = capture.DefaultMaxPhotoBytes
	}
	return &CompletionHandler{
		tasks:         tasks,
		drafts:        drafts,
		maxPhotoBytes: maxPhotoBytes,
	}
}

// GetDraft - GET /api/tasks/{id}/draft
func (h *CompletionHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSnapshot(wf.Snapshot()))
}

// UploadPhoto - POST /api/tasks/{id}/draft/photo, multipart поле "photo"
func (h *CompletionHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if !checkContentType(r, "multipart/form-data") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "multipart/form-data"),
			zap.String("received", r.Header.Get("Content-Type")))
		responseWithError(w, http.StatusUnsupportedMediaType, service.CodeValidation, "Content-Type must be multipart/form-data.")
		return
	}

	wf, ok := h.open(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes+1<<20)
	picker := capture.FormPicker{Request: r, Field: "photo", MaxBytes: h.maxPhotoBytes}
	if err := wf.SelectPhoto(r.Context(), picker); err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromSnapshot(wf.Snapshot()))
}

// CaptureLocation - POST /api/tasks/{id}/draft/location/capture, ручной (пере)запуск геолокации
func (h *CompletionHandler) CaptureLocation(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.open(w, r)
	if !ok {
		return
	}

	started := wf.StartLocationCapture()
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, dto.FromSnapshot(wf.Snapshot()))
}

// ReportLocation - POST /api/tasks/{id}/draft/location, ответ устройства на запрос геолокации
func (h *CompletionHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, service.CodeValidation, "Content-Type must be application/json.")
		return
	}

	var report dto.LocationReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON", zap.Error(err))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "Invalid request body.")
		return
	}
	if report.Error == "" && (report.Lat == nil || report.Lng == nil) {
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "Either lat and lng or error must be provided.")
		return
	}

	wf, ok := h.open(w, r)
	if !ok {
		return
	}

	var err error
	if report.Error != "" {
		err = wf.ReportFailure(errors.New(report.Error))
	} else {
		err = wf.ReportPosition(task.Coordinates{Lat: *report.Lat, Lng: *report.Lng})
	}
	if err != nil {
		h.reportFailed(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportWait)
	defer cancel()
	_ = wf.WaitLocation(ctx)

	writeJSON(w, http.StatusOK, dto.FromSnapshot(wf.Snapshot()))
}

func (h *CompletionHandler) reportFailed(w http.ResponseWriter, err error) {
	logger.Warn("HTTP: Ответ устройства отклонён", zap.Error(err))
	switch {
	case errors.Is(err, capture.ErrNoPendingRequest):
		responseWithError(w, http.StatusConflict, "NO_PENDING_REQUEST", "No location request is pending.")
	case errors.Is(err, capture.ErrUnsupported):
		responseWithError(w, http.StatusConflict, "UNSUPPORTED", "Location reports are not accepted for this draft.")
	default:
		handleError(w, err)
	}
}

// SetNote - PUT /api/tasks/{id}/draft/note
func (h *CompletionHandler) SetNote(w http.ResponseWriter, r *http.Request) {
	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, service.CodeValidation, "Content-Type must be application/json.")
		return
	}

	var req dto.NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON", zap.Error(err))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "Invalid request body.")
		return
	}

	wf, ok := h.open(w, r)
	if !ok {
		return
	}

	if err := wf.SetNote(req.Note); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSnapshot(wf.Snapshot()))
}

// Complete - POST /api/tasks/{id}/complete
func (h *CompletionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	wf, ok := h.open(w, r)
	if !ok {
		return
	}
	principal, _ := session.FromContext(r.Context())

	result, err := wf.Submit(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	// успешная отправка - пользователь уходит со страницы, черновик больше не нужен
	h.drafts.Discard(principal, wf.TaskID())

	logger.Info("HTTP_OUT: Задача выполнена",
		zap.String("task_id", result.TaskID.String()),
		zap.Bool("issue_resolved", result.IssueResolved),
		zap.Duration("ms", time.Since(start)))

	writeJSON(w, http.StatusOK, dto.CompleteResponse{
		TaskID:        result.TaskID,
		PhotoURL:      result.Completion.PhotoURL,
		CompletedAt:   result.Completion.CompletedAt,
		IssueResolved: result.IssueResolved,
	})
}

// open находит задачу сотрудника и его черновик; при ошибке ответ уже записан
func (h *CompletionHandler) open(w http.ResponseWriter, r *http.Request) (*completion.Workflow, bool) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return nil, false
	}

	id, err := parseTaskID(r)
	if err != nil {
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "Invalid task id.")
		return nil, false
	}

	t, err := h.tasks.GetTask(r.Context(), principal, id)
	if err != nil {
		handleError(w, err)
		return nil, false
	}

	wf, err := h.drafts.Open(principal, t)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return wf, true
}
