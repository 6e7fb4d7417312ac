package handlers

import (
	"net/http"
	"time"

	"fieldTasks/internal/handlers/dto"
	"fieldTasks/internal/logger"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{TaskService: taskService}
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Сервис недоступен", err)
		responseWithJSON(w, http.StatusServiceUnavailable, toPayload("status", "unavailable"))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}

// ListTasks - GET /api/tasks?scope=today|upcoming
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	scope := service.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = service.ScopeToday
	}

	tasks, err := h.TaskService.ListTasks(r.Context(), principal, scope)
	if err != nil {
		handleError(w, err)
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.String("scope", string(scope)),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	if scope == service.ScopeToday {
		writeJSON(w, http.StatusOK, dto.FromTodayList(tasks))
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskListResponse{Tasks: dto.FromTaskList(tasks)})
}

// GetTaskByID - GET /api/tasks/{id}
func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "Invalid task id.")
		return
	}

	t, err := h.TaskService.GetTask(r.Context(), principal, id)
	if err != nil {
		handleError(w, err)
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)))

	writeJSON(w, http.StatusOK, dto.FromTask(t))
}

func principalFrom(w http.ResponseWriter, r *http.Request) (session.Principal, bool) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		logger.Warn("HTTP: Нет пользователя в контексте", zap.String("path", r.URL.Path))
		responseWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Please sign in.")
	}
	return principal, ok
}
