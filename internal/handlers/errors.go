package handlers

import (
	"net/http"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError отвечает клиенту, если err - бизнес-ошибка; причина входит в message
func handleBusinessError(w http.ResponseWriter, err error) bool {
	businessErr, ok := service.AsBusinessError(err)
	if !ok {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)
	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode),
		zap.Error(err))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", service.UserMessage(businessErr)),
		toPayload("details", businessErr.Details),
	)
	return true
}

func handleError(w http.ResponseWriter, err error) {
	if handleBusinessError(w, err) {
		return
	}
	logger.Error("HTTP: Внутренняя ошибка", err)
	responseWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong. Please try again.")
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeCaptureFailed:
		return http.StatusBadRequest
	case service.CodePhotoRequired, service.CodeLocationRequired:
		return http.StatusUnprocessableEntity
	case service.CodeUploadFailed, service.CodeTaskUpdateFailed:
		return http.StatusBadGateway
	case service.CodePhotoTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.CodeSubmitInProgress, service.CodeAlreadyCompleted:
		return http.StatusConflict
	case service.CodeRepositoryFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
