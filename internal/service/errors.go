package service

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodePhotoRequired     = "PHOTO_REQUIRED"
	CodeLocationRequired  = "LOCATION_REQUIRED"
	CodeUploadFailed      = "UPLOAD_FAILED"
	CodeTaskUpdateFailed  = "TASK_UPDATE_FAILED"
	CodeSubmitInProgress  = "SUBMIT_IN_PROGRESS"
	CodeAlreadyCompleted  = "ALREADY_COMPLETED"
	CodeCaptureFailed     = "CAPTURE_FAILED"
	CodePhotoTooLarge     = "PHOTO_TOO_LARGE"
	CodeRepositoryFailure = "REPOSITORY_FAILURE"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

// AsBusinessError достаёт бизнес-ошибку из цепочки
func AsBusinessError(err error) (*BusinessError, bool) {
	var busErr *BusinessError
	if errors.As(err, &busErr) {
		return busErr, true
	}
	return nil, false
}

// HasCode проверяет код бизнес-ошибки в цепочке
func HasCode(err error, code string) bool {
	busErr, ok := AsBusinessError(err)
	return ok && busErr.Code == code
}

func NewNotFound(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found.", resource),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid value of '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewPhotoRequired() *BusinessError {
	return NewBusinessError(CodePhotoRequired, "Please select a completion photo.",
		ToDetail("missing", "photo"))
}

func NewLocationRequired() *BusinessError {
	return NewBusinessError(CodeLocationRequired, "GPS location is required. Please wait for GPS to capture.",
		ToDetail("missing", "location"))
}

func NewPhotoTooLarge() *BusinessError {
	return NewBusinessError(CodePhotoTooLarge, "Photo is too large. Please choose a smaller image.",
		ToDetail("field", "photo"))
}

func NewCaptureFailed(err error) *BusinessError {
	busErr := NewBusinessError(CodeCaptureFailed, "Photo selection failed. Please try again.")
	busErr.Err = err
	return busErr
}

func NewUploadFailed(err error) *BusinessError {
	busErr := NewBusinessError(CodeUploadFailed, "Photo upload failed")
	busErr.Err = err
	return busErr
}

func NewTaskUpdateFailed(err error) *BusinessError {
	busErr := NewBusinessError(CodeTaskUpdateFailed, "Failed to update task")
	busErr.Err = err
	return busErr
}

func NewSubmitInProgress() *BusinessError {
	return NewBusinessError(CodeSubmitInProgress, "Submission is already in progress.")
}

func NewAlreadyCompleted(id string) *BusinessError {
	return NewBusinessError(CodeAlreadyCompleted, "Task is already completed.", ToDetail("id", id))
}

func NewRepositoryFailure(operation string, err error) *BusinessError {
	busErr := NewBusinessError(CodeRepositoryFailure, "Service is temporarily unavailable. Please try again.",
		ToDetail("operation", operation))
	busErr.Err = err
	return busErr
}

// UserMessage - текст для показа пользователю. Причину добавляют только
// сбои внешних шагов отправки, остальные причины остаются в логах.
func UserMessage(err error) string {
	busErr, ok := AsBusinessError(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch busErr.Code {
	case CodeUploadFailed, CodeTaskUpdateFailed:
		if busErr.Err != nil {
			return busErr.Message + ": " + busErr.Err.Error()
		}
	}
	return busErr.Message
}
