package task

import (
	"time"

	"github.com/google/uuid"
)

type TaskOption func(*Task)

func New(staffID uuid.UUID, title string, scheduled time.Time, options ...TaskOption) *Task {
	t := &Task{
		ID:            uuid.New(),
		StaffID:       staffID,
		Title:         title,
		ScheduledDate: DateOf(scheduled),
		Status:        StatusPending,
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func WithID(id uuid.UUID) TaskOption {
	return func(t *Task) {
		t.ID = id
	}
}

func WithScheduledTime(hhmm string) TaskOption {
	if hhmm == "" {
		return nil
	}
	return func(t *Task) {
		t.ScheduledTime = &hhmm
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(t *Task) {
		t.Status = status
	}
}

func WithIssue(issue *Issue) TaskOption {
	return func(t *Task) {
		t.Issue = issue
	}
}

// DateOf отбрасывает время суток, дата задачи хранится без него
func DateOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
