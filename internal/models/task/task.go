package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	StaffID       uuid.UUID   `json:"staff_id" db:"staff_id"`
	Title         string      `json:"title" db:"title"`
	ScheduledDate time.Time   `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime *string     `json:"scheduled_time,omitempty" db:"scheduled_time"`
	Status        Status      `json:"status" db:"status"`
	Issue         *Issue      `json:"issue,omitempty"`
	Completion    *Completion `json:"completion,omitempty"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}

// Completion - подтверждение выполнения, записывается одним обновлением задачи
type Completion struct {
	PhotoURL    string      `json:"completion_photo" db:"completion_photo"`
	Location    Coordinates `json:"location"`
	Note        string      `json:"completion_note" db:"completion_note"`
	CompletedAt time.Time   `json:"completed_at" db:"completed_at"`
}

type Coordinates struct {
	Lat float64 `json:"lat" db:"completion_lat"`
	Lng float64 `json:"lng" db:"completion_lng"`
}

type Issue struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Location    string      `json:"location" db:"location"`
	Priority    string      `json:"priority" db:"priority"`
	Category    string      `json:"category" db:"category"`
	PhotoURL    string      `json:"photo_url" db:"photo_url"`
	Status      IssueStatus `json:"status" db:"status"`
}

type Status string
type IssueStatus string

const StatusPending Status = "pending"
const StatusInProgress Status = "in_progress"
const StatusCompleted Status = "completed"

const IssueOpen IssueStatus = "open"
const IssueResolved IssueStatus = "resolved"

func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Summary - счётчики задач за день; всё незавершённое считается ожидающим
type Summary struct {
	Total     int
	Completed int
	Pending   int
}

func Summarize(tasks []*Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		if t.IsCompleted() {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}

// IssueID возвращает nil, если у задачи нет связанной заявки
func (t *Task) IssueID() *uuid.UUID {
	if t.Issue == nil || t.Issue.ID == uuid.Nil {
		return nil
	}
	id := t.Issue.ID
	return &id
}
