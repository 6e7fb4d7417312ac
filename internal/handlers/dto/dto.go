package dto

import (
	"time"

	"fieldTasks/internal/completion"
	"fieldTasks/internal/models/task"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

type IssueResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	PhotoURL    string    `json:"photo_url"`
	Status      string    `json:"status"`
}

type CompletionResponse struct {
	PhotoURL    string    `json:"completion_photo"`
	Lat         float64   `json:"completion_lat"`
	Lng         float64   `json:"completion_lng"`
	Note        string    `json:"completion_note,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

type TaskResponse struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	ScheduledDate string              `json:"scheduled_date"`
	ScheduledTime *string             `json:"scheduled_time,omitempty"`
	Status        string              `json:"status"`
	Issue         *IssueResponse      `json:"issue,omitempty"`
	Completion    *CompletionResponse `json:"completion,omitempty"`
}

func FromTask(t *task.Task) TaskResponse {
	res := TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		ScheduledDate: t.ScheduledDate.Format(DateLayout),
		ScheduledTime: t.ScheduledTime,
		Status:        string(t.Status),
	}
	if t.Issue != nil {
		res.Issue = &IssueResponse{
			ID:          t.Issue.ID,
			Title:       t.Issue.Title,
			Description: t.Issue.Description,
			Location:    t.Issue.Location,
			Priority:    t.Issue.Priority,
			Category:    t.Issue.Category,
			PhotoURL:    t.Issue.PhotoURL,
			Status:      string(t.Issue.Status),
		}
	}
	if t.Completion != nil {
		res.Completion = &CompletionResponse{
			PhotoURL:    t.Completion.PhotoURL,
			Lat:         t.Completion.Location.Lat,
			Lng:         t.Completion.Location.Lng,
			Note:        t.Completion.Note,
			CompletedAt: t.Completion.CompletedAt,
		}
	}
	return res
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type SummaryResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type TaskListResponse struct {
	Tasks   []TaskResponse   `json:"tasks"`
	Summary *SummaryResponse `json:"summary,omitempty"`
}

// FromTodayList добавляет к списку счётчики дня
func FromTodayList(tasks []*task.Task) TaskListResponse {
	s := task.Summarize(tasks)
	return TaskListResponse{
		Tasks:   FromTaskList(tasks),
		Summary: &SummaryResponse{Total: s.Total, Completed: s.Completed, Pending: s.Pending},
	}
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type DraftResponse struct {
	TaskID         uuid.UUID `json:"task_id"`
	HasPhoto       bool      `json:"has_photo"`
	PhotoName      string    `json:"photo_name,omitempty"`
	Preview        string    `json:"preview,omitempty"`
	Location       *Location `json:"location,omitempty"`
	LocationStatus string    `json:"location_status"`
	LocationError  string    `json:"location_error,omitempty"`
	Note           string    `json:"note"`
	CanSubmit      bool      `json:"can_submit"`
	Submitting     bool      `json:"submitting"`
}

func FromSnapshot(s completion.Snapshot) DraftResponse {
	res := DraftResponse{
		TaskID:         s.TaskID,
		HasPhoto:       s.HasPhoto,
		PhotoName:      s.PhotoName,
		Preview:        s.Preview,
		LocationStatus: string(s.LocationStatus),
		LocationError:  s.LocationError,
		Note:           s.Note,
		CanSubmit:      s.CanSubmit,
		Submitting:     s.Submitting,
	}
	if s.Location != nil {
		res.Location = &Location{Lat: s.Location.Lat, Lng: s.Location.Lng}
	}
	return res
}

// LocationReport - ответ устройства: координаты либо текст ошибки
type LocationReport struct {
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	Error string   `json:"error,omitempty"`
}

type NoteRequest struct {
	Note string `json:"note"`
}

type CompleteResponse struct {
	TaskID        uuid.UUID `json:"task_id"`
	PhotoURL      string    `json:"photo_url"`
	CompletedAt   time.Time `json:"completed_at"`
	IssueResolved bool      `json:"issue_resolved"`
}
