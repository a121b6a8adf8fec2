package dto

import (
	"time"

	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/textdiff"
)

// CreateTaskRequest payload for opening a review task.
type CreateTaskRequest struct {
	TicketID  string           `json:"ticket_id"`
	Proponent domain.Proponent `json:"proponent"`
	DueDate   *time.Time       `json:"due_date,omitempty"`
}

// ResubmitRequest payload for returning an edited response.
type ResubmitRequest struct {
	ResponseText string `json:"response_text"`
}

// RejectRequest payload for discarding a drafted response.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// TaskResponse is the review-task shape.
type TaskResponse struct {
	ID           string            `json:"id"`
	TicketID     string            `json:"ticket_id"`
	Proponent    domain.Proponent  `json:"proponent"`
	ResponseText string            `json:"response_text"`
	Status       domain.TaskStatus `json:"status"`
	DueDate      time.Time         `json:"due_date"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// DiffResponse carries the aligned segments between the drafted and edited
// response texts.
type DiffResponse struct {
	TaskID   string             `json:"task_id"`
	Segments []textdiff.Segment `json:"segments"`
}
