package domain

import "time"

// TaskStatus enumerates proponent review states.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusEditing  TaskStatus = "EDITING"
	TaskStatusApproved TaskStatus = "APPROVED"
	TaskStatusRejected TaskStatus = "REJECTED"
)

// Proponent is the staff reviewer who finalizes AI-drafted response wording.
type Proponent struct {
	ID         string
	Name       string
	Role       string
	Department string
}

// ProponentTask tracks review of an AI-drafted response for a ticket.
// ResponseText is mutable while the task is in EDITING; every other field is
// fixed at creation.
type ProponentTask struct {
	ID           string
	TicketID     string
	Proponent    Proponent
	ResponseText string
	DueDate      time.Time
	Status       TaskStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
