package events

import (
	"time"

	"github.com/unionhall/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted     EventType = "ticket_submitted"
	EventTicketRouted        EventType = "ticket_routed"
	EventAssignmentOverride  EventType = "assignment_overridden"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTaskStatusChanged   EventType = "task_status_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	Name string           `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	HumanID             string                `json:"human_id"`
	Category            string                `json:"category"`
	Priority            domain.TicketPriority `json:"priority"`
	HasSensitiveContent bool                  `json:"has_sensitive_content"`
}

// TicketRoutedPayload payload.
type TicketRoutedPayload struct {
	Status           domain.TicketStatus `json:"status"`
	AssignedTo       *string             `json:"assigned_to,omitempty"`
	Confidence       float64             `json:"confidence"`
	FlaggedForReview bool                `json:"flagged_for_review"`
}

// AssignmentOverridePayload payload.
type AssignmentOverridePayload struct {
	AssignedTo string `json:"assigned_to"`
	Reason     string `json:"reason"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	TaskID    string            `json:"task_id"`
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
}
