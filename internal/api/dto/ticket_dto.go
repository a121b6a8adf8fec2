package dto

import (
	"time"

	"github.com/unionhall/triage-service/internal/domain"
)

// CreateTicketRequest payload for member submissions.
type CreateTicketRequest struct {
	Title    string                `json:"title"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Text     string                `json:"text"`
}

// OverrideRequest payload for admin assignment overrides.
type OverrideRequest struct {
	AssignedTo string `json:"assigned_to"`
	Reason     string `json:"reason"`
}

// TicketSummary is the list-view shape. Raw text is never included.
type TicketSummary struct {
	ID                  string                  `json:"id"`
	HumanID             string                  `json:"human_id"`
	Title               string                  `json:"title"`
	Category            string                  `json:"category"`
	Priority            domain.TicketPriority   `json:"priority"`
	Status              domain.TicketStatus     `json:"status"`
	AssignedTo          *string                 `json:"assigned_to,omitempty"`
	HasSensitiveContent bool                    `json:"has_sensitive_content"`
	RedactionSummary    domain.RedactionSummary `json:"redaction_summary"`
	SubmittedAt         time.Time               `json:"submitted_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// TicketDetailResponse is the single-ticket shape shown in the console. The
// text field always carries the redacted form.
type TicketDetailResponse struct {
	TicketSummary
	Text       string             `json:"text"`
	Suggestion *domain.Suggestion `json:"suggestion,omitempty"`
}

// OriginalTextResponse carries unredacted text for authorized admins.
type OriginalTextResponse struct {
	TicketID string `json:"ticket_id"`
	Text     string `json:"text"`
}
