package domain

import "time"

// TicketStatus enumerates lifecycle states for triaged tickets.
type TicketStatus string

const (
	TicketStatusPending         TicketStatus = "PENDING"
	TicketStatusNeedsAssignment TicketStatus = "NEEDS_ASSIGNMENT"
	TicketStatusAutoAssigned    TicketStatus = "AUTO_ASSIGNED"
	TicketStatusAutoResolved    TicketStatus = "AUTO_RESOLVED"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusResolved        TicketStatus = "RESOLVED"
)

// TicketPriority enumerates member request urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityNormal   TicketPriority = "NORMAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// RedactionSummary counts redaction markers per PII category.
type RedactionSummary struct {
	Names     int `json:"names"`
	IDs       int `json:"ids"`
	Addresses int `json:"addresses"`
	Phones    int `json:"phones"`
	Emails    int `json:"emails"`
}

// Total returns the number of markers across all categories.
func (s RedactionSummary) Total() int {
	return s.Names + s.IDs + s.Addresses + s.Phones + s.Emails
}

// Ticket is the aggregate for member assistance requests. RawText holds the
// original submission and is only reachable through the audit trail's gated
// view; RedactedText is what every surface displays.
type Ticket struct {
	ID                  string
	HumanID             string
	Title               string
	Category            string
	Priority            TicketPriority
	Status              TicketStatus
	RawText             string
	RedactedText        string
	RedactionSummary    RedactionSummary
	Suggestion          *Suggestion
	AssignedTo          *string
	HasSensitiveContent bool
	Version             int64
	SubmittedAt         time.Time
	UpdatedAt           time.Time
}
