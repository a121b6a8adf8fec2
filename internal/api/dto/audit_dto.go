package dto

import (
	"time"

	"github.com/unionhall/triage-service/internal/domain"
)

// AuditEntryResponse is one immutable trail entry plus its human-readable
// rendering.
type AuditEntryResponse struct {
	ID          int64              `json:"id"`
	TicketID    *string            `json:"ticket_id,omitempty"`
	Actor       domain.ActorType   `json:"actor"`
	ActorName   string             `json:"actor_name"`
	Action      domain.AuditAction `json:"action"`
	Reason      *string            `json:"reason,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"created_at"`
}
