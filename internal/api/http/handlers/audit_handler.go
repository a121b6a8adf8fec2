package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/domain"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// AuditHandler exposes trail queries to the admin console.
type AuditHandler struct {
	trail *audit.Trail
}

// NewAuditHandler constructs handler.
func NewAuditHandler(trail *audit.Trail) *AuditHandler {
	return &AuditHandler{trail: trail}
}

// Query GET /audit. Exactly one of ticket_id or actor selects the slice.
func (h *AuditHandler) Query(c *fiber.Ctx) error {
	var filter audit.Filter
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		filter.TicketID = &ticketID
	}
	if actorStr := c.Query("actor"); actorStr != "" {
		actor := domain.ActorType(actorStr)
		if !domain.ValidActor(actor) {
			return apperrors.NewInvalidInput("unknown actor type", map[string]any{"actor": actorStr})
		}
		filter.Actor = &actor
	}

	entries, err := h.trail.Query(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}
