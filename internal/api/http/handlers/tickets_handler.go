package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/api/dto"
	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/persistence"
	"github.com/unionhall/triage-service/internal/service"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints. Members submit; admins and
// proponents work the console views.
type TicketsHandler struct {
	triage *service.TriageService
	trail  *audit.Trail
	cache  *persistence.RedactedViewCache
	logger *zap.Logger
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(triage *service.TriageService, trail *audit.Trail, cache *persistence.RedactedViewCache, logger *zap.Logger) *TicketsHandler {
	return &TicketsHandler{triage: triage, trail: trail, cache: cache, logger: logger}
}

// Create POST /tickets. Open to portal members; no login required.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	ticket, err := h.triage.Submit(c.UserContext(), service.SubmitInput{
		Title:    req.Title,
		Category: req.Category,
		Priority: req.Priority,
		Text:     req.Text,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	tickets, err := h.triage.ListTickets(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id. The displayed text is always the redacted form,
// served from the cache when warm.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	ticket, err := h.triage.GetTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}

	text := ticket.RedactedText
	if cached, ok, cerr := h.cache.GetRedacted(c.UserContext(), ticketID); cerr != nil {
		h.logger.Warn("redacted-view cache read failed", zap.String("ticket_id", ticketID), zap.Error(cerr))
	} else if ok {
		text = cached
	} else if serr := h.cache.SetRedacted(c.UserContext(), ticketID, ticket.RedactedText); serr != nil {
		h.logger.Warn("redacted-view cache write failed", zap.String("ticket_id", ticketID), zap.Error(serr))
	}

	detail := dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Text:          text,
		Suggestion:    ticket.Suggestion,
	}
	return c.JSON(fiber.Map{"data": detail})
}

// GetOriginal GET /tickets/:id/original. Every successful read lands on the
// audit trail before the text leaves the service.
func (h *TicketsHandler) GetOriginal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID := c.Params("id")
	text, err := h.trail.ViewOriginal(c.UserContext(), ticketID, audit.Actor{Type: principal.Actor, Name: principal.Name})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OriginalTextResponse{TicketID: ticketID, Text: text}})
}

// Override POST /tickets/:id/override.
func (h *TicketsHandler) Override(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	ticket, err := h.triage.Override(c.UserContext(), c.Params("id"), req.AssignedTo, req.Reason, principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// MarkInProgress POST /tickets/:id/progress.
func (h *TicketsHandler) MarkInProgress(c *fiber.Ctx) error {
	return h.transition(c, h.triage.MarkInProgress)
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.triage.Resolve)
}

// Audit GET /tickets/:id/audit.
func (h *TicketsHandler) Audit(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	entries, err := h.trail.Query(c.UserContext(), audit.Filter{TicketID: &ticketID})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

func (h *TicketsHandler) transition(c *fiber.Ctx, apply func(ctx context.Context, ticketID string, actor audit.Actor) (*domain.Ticket, error)) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := apply(c.UserContext(), c.Params("id"), audit.Actor{Type: principal.Actor, Name: principal.Name})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                  ticket.ID,
		HumanID:             ticket.HumanID,
		Title:               ticket.Title,
		Category:            ticket.Category,
		Priority:            ticket.Priority,
		Status:              ticket.Status,
		AssignedTo:          ticket.AssignedTo,
		HasSensitiveContent: ticket.HasSensitiveContent,
		RedactionSummary:    ticket.RedactionSummary,
		SubmittedAt:         ticket.SubmittedAt,
		UpdatedAt:           ticket.UpdatedAt,
	}
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:          entry.ID,
			TicketID:    entry.TicketID,
			Actor:       entry.Actor,
			ActorName:   entry.ActorName,
			Action:      entry.Action,
			Reason:      entry.Reason,
			Metadata:    entry.Metadata,
			Description: audit.Describe(entry),
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
