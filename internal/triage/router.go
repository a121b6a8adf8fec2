// Package triage maps model suggestions into assignment decisions and admin
// overrides into assignment changes, recording every outcome on the audit
// trail.
package triage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// Decision is the router's verdict for a ticket.
type Decision struct {
	Status           domain.TicketStatus
	AssignedTo       *string
	FlaggedForReview bool
}

// Router applies the confidence banding policy.
type Router struct {
	tickets repository.TicketRepository
	trail   *audit.Trail
	cfg     config.TriageConfig
	locks   *util.KeyedMutex
	logger  *zap.Logger
}

// NewRouter constructs the router. The keyed mutex must be shared with every
// other component that mutates tickets.
func NewRouter(tickets repository.TicketRepository, trail *audit.Trail, cfg config.TriageConfig, locks *util.KeyedMutex, logger *zap.Logger) *Router {
	return &Router{tickets: tickets, trail: trail, cfg: cfg, locks: locks, logger: logger}
}

// Decide computes the banding verdict without side effects.
func (r *Router) Decide(category string, suggestion domain.Suggestion) Decision {
	assignee := suggestion.SuggestedAssignee
	switch {
	case suggestion.Confidence >= r.cfg.AutoThreshold:
		if r.cfg.AutoResolvable(category) {
			return Decision{Status: domain.TicketStatusAutoResolved, AssignedTo: optional(assignee)}
		}
		return Decision{Status: domain.TicketStatusAutoAssigned, AssignedTo: optional(assignee)}
	case suggestion.Confidence >= r.cfg.ReviewThreshold:
		return Decision{Status: domain.TicketStatusAutoAssigned, AssignedTo: optional(assignee), FlaggedForReview: true}
	default:
		return Decision{Status: domain.TicketStatusNeedsAssignment}
	}
}

// Route stores the suggestion on the ticket, applies the banding decision and
// appends the band's audit entry. The state change and its audit append
// commit or fail together. The full suggestion, reasoning included, stays on
// the ticket regardless of band.
func (r *Router) Route(ctx context.Context, ticketID string, suggestion domain.Suggestion) (Decision, error) {
	if suggestion.Confidence < 0 || suggestion.Confidence > 1 {
		return Decision{}, apperrors.NewInvalidInput("confidence must be within [0,1]",
			map[string]any{"confidence": suggestion.Confidence})
	}

	r.locks.Lock(ticketID)
	defer r.locks.Unlock(ticketID)

	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return Decision{}, mapLookupError(err, ticketID)
	}
	if ticket.Status != domain.TicketStatusPending && ticket.Status != domain.TicketStatusNeedsAssignment {
		return Decision{}, apperrors.NewInvalidTransition(string(ticket.Status), "routed")
	}

	category := suggestion.Category
	if category == "" {
		category = ticket.Category
	}
	decision := r.Decide(category, suggestion)

	prev := *ticket
	ticket.Suggestion = &suggestion
	ticket.Status = decision.Status
	ticket.AssignedTo = decision.AssignedTo
	if suggestion.Category != "" {
		ticket.Category = suggestion.Category
	}
	if suggestion.Priority != "" {
		ticket.Priority = suggestion.Priority
	}
	if err := r.tickets.Update(ctx, ticket); err != nil {
		return Decision{}, mapUpdateError(err, ticketID)
	}

	entry := r.bandEntry(ticket, suggestion, decision)
	if _, err := r.trail.Append(ctx, entry); err != nil {
		r.revert(ctx, &prev, ticket.Version)
		return Decision{}, err
	}

	r.logger.Info("ticket routed",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(decision.Status)),
		zap.Float64("confidence", suggestion.Confidence))
	return decision, nil
}

// Override supersedes the router's assignment with an admin's choice. The
// reason is mandatory and lands on the audit entry; history stays cumulative.
func (r *Router) Override(ctx context.Context, ticketID, assignedTo, reason, adminName string) (*domain.Ticket, error) {
	if strings.TrimSpace(assignedTo) == "" {
		return nil, apperrors.NewInvalidInput("assignee is required", nil)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewInvalidInput("override reason is required", nil)
	}

	r.locks.Lock(ticketID)
	defer r.locks.Unlock(ticketID)

	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapLookupError(err, ticketID)
	}

	prev := *ticket
	previousAssignee := ticket.AssignedTo
	ticket.AssignedTo = &assignedTo
	if ticket.Status == domain.TicketStatusPending || ticket.Status == domain.TicketStatusNeedsAssignment {
		ticket.Status = domain.TicketStatusAutoAssigned
	}
	if err := r.tickets.Update(ctx, ticket); err != nil {
		return nil, mapUpdateError(err, ticketID)
	}

	metadata := map[string]any{"assigned_to": assignedTo}
	if previousAssignee != nil {
		metadata["previous_assignee"] = *previousAssignee
	}
	if _, err := r.trail.Append(ctx, domain.AuditEntry{
		TicketID:  &ticket.ID,
		Actor:     domain.ActorAdmin,
		ActorName: adminName,
		Action:    domain.ActionOverride,
		Reason:    &reason,
		Metadata:  metadata,
	}); err != nil {
		r.revert(ctx, &prev, ticket.Version)
		return nil, err
	}

	r.logger.Info("assignment overridden",
		zap.String("ticket_id", ticket.ID),
		zap.String("assigned_to", assignedTo))
	return ticket, nil
}

// bandEntry builds the audit entry the band's rule requires: assignment bands
// record AUTO_ASSIGN; the low band records only the MODEL_CALL reasoning,
// since nothing was assigned.
func (r *Router) bandEntry(ticket *domain.Ticket, suggestion domain.Suggestion, decision Decision) domain.AuditEntry {
	if decision.Status == domain.TicketStatusNeedsAssignment {
		return domain.AuditEntry{
			TicketID:  &ticket.ID,
			Actor:     domain.ActorAI,
			ActorName: suggestion.Model,
			Action:    domain.ActionModelCall,
			Metadata: map[string]any{
				"confidence":     suggestion.Confidence,
				"model":          suggestion.Model,
				"recommendation": suggestion.Reasoning.Recommendation,
				"factors":        suggestion.Reasoning.Factors,
				"risk_factors":   suggestion.Reasoning.RiskFactors,
			},
		}
	}
	metadata := map[string]any{
		"confidence": suggestion.Confidence,
		"model":      suggestion.Model,
	}
	if decision.AssignedTo != nil {
		metadata["assigned_to"] = *decision.AssignedTo
	}
	if decision.FlaggedForReview {
		metadata["review_flagged"] = true
	}
	return domain.AuditEntry{
		TicketID:  &ticket.ID,
		Actor:     domain.ActorAI,
		ActorName: suggestion.Model,
		Action:    domain.ActionAutoAssign,
		Metadata:  metadata,
	}
}

// revert restores the pre-transition ticket state after a failed audit
// append, so the state change never outlives its missing entry.
func (r *Router) revert(ctx context.Context, prev *domain.Ticket, currentVersion int64) {
	restored := *prev
	restored.Version = currentVersion
	if err := r.tickets.Update(ctx, &restored); err != nil {
		r.logger.Error("failed to revert ticket after audit append failure",
			zap.String("ticket_id", prev.ID), zap.Error(err))
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func mapLookupError(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func mapUpdateError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperrors.NewConcurrentModification("ticket", map[string]any{"ticket_id": ticketID})
	}
	return mapLookupError(err, ticketID)
}
