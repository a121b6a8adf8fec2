// Package audit implements the append-only trail tying every automated and
// human action to a ticket's lifecycle, and gates access to unredacted
// content behind a durable log of that access.
package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/repository"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// Actor identifies the caller of a trail operation.
type Actor struct {
	Type domain.ActorType
	Name string
}

// Authorizer answers whether an actor may view original (unredacted) content
// for a ticket. It is an external collaborator; the trail only consumes the
// verdict.
type Authorizer interface {
	CanViewOriginal(ctx context.Context, actor Actor, ticketID string) (bool, error)
}

// Filter selects audit entries by ticket or by actor. Exactly one field must
// be set.
type Filter struct {
	TicketID *string
	Actor    *domain.ActorType
}

// Trail provides append, query and gated view-original over the audit store.
type Trail struct {
	entries repository.AuditRepository
	tickets repository.TicketRepository
	authz   Authorizer
	logger  *zap.Logger
}

// NewTrail constructs the trail.
func NewTrail(entries repository.AuditRepository, tickets repository.TicketRepository, authz Authorizer, logger *zap.Logger) *Trail {
	return &Trail{entries: entries, tickets: tickets, authz: authz, logger: logger}
}

// Append validates and durably stores the entry, returning its assigned ID.
// A storage failure surfaces as AUDIT_WRITE_FAILURE; callers must treat that
// as fatal to whatever transition triggered the append.
func (t *Trail) Append(ctx context.Context, entry domain.AuditEntry) (int64, error) {
	if !domain.ValidAction(entry.Action) {
		return 0, apperrors.NewInvalidInput("unknown audit action", map[string]any{"action": entry.Action})
	}
	if !domain.ValidActor(entry.Actor) {
		return 0, apperrors.NewInvalidInput("unknown actor type", map[string]any{"actor": entry.Actor})
	}
	if err := t.entries.Append(ctx, &entry); err != nil {
		t.logger.Error("audit append failed",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return 0, apperrors.NewAuditWriteFailure(err)
	}
	return entry.ID, nil
}

// Query returns matching entries ascending by timestamp. Read-only.
func (t *Trail) Query(ctx context.Context, filter Filter) ([]domain.AuditEntry, error) {
	switch {
	case filter.TicketID != nil && filter.Actor == nil:
		entries, err := t.entries.ListByTicket(ctx, *filter.TicketID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return entries, nil
	case filter.Actor != nil && filter.TicketID == nil:
		if !domain.ValidActor(*filter.Actor) {
			return nil, apperrors.NewInvalidInput("unknown actor type", map[string]any{"actor": *filter.Actor})
		}
		entries, err := t.entries.ListByActor(ctx, *filter.Actor)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return entries, nil
	default:
		return nil, apperrors.NewInvalidInput("filter must set exactly one of ticket id or actor", nil)
	}
}

// ViewOriginal returns a ticket's raw text for a permitted actor. The access
// entry is appended before the text is released: no caller can obtain raw
// text without a durable record of that access already existing. A denied
// check appends nothing.
func (t *Trail) ViewOriginal(ctx context.Context, ticketID string, actor Actor) (string, error) {
	allowed, err := t.authz.CanViewOriginal(ctx, actor, ticketID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if !allowed {
		return "", apperrors.NewPermissionDenied("actor may not view original content")
	}

	ticket, err := t.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", apperrors.MapError(err)
	}

	if _, err := t.Append(ctx, domain.AuditEntry{
		TicketID:  &ticket.ID,
		Actor:     actor.Type,
		ActorName: actor.Name,
		Action:    domain.ActionViewOriginal,
		Metadata:  map[string]any{"human_id": ticket.HumanID},
	}); err != nil {
		return "", err
	}
	return ticket.RawText, nil
}
