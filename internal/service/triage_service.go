package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/redaction"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/internal/triage"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// TriageService coordinates ticket submission and lifecycle transitions.
// Raw text is captured and redacted at submission time; every transition
// lands on the audit trail or does not happen at all.
type TriageService struct {
	tickets    repository.TicketRepository
	trail      *audit.Trail
	router     *triage.Router
	dispatcher events.Dispatcher
	locks      *util.KeyedMutex
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators for the service.
type TriageDependencies struct {
	TicketRepo repository.TicketRepository
	Trail      *audit.Trail
	Router     *triage.Router
	Dispatcher events.Dispatcher
	Locks      *util.KeyedMutex
	Logger     *zap.Logger
}

// SubmitInput describes a member's assistance request.
type SubmitInput struct {
	Title    string
	Category string
	Priority domain.TicketPriority
	Text     string
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	return &TriageService{
		tickets:    deps.TicketRepo,
		trail:      deps.Trail,
		router:     deps.Router,
		dispatcher: deps.Dispatcher,
		locks:      deps.Locks,
		logger:     deps.Logger,
	}
}

// ticketTransitions is the closed transition table. Routing out of PENDING
// and NEEDS_ASSIGNMENT is owned by the Router; this table covers the human
// side of the lifecycle.
var ticketTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending:         {domain.TicketStatusNeedsAssignment, domain.TicketStatusAutoAssigned, domain.TicketStatusAutoResolved},
	domain.TicketStatusNeedsAssignment: {domain.TicketStatusAutoAssigned},
	domain.TicketStatusAutoAssigned:    {domain.TicketStatusInProgress, domain.TicketStatusNeedsAssignment},
	domain.TicketStatusAutoResolved:    {domain.TicketStatusInProgress, domain.TicketStatusNeedsAssignment},
	domain.TicketStatusInProgress:      {domain.TicketStatusResolved},
	domain.TicketStatusResolved:        {},
}

func validTicketTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range ticketTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Submit captures a new ticket. The raw text is redacted immediately; only
// the redacted form is ever displayed.
func (s *TriageService) Submit(ctx context.Context, input SubmitInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, apperrors.NewInvalidInput("ticket text is required", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewInvalidInput("ticket title is required", nil)
	}

	redacted, err := redaction.Redact(input.Text)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}

	ticket := &domain.Ticket{
		HumanID:             generateHumanID(),
		Title:               strings.TrimSpace(input.Title),
		Category:            strings.TrimSpace(input.Category),
		Priority:            priority,
		Status:              domain.TicketStatusPending,
		RawText:             input.Text,
		RedactedText:        redacted.RedactedText,
		RedactionSummary:    redacted.Summary,
		HasSensitiveContent: redacted.Summary.Total() > 0,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorSystem},
		Payload: events.TicketSubmittedPayload{
			HumanID:             ticket.HumanID,
			Category:            ticket.Category,
			Priority:            ticket.Priority,
			HasSensitiveContent: ticket.HasSensitiveContent,
		},
	})
	return ticket, nil
}

// Route hands the suggestion to the router and publishes the outcome.
func (s *TriageService) Route(ctx context.Context, ticketID string, suggestion domain.Suggestion) (triage.Decision, error) {
	decision, err := s.router.Route(ctx, ticketID, suggestion)
	if err != nil {
		return triage.Decision{}, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketRouted,
		TicketID: ticketID,
		Actor:    events.Actor{Type: domain.ActorAI, Name: suggestion.Model},
		Payload: events.TicketRoutedPayload{
			Status:           decision.Status,
			AssignedTo:       decision.AssignedTo,
			Confidence:       suggestion.Confidence,
			FlaggedForReview: decision.FlaggedForReview,
		},
	})
	return decision, nil
}

// Override delegates to the router and publishes the outcome.
func (s *TriageService) Override(ctx context.Context, ticketID, assignedTo, reason, adminName string) (*domain.Ticket, error) {
	ticket, err := s.router.Override(ctx, ticketID, assignedTo, reason, adminName)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventAssignmentOverride,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorAdmin, Name: adminName},
		Payload:  events.AssignmentOverridePayload{AssignedTo: assignedTo, Reason: reason},
	})
	return ticket, nil
}

// MarkInProgress moves an assigned or auto-resolved ticket into active work.
func (s *TriageService) MarkInProgress(ctx context.Context, ticketID string, actor audit.Actor) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.TicketStatusInProgress, actor)
}

// Resolve completes an in-progress ticket.
func (s *TriageService) Resolve(ctx context.Context, ticketID string, actor audit.Actor) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.TicketStatusResolved, actor)
}

// FallbackNeedsAssignment degrades a ticket whose model call failed. The
// ticket moves to NEEDS_ASSIGNMENT and the failure lands on the trail as a
// system MODEL_CALL entry; no assignment is guessed.
func (s *TriageService) FallbackNeedsAssignment(ctx context.Context, ticketID string, cause error) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	if ticket.Status != domain.TicketStatusPending {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusNeedsAssignment))
	}

	prev := *ticket
	ticket.Status = domain.TicketStatusNeedsAssignment
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConcurrentModification("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}

	if _, err := s.trail.Append(ctx, domain.AuditEntry{
		TicketID:  &ticket.ID,
		Actor:     domain.ActorSystem,
		ActorName: "triage-worker",
		Action:    domain.ActionModelCall,
		Metadata: map[string]any{
			"error":      cause.Error(),
			"new_status": string(domain.TicketStatusNeedsAssignment),
		},
	}); err != nil {
		s.revert(ctx, &prev, ticket.Version)
		return err
	}
	return nil
}

// GetTicket returns the displayable (redacted) ticket.
func (s *TriageService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns recent tickets for the admin console.
func (s *TriageService) ListTickets(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// transition applies a status change under the per-ticket lock. An invalid
// transition is rejected with state untouched and nothing appended; a failed
// audit append rolls the state change back.
func (s *TriageService) transition(ctx context.Context, ticketID string, next domain.TicketStatus, actor audit.Actor) (*domain.Ticket, error) {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !validTicketTransition(ticket.Status, next) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(next))
	}

	prev := *ticket
	oldStatus := ticket.Status
	ticket.Status = next
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConcurrentModification("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if _, err := s.trail.Append(ctx, domain.AuditEntry{
		TicketID:  &ticket.ID,
		Actor:     actor.Type,
		ActorName: actor.Name,
		Action:    domain.ActionStatusChange,
		Metadata: map[string]any{
			"old_status": string(oldStatus),
			"new_status": string(next),
		},
	}); err != nil {
		s.revert(ctx, &prev, ticket.Version)
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, Name: actor.Name},
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: next},
	})
	return ticket, nil
}

func (s *TriageService) revert(ctx context.Context, prev *domain.Ticket, currentVersion int64) {
	restored := *prev
	restored.Version = currentVersion
	if err := s.tickets.Update(ctx, &restored); err != nil {
		s.logger.Error("failed to revert ticket after audit append failure",
			zap.String("ticket_id", prev.ID), zap.Error(err))
	}
}

func (s *TriageService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateHumanID() string {
	return "TRG-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
