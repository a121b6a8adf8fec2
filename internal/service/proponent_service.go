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
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/internal/textdiff"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// ProponentService manages review tasks for AI-drafted responses.
type ProponentService struct {
	tasks      repository.ProponentTaskRepository
	tickets    repository.TicketRepository
	trail      *audit.Trail
	dispatcher events.Dispatcher
	locks      *util.KeyedMutex
	logger     *zap.Logger
}

// ProponentDependencies bundles collaborators for the service.
type ProponentDependencies struct {
	TaskRepo   repository.ProponentTaskRepository
	TicketRepo repository.TicketRepository
	Trail      *audit.Trail
	Dispatcher events.Dispatcher
	Locks      *util.KeyedMutex
	Logger     *zap.Logger
}

// NewProponentService constructs the service.
func NewProponentService(deps ProponentDependencies) *ProponentService {
	return &ProponentService{
		tasks:      deps.TaskRepo,
		tickets:    deps.TicketRepo,
		trail:      deps.Trail,
		dispatcher: deps.Dispatcher,
		locks:      deps.Locks,
		logger:     deps.Logger,
	}
}

var taskTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusPending:  {domain.TaskStatusEditing, domain.TaskStatusApproved, domain.TaskStatusRejected},
	domain.TaskStatusEditing:  {domain.TaskStatusPending},
	domain.TaskStatusApproved: {},
	domain.TaskStatusRejected: {},
}

func validTaskTransition(current, next domain.TaskStatus) bool {
	for _, candidate := range taskTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CreateTask opens a review task seeded with the model's drafted response.
func (s *ProponentService) CreateTask(ctx context.Context, ticketID string, proponent domain.Proponent, draft string, due time.Time) (*domain.ProponentTask, error) {
	if proponent.ID == "" || proponent.Name == "" {
		return nil, apperrors.NewInvalidInput("proponent identity is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	task := &domain.ProponentTask{
		TicketID:     ticket.ID,
		Proponent:    proponent,
		ResponseText: draft,
		DueDate:      due,
		Status:       domain.TaskStatusPending,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}
	return task, nil
}

// GetTask fetches a review task.
func (s *ProponentService) GetTask(ctx context.Context, taskID string) (*domain.ProponentTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return nil, apperrors.MapError(err)
	}
	return task, nil
}

// GetTaskForTicket fetches the most recent review task opened for a ticket.
func (s *ProponentService) GetTaskForTicket(ctx context.Context, ticketID string) (*domain.ProponentTask, error) {
	task, err := s.tasks.GetByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return task, nil
}

// StartEditing moves a pending task into the proponent's hands.
func (s *ProponentService) StartEditing(ctx context.Context, taskID string) (*domain.ProponentTask, error) {
	return s.transition(ctx, taskID, domain.TaskStatusEditing, func(task *domain.ProponentTask) audit.Actor {
		return audit.Actor{Type: domain.ActorProponent, Name: task.Proponent.Name}
	}, nil, nil)
}

// Resubmit returns an edited task to pending with its reworded response.
func (s *ProponentService) Resubmit(ctx context.Context, taskID, responseText string) (*domain.ProponentTask, error) {
	if strings.TrimSpace(responseText) == "" {
		return nil, apperrors.NewInvalidInput("response text is required", nil)
	}
	mutate := func(task *domain.ProponentTask) {
		task.ResponseText = responseText
	}
	return s.transition(ctx, taskID, domain.TaskStatusPending, func(task *domain.ProponentTask) audit.Actor {
		return audit.Actor{Type: domain.ActorProponent, Name: task.Proponent.Name}
	}, mutate, nil)
}

// Approve forwards the drafted response toward ticket resolution.
func (s *ProponentService) Approve(ctx context.Context, taskID, adminName string) (*domain.ProponentTask, error) {
	return s.transitionWithAction(ctx, taskID, domain.TaskStatusApproved, domain.ActionApprove,
		audit.Actor{Type: domain.ActorAdmin, Name: adminName}, nil, nil)
}

// Reject discards the drafted response. A still-routed ticket returns to
// NEEDS_ASSIGNMENT so a fresh suggestion can be produced; a ticket already
// in progress or resolved keeps its state and only the draft is discarded.
func (s *ProponentService) Reject(ctx context.Context, taskID, adminName, reason string) (*domain.ProponentTask, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewInvalidInput("rejection reason is required", nil)
	}
	return s.transitionWithAction(ctx, taskID, domain.TaskStatusRejected, domain.ActionReject,
		audit.Actor{Type: domain.ActorAdmin, Name: adminName}, nil, &reason)
}

// Diff aligns the model's drafted response against the proponent's current
// wording. Read-only; no side effects.
func (s *ProponentService) Diff(ctx context.Context, taskID string) ([]textdiff.Segment, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, task.TicketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Suggestion == nil {
		return nil, apperrors.NewInvalidInput("ticket has no suggestion to compare against",
			map[string]any{"ticket_id": ticket.ID})
	}
	return textdiff.Diff(ticket.Suggestion.Explanation, task.ResponseText)
}

func (s *ProponentService) transition(ctx context.Context, taskID string, next domain.TaskStatus, actorFor func(*domain.ProponentTask) audit.Actor, mutate func(*domain.ProponentTask), reason *string) (*domain.ProponentTask, error) {
	return s.apply(ctx, taskID, next, domain.ActionStatusChange, actorFor, mutate, reason)
}

func (s *ProponentService) transitionWithAction(ctx context.Context, taskID string, next domain.TaskStatus, action domain.AuditAction, actor audit.Actor, mutate func(*domain.ProponentTask), reason *string) (*domain.ProponentTask, error) {
	return s.apply(ctx, taskID, next, action, func(*domain.ProponentTask) audit.Actor { return actor }, mutate, reason)
}

// apply performs a task transition under the owning ticket's lock so task and
// ticket mutations for the same ticket serialize together. The audit append
// and the state change succeed or fail as one.
func (s *ProponentService) apply(ctx context.Context, taskID string, next domain.TaskStatus, action domain.AuditAction, actorFor func(*domain.ProponentTask) audit.Actor, mutate func(*domain.ProponentTask), reason *string) (*domain.ProponentTask, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(task.TicketID)
	defer s.locks.Unlock(task.TicketID)

	// Reload under the lock; the first read raced other writers.
	task, err = s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !validTaskTransition(task.Status, next) {
		return nil, apperrors.NewInvalidTransition(string(task.Status), string(next))
	}

	prevTask := *task
	oldStatus := task.Status
	task.Status = next
	if mutate != nil {
		mutate(task)
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConcurrentModification("task", map[string]any{"task_id": taskID})
		}
		return nil, apperrors.MapError(err)
	}

	var prevTicket *domain.Ticket
	var ticketVersion int64
	if next == domain.TaskStatusRejected {
		ticket, err := s.tickets.GetByID(ctx, task.TicketID)
		if err != nil {
			s.revertTask(ctx, &prevTask, task.Version)
			return nil, apperrors.MapError(err)
		}
		// The demotion obeys the ticket transition table. An in-progress
		// or resolved ticket stays as it is.
		if validTicketTransition(ticket.Status, domain.TicketStatusNeedsAssignment) {
			saved := *ticket
			prevTicket = &saved
			ticket.Status = domain.TicketStatusNeedsAssignment
			ticket.AssignedTo = nil
			if err := s.tickets.Update(ctx, ticket); err != nil {
				s.revertTask(ctx, &prevTask, task.Version)
				if errors.Is(err, repository.ErrVersionConflict) {
					return nil, apperrors.NewConcurrentModification("ticket", map[string]any{"ticket_id": task.TicketID})
				}
				return nil, apperrors.MapError(err)
			}
			ticketVersion = ticket.Version
		}
	}

	actor := actorFor(task)
	metadata := map[string]any{
		"task_id":    task.ID,
		"old_status": string(oldStatus),
		"new_status": string(next),
	}
	if prevTicket != nil {
		metadata["ticket_status"] = string(domain.TicketStatusNeedsAssignment)
	}
	if _, err := s.trail.Append(ctx, domain.AuditEntry{
		TicketID:  &task.TicketID,
		Actor:     actor.Type,
		ActorName: actor.Name,
		Action:    action,
		Reason:    reason,
		Metadata:  metadata,
	}); err != nil {
		s.revertTask(ctx, &prevTask, task.Version)
		if prevTicket != nil {
			restored := *prevTicket
			restored.Version = ticketVersion
			if uerr := s.tickets.Update(ctx, &restored); uerr != nil {
				s.logger.Error("failed to revert ticket after audit append failure",
					zap.String("ticket_id", prevTicket.ID), zap.Error(uerr))
			}
		}
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTaskStatusChanged,
		TicketID: task.TicketID,
		Actor:    events.Actor{Type: actor.Type, Name: actor.Name},
		Payload:  events.TaskStatusChangedPayload{TaskID: task.ID, OldStatus: oldStatus, NewStatus: next},
	})
	return task, nil
}

func (s *ProponentService) revertTask(ctx context.Context, prev *domain.ProponentTask, currentVersion int64) {
	restored := *prev
	restored.Version = currentVersion
	if err := s.tasks.Update(ctx, &restored); err != nil {
		s.logger.Error("failed to revert task after audit append failure",
			zap.String("task_id", prev.ID), zap.Error(err))
	}
}

func (s *ProponentService) publish(ctx context.Context, event events.Event) {
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
