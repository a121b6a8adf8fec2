package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/internal/textdiff"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

type proponentFixture struct {
	svc     *ProponentService
	tickets *repository.MemoryTicketRepository
	tasks   *repository.MemoryProponentTaskRepository
	entries *repository.MemoryAuditRepository
	trail   *audit.Trail
}

func newProponentFixture(t *testing.T) *proponentFixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	tasks := repository.NewMemoryProponentTaskRepository()
	entries := repository.NewMemoryAuditRepository()
	trail := audit.NewTrail(entries, tickets, allowAll{}, zap.NewNop())
	svc := NewProponentService(ProponentDependencies{
		TaskRepo:   tasks,
		TicketRepo: tickets,
		Trail:      trail,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Locks:      util.NewKeyedMutex(),
		Logger:     zap.NewNop(),
	})
	return &proponentFixture{svc: svc, tickets: tickets, tasks: tasks, entries: entries, trail: trail}
}

func (f *proponentFixture) seedAssignedTicket(t *testing.T, explanation string) *domain.Ticket {
	t.Helper()
	assignee := "Medical Team"
	ticket := &domain.Ticket{
		HumanID:      "TRG-0002",
		Title:        "assistance request",
		Category:     "Medical Assistance",
		Priority:     domain.TicketPriorityNormal,
		Status:       domain.TicketStatusAutoAssigned,
		RawText:      "coverage question",
		RedactedText: "coverage question",
		AssignedTo:   &assignee,
		Suggestion: &domain.Suggestion{
			Category:    "Medical Assistance",
			Confidence:  0.91,
			Model:       "triage-model-1",
			Explanation: explanation,
		},
	}
	if err := f.tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func (f *proponentFixture) seedTask(t *testing.T, explanation string) (*domain.Ticket, *domain.ProponentTask) {
	t.Helper()
	ticket := f.seedAssignedTicket(t, explanation)
	task, err := f.svc.CreateTask(context.Background(), ticket.ID,
		domain.Proponent{ID: "p1", Name: "Pat Proponent", Role: "steward", Department: "Medical"},
		explanation, time.Now().Add(72*time.Hour))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return ticket, task
}

func (f *proponentFixture) auditLog(t *testing.T, ticketID string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.trail.Query(context.Background(), audit.Filter{TicketID: &ticketID})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	return entries
}

func TestCreateTask_StartsPendingWithoutAuditEntry(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	if task.Status != domain.TaskStatusPending {
		t.Errorf("status = %s, want PENDING", task.Status)
	}
	if task.ResponseText != "draft response" {
		t.Errorf("response = %q", task.ResponseText)
	}
	if log := f.auditLog(t, ticket.ID); len(log) != 0 {
		t.Errorf("task creation must not write audit entries, got %d", len(log))
	}
}

func TestEditResubmitFlow(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	editing, err := f.svc.StartEditing(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("start editing: %v", err)
	}
	if editing.Status != domain.TaskStatusEditing {
		t.Errorf("status = %s, want EDITING", editing.Status)
	}

	resubmitted, err := f.svc.Resubmit(context.Background(), task.ID, "reworded response")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != domain.TaskStatusPending || resubmitted.ResponseText != "reworded response" {
		t.Errorf("task = %+v", resubmitted)
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 2 {
		t.Fatalf("audit log length = %d, want 2", len(log))
	}
	for _, entry := range log {
		if entry.Action != domain.ActionStatusChange || entry.Actor != domain.ActorProponent {
			t.Errorf("entry = %+v", entry)
		}
	}
}

func TestResubmit_RequiresText(t *testing.T) {
	f := newProponentFixture(t)
	_, task := f.seedTask(t, "draft response")
	if _, err := f.svc.StartEditing(context.Background(), task.ID); err != nil {
		t.Fatalf("start editing: %v", err)
	}
	_, err := f.svc.Resubmit(context.Background(), task.ID, "  ")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestApprove_RecordsAdminEntry(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	approved, err := f.svc.Approve(context.Background(), task.ID, "Dana Admin")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.TaskStatusApproved {
		t.Errorf("status = %s, want APPROVED", approved.Status)
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 || log[0].Action != domain.ActionApprove || log[0].Actor != domain.ActorAdmin {
		t.Fatalf("expected one APPROVE entry by admin, got %+v", log)
	}
}

func TestReject_ReturnsTicketToNeedsAssignment(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	rejected, err := f.svc.Reject(context.Background(), task.ID, "Dana Admin", "tone is wrong")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.TaskStatusRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusNeedsAssignment {
		t.Errorf("ticket status = %s, want NEEDS_ASSIGNMENT", stored.Status)
	}
	if stored.AssignedTo != nil {
		t.Error("rejection must clear the assignment")
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 {
		t.Fatalf("audit log length = %d, want 1", len(log))
	}
	if log[0].Action != domain.ActionReject || log[0].Reason == nil || *log[0].Reason != "tone is wrong" {
		t.Errorf("entry = %+v", log[0])
	}
}

func TestReject_LeavesResolvedTicketUntouched(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	stored.Status = domain.TicketStatusResolved
	if err := f.tickets.Update(context.Background(), stored); err != nil {
		t.Fatalf("resolve ticket: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), task.ID, "Dana Admin", "draft is stale")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.TaskStatusRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}

	after, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if after.Status != domain.TicketStatusResolved {
		t.Errorf("ticket status = %s, want RESOLVED", after.Status)
	}
	if after.AssignedTo == nil || *after.AssignedTo != "Medical Team" {
		t.Error("rejecting a closed ticket's draft must not clear the assignment")
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 || log[0].Action != domain.ActionReject {
		t.Fatalf("expected one REJECT entry, got %+v", log)
	}
	if _, ok := log[0].Metadata["ticket_status"]; ok {
		t.Errorf("metadata must not claim a ticket demotion: %+v", log[0].Metadata)
	}
}

func TestGetTaskForTicket_ReturnsLatest(t *testing.T) {
	f := newProponentFixture(t)
	ticket, task := f.seedTask(t, "draft response")

	found, err := f.svc.GetTaskForTicket(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get task for ticket: %v", err)
	}
	if found.ID != task.ID {
		t.Errorf("task id = %s, want %s", found.ID, task.ID)
	}

	_, err = f.svc.GetTaskForTicket(context.Background(), "no-such-ticket")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	f := newProponentFixture(t)
	_, task := f.seedTask(t, "draft response")
	_, err := f.svc.Reject(context.Background(), task.ID, "Dana Admin", " ")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestApprove_AfterApproveIsInvalid(t *testing.T) {
	f := newProponentFixture(t)
	_, task := f.seedTask(t, "draft response")
	if _, err := f.svc.Approve(context.Background(), task.ID, "Dana Admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err := f.svc.Approve(context.Background(), task.ID, "Dana Admin")
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestDiff_AlignsDraftAgainstEdit(t *testing.T) {
	f := newProponentFixture(t)
	_, task := f.seedTask(t, "a b")

	if _, err := f.svc.StartEditing(context.Background(), task.ID); err != nil {
		t.Fatalf("start editing: %v", err)
	}
	if _, err := f.svc.Resubmit(context.Background(), task.ID, "a z b"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	segments, err := f.svc.Diff(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if textdiff.Reconstruct(segments, textdiff.Addition) != "a z b" {
		t.Errorf("edited reconstruction failed: %+v", segments)
	}
	if textdiff.Reconstruct(segments, textdiff.Deletion) != "a b" {
		t.Errorf("original reconstruction failed: %+v", segments)
	}
	var additions int
	for _, seg := range segments {
		if seg.Type == textdiff.Addition {
			additions++
		}
	}
	if additions == 0 {
		t.Error("expected addition segments for the inserted token")
	}
}
