package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/internal/triage"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

type allowAll struct{}

func (allowAll) CanViewOriginal(context.Context, audit.Actor, string) (bool, error) {
	return true, nil
}

type triageFixture struct {
	svc     *TriageService
	tickets *repository.MemoryTicketRepository
	entries *repository.MemoryAuditRepository
	trail   *audit.Trail
}

func newTriageFixture(t *testing.T) *triageFixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	entries := repository.NewMemoryAuditRepository()
	trail := audit.NewTrail(entries, tickets, allowAll{}, zap.NewNop())
	locks := util.NewKeyedMutex()
	cfg := config.TriageConfig{
		AutoThreshold:         0.85,
		ReviewThreshold:       0.60,
		AutoResolveCategories: []string{"FAQ", "General Question"},
	}
	router := triage.NewRouter(tickets, trail, cfg, locks, zap.NewNop())
	svc := NewTriageService(TriageDependencies{
		TicketRepo: tickets,
		Trail:      trail,
		Router:     router,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Locks:      locks,
		Logger:     zap.NewNop(),
	})
	return &triageFixture{svc: svc, tickets: tickets, entries: entries, trail: trail}
}

func (f *triageFixture) auditLog(t *testing.T, ticketID string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.trail.Query(context.Background(), audit.Filter{TicketID: &ticketID})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	return entries
}

func submitInput(text string) SubmitInput {
	return SubmitInput{
		Title:    "assistance request",
		Category: "Medical Assistance",
		Priority: domain.TicketPriorityNormal,
		Text:     text,
	}
}

func medicalSuggestion(confidence float64) domain.Suggestion {
	return domain.Suggestion{
		Category:          "Medical Assistance",
		Priority:          domain.TicketPriorityHigh,
		SuggestedAssignee: "Medical Team",
		Confidence:        confidence,
		Model:             "triage-model-1",
		Explanation:       "member asks about medical coverage",
	}
}

func TestSubmit_RedactsBeforeStoring(t *testing.T) {
	f := newTriageFixture(t)

	ticket, err := f.svc.Submit(context.Background(),
		submitInput("Please contact Maria Lopez at maria@example.com about my claim"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ticket.Status != domain.TicketStatusPending {
		t.Errorf("status = %s, want PENDING", ticket.Status)
	}
	if !strings.HasPrefix(ticket.HumanID, "TRG-") {
		t.Errorf("human id = %q", ticket.HumanID)
	}
	if strings.Contains(ticket.RedactedText, "maria@example.com") {
		t.Error("email survived redaction")
	}
	if !strings.Contains(ticket.RedactedText, "[REDACTED: EMAIL]") {
		t.Errorf("redacted text = %q", ticket.RedactedText)
	}
	if !ticket.HasSensitiveContent {
		t.Error("sensitive content flag not set")
	}
	if !strings.Contains(ticket.RawText, "maria@example.com") {
		t.Error("raw text must be preserved for audit access")
	}
	if log := f.auditLog(t, ticket.ID); len(log) != 0 {
		t.Errorf("submission must not write audit entries, got %d", len(log))
	}
}

func TestSubmit_RequiresText(t *testing.T) {
	f := newTriageFixture(t)
	_, err := f.svc.Submit(context.Background(), submitInput("   "))
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSubmitRouteOverride_EndToEnd(t *testing.T) {
	f := newTriageFixture(t)

	ticket, err := f.svc.Submit(context.Background(), submitInput("coverage question"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	decision, err := f.svc.Route(context.Background(), ticket.ID, medicalSuggestion(0.91))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Status != domain.TicketStatusAutoAssigned {
		t.Fatalf("status = %s, want AUTO_ASSIGNED", decision.Status)
	}
	if decision.AssignedTo == nil || *decision.AssignedTo != "Medical Team" {
		t.Fatalf("assignee = %v, want Medical Team", decision.AssignedTo)
	}
	if log := f.auditLog(t, ticket.ID); len(log) != 1 || log[0].Action != domain.ActionAutoAssign {
		t.Fatalf("expected one AUTO_ASSIGN entry, got %+v", log)
	}

	updated, err := f.svc.Override(context.Background(), ticket.ID, "Legal Team", "requires legal review", "Dana Admin")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != "Legal Team" {
		t.Errorf("assignee = %v, want Legal Team", updated.AssignedTo)
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 2 {
		t.Fatalf("audit log length = %d, want 2", len(log))
	}
	if log[0].Action != domain.ActionAutoAssign {
		t.Errorf("earlier entry must be untouched, got %+v", log[0])
	}
	if log[1].Action != domain.ActionOverride || log[1].Reason == nil || *log[1].Reason != "requires legal review" {
		t.Errorf("override entry = %+v", log[1])
	}
}

func TestLifecycle_ProgressAndResolve(t *testing.T) {
	f := newTriageFixture(t)
	admin := audit.Actor{Type: domain.ActorAdmin, Name: "Dana Admin"}

	ticket, _ := f.svc.Submit(context.Background(), submitInput("coverage question"))
	if _, err := f.svc.Route(context.Background(), ticket.ID, medicalSuggestion(0.91)); err != nil {
		t.Fatalf("route: %v", err)
	}

	inProgress, err := f.svc.MarkInProgress(context.Background(), ticket.ID, admin)
	if err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if inProgress.Status != domain.TicketStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", inProgress.Status)
	}

	resolved, err := f.svc.Resolve(context.Background(), ticket.ID, admin)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.TicketStatusResolved {
		t.Errorf("status = %s, want RESOLVED", resolved.Status)
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 3 {
		t.Fatalf("audit log length = %d, want 3", len(log))
	}
	for _, entry := range log[1:] {
		if entry.Action != domain.ActionStatusChange {
			t.Errorf("expected STATUS_CHANGE, got %+v", entry)
		}
	}
	if log[2].Metadata["old_status"] != string(domain.TicketStatusInProgress) {
		t.Errorf("metadata = %+v", log[2].Metadata)
	}
}

func TestTransition_InvalidLeavesStateAndLogUntouched(t *testing.T) {
	f := newTriageFixture(t)
	admin := audit.Actor{Type: domain.ActorAdmin, Name: "Dana Admin"}

	ticket, _ := f.svc.Submit(context.Background(), submitInput("coverage question"))
	if _, err := f.svc.Route(context.Background(), ticket.ID, medicalSuggestion(0.91)); err != nil {
		t.Fatalf("route: %v", err)
	}
	before := f.auditLog(t, ticket.ID)

	_, err := f.svc.Resolve(context.Background(), ticket.ID, admin)
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusAutoAssigned {
		t.Errorf("status = %s, want unchanged AUTO_ASSIGNED", stored.Status)
	}
	after := f.auditLog(t, ticket.ID)
	if len(after) != len(before) {
		t.Errorf("rejected transition wrote audit entries: %d -> %d", len(before), len(after))
	}
}

func TestTransition_AuditFailureRollsBack(t *testing.T) {
	f := newTriageFixture(t)
	admin := audit.Actor{Type: domain.ActorAdmin, Name: "Dana Admin"}

	ticket, _ := f.svc.Submit(context.Background(), submitInput("coverage question"))
	if _, err := f.svc.Route(context.Background(), ticket.ID, medicalSuggestion(0.91)); err != nil {
		t.Fatalf("route: %v", err)
	}

	f.entries.FailAppends = true
	_, err := f.svc.MarkInProgress(context.Background(), ticket.ID, admin)
	if !apperrors.HasCode(err, apperrors.CodeAuditWriteFailure) {
		t.Fatalf("expected AUDIT_WRITE_FAILURE, got %v", err)
	}
	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusAutoAssigned {
		t.Errorf("status = %s, want rollback to AUTO_ASSIGNED", stored.Status)
	}
}

// contendedTicketRepo lands one extra write on the stored row before the
// caller's own update, so that update carries a stale version.
type contendedTicketRepo struct {
	*repository.MemoryTicketRepository
	ConflictNext bool
}

func (r *contendedTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if r.ConflictNext {
		r.ConflictNext = false
		current, err := r.MemoryTicketRepository.GetByID(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if err := r.MemoryTicketRepository.Update(ctx, current); err != nil {
			return err
		}
	}
	return r.MemoryTicketRepository.Update(ctx, ticket)
}

func TestTransition_StaleWriteSurfacesConcurrentModification(t *testing.T) {
	tickets := &contendedTicketRepo{MemoryTicketRepository: repository.NewMemoryTicketRepository()}
	entries := repository.NewMemoryAuditRepository()
	trail := audit.NewTrail(entries, tickets, allowAll{}, zap.NewNop())
	locks := util.NewKeyedMutex()
	cfg := config.TriageConfig{AutoThreshold: 0.85, ReviewThreshold: 0.60}
	router := triage.NewRouter(tickets, trail, cfg, locks, zap.NewNop())
	svc := NewTriageService(TriageDependencies{
		TicketRepo: tickets,
		Trail:      trail,
		Router:     router,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Locks:      locks,
		Logger:     zap.NewNop(),
	})

	ticket, err := svc.Submit(context.Background(), submitInput("coverage question"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Route(context.Background(), ticket.ID, medicalSuggestion(0.91)); err != nil {
		t.Fatalf("route: %v", err)
	}

	tickets.ConflictNext = true
	_, err = svc.MarkInProgress(context.Background(), ticket.ID, audit.Actor{Type: domain.ActorAdmin, Name: "Dana Admin"})
	if !apperrors.HasCode(err, apperrors.CodeConcurrentModification) {
		t.Fatalf("expected CONCURRENT_MODIFICATION, got %v", err)
	}

	stored, _ := tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusAutoAssigned {
		t.Errorf("status = %s, want AUTO_ASSIGNED", stored.Status)
	}
	log, _ := trail.Query(context.Background(), audit.Filter{TicketID: &ticket.ID})
	if len(log) != 1 {
		t.Errorf("rejected write must not append audit entries, got %d", len(log))
	}
}

func TestFallbackNeedsAssignment_RecordsSystemEntry(t *testing.T) {
	f := newTriageFixture(t)

	ticket, _ := f.svc.Submit(context.Background(), submitInput("coverage question"))
	cause := errors.New("model unreachable")
	if err := f.svc.FallbackNeedsAssignment(context.Background(), ticket.ID, cause); err != nil {
		t.Fatalf("fallback: %v", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusNeedsAssignment {
		t.Errorf("status = %s, want NEEDS_ASSIGNMENT", stored.Status)
	}
	if stored.AssignedTo != nil {
		t.Error("fallback must not guess an assignee")
	}

	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 {
		t.Fatalf("audit log length = %d, want 1", len(log))
	}
	if log[0].Actor != domain.ActorSystem || log[0].Action != domain.ActionModelCall {
		t.Errorf("entry = %+v", log[0])
	}
	if log[0].Metadata["error"] != "model unreachable" {
		t.Errorf("metadata = %+v", log[0].Metadata)
	}
}
