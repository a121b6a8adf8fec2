package triage

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/pkg/util"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

type allowAll struct{}

func (allowAll) CanViewOriginal(context.Context, audit.Actor, string) (bool, error) {
	return true, nil
}

type fixture struct {
	router  *Router
	tickets *repository.MemoryTicketRepository
	entries *repository.MemoryAuditRepository
	trail   *audit.Trail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	entries := repository.NewMemoryAuditRepository()
	trail := audit.NewTrail(entries, tickets, allowAll{}, zap.NewNop())
	cfg := config.TriageConfig{
		AutoThreshold:         0.85,
		ReviewThreshold:       0.60,
		AutoResolveCategories: []string{"FAQ", "General Question"},
	}
	return &fixture{
		router:  NewRouter(tickets, trail, cfg, util.NewKeyedMutex(), zap.NewNop()),
		tickets: tickets,
		entries: entries,
		trail:   trail,
	}
}

func (f *fixture) seedTicket(t *testing.T, category string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		HumanID:      "TRG-0001",
		Title:        "assistance request",
		Category:     category,
		Priority:     domain.TicketPriorityNormal,
		Status:       domain.TicketStatusPending,
		RawText:      "help needed",
		RedactedText: "help needed",
	}
	if err := f.tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func suggestion(confidence float64, category, assignee string) domain.Suggestion {
	return domain.Suggestion{
		Category:          category,
		Priority:          domain.TicketPriorityNormal,
		SuggestedAssignee: assignee,
		Confidence:        confidence,
		Model:             "triage-model-1",
		Explanation:       "routine request",
		Reasoning: domain.Reasoning{
			Factors:        []string{"clear category keywords"},
			Recommendation: "assign to " + assignee,
		},
	}
}

func (f *fixture) auditLog(t *testing.T, ticketID string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.trail.Query(context.Background(), audit.Filter{TicketID: &ticketID})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	return entries
}

func TestRoute_HighConfidenceFAQAutoResolves(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "FAQ")

	decision, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.91, "FAQ", "Member Services"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Status != domain.TicketStatusAutoResolved {
		t.Errorf("status = %s, want AUTO_RESOLVED", decision.Status)
	}
	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 || log[0].Action != domain.ActionAutoAssign {
		t.Fatalf("expected exactly one AUTO_ASSIGN entry, got %+v", log)
	}
}

func TestRoute_HighConfidenceAutoAssigns(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "Medical Assistance")

	decision, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.91, "Medical Assistance", "Medical Team"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Status != domain.TicketStatusAutoAssigned {
		t.Errorf("status = %s, want AUTO_ASSIGNED", decision.Status)
	}
	if decision.AssignedTo == nil || *decision.AssignedTo != "Medical Team" {
		t.Errorf("assignee = %v, want Medical Team", decision.AssignedTo)
	}
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.Suggestion == nil || stored.Suggestion.Confidence != 0.91 {
		t.Error("suggestion not retained on ticket")
	}
	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 {
		t.Fatalf("audit log length = %d, want 1", len(log))
	}
	if log[0].Actor != domain.ActorAI || log[0].Action != domain.ActionAutoAssign {
		t.Errorf("entry = %+v", log[0])
	}
	if log[0].Metadata["confidence"] != 0.91 || log[0].Metadata["assigned_to"] != "Medical Team" {
		t.Errorf("metadata = %+v", log[0].Metadata)
	}
}

func TestRoute_MediumConfidenceFlagsForReview(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "Grievance")

	decision, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.73, "Grievance", "Grievance Team"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Status != domain.TicketStatusAutoAssigned || !decision.FlaggedForReview {
		t.Errorf("decision = %+v, want flagged AUTO_ASSIGNED", decision)
	}
	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 || log[0].Action != domain.ActionAutoAssign {
		t.Fatalf("expected one AUTO_ASSIGN entry, got %+v", log)
	}
	if log[0].Metadata["review_flagged"] != true {
		t.Errorf("metadata = %+v, want review_flagged", log[0].Metadata)
	}
}

func TestRoute_LowConfidenceNeedsAssignment(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "Legal Aid")

	decision, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.45, "Legal Aid", "Legal Team"))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Status != domain.TicketStatusNeedsAssignment || decision.AssignedTo != nil {
		t.Errorf("decision = %+v, want unassigned NEEDS_ASSIGNMENT", decision)
	}
	log := f.auditLog(t, ticket.ID)
	if len(log) != 1 {
		t.Fatalf("audit log length = %d, want 1", len(log))
	}
	if log[0].Action != domain.ActionModelCall {
		t.Errorf("action = %s, want MODEL_CALL", log[0].Action)
	}
	for _, e := range log {
		if e.Action == domain.ActionAutoAssign {
			t.Error("low band must not record AUTO_ASSIGN")
		}
	}
	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Suggestion == nil {
		t.Error("reasoning must be retained even below the review threshold")
	}
}

func TestRoute_RejectsOutOfRangeConfidence(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "FAQ")
	for _, confidence := range []float64{-0.1, 1.1} {
		_, err := f.router.Route(context.Background(), ticket.ID, suggestion(confidence, "FAQ", "x"))
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("confidence %v: expected INVALID_INPUT, got %v", confidence, err)
		}
	}
}

func TestRoute_AuditFailureRollsBackState(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "FAQ")
	f.entries.FailAppends = true

	_, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.91, "FAQ", "Member Services"))
	if !apperrors.HasCode(err, apperrors.CodeAuditWriteFailure) {
		t.Fatalf("expected AUDIT_WRITE_FAILURE, got %v", err)
	}
	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != domain.TicketStatusPending {
		t.Errorf("status = %s, want rollback to PENDING", stored.Status)
	}
}

func TestOverride_SupersedesAssignmentAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "Medical Assistance")

	if _, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.91, "Medical Assistance", "Medical Team")); err != nil {
		t.Fatalf("route: %v", err)
	}
	updated, err := f.router.Override(context.Background(), ticket.ID, "Legal Team", "requires legal review", "Dana Admin")
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
		t.Errorf("first entry changed: %+v", log[0])
	}
	if log[1].Action != domain.ActionOverride || log[1].Actor != domain.ActorAdmin {
		t.Errorf("second entry = %+v", log[1])
	}
	if log[1].Reason == nil || *log[1].Reason != "requires legal review" {
		t.Errorf("reason = %v", log[1].Reason)
	}
}

func TestOverride_RequiresReason(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "FAQ")
	_, err := f.router.Override(context.Background(), ticket.ID, "Legal Team", "  ", "Dana Admin")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestOverride_AssignsNeedsAssignmentTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, "Legal Aid")
	if _, err := f.router.Route(context.Background(), ticket.ID, suggestion(0.45, "Legal Aid", "")); err != nil {
		t.Fatalf("route: %v", err)
	}
	updated, err := f.router.Override(context.Background(), ticket.ID, "Legal Team", "manual dispatch", "Dana Admin")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if updated.Status != domain.TicketStatusAutoAssigned {
		t.Errorf("status = %s, want AUTO_ASSIGNED", updated.Status)
	}
}
