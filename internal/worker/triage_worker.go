package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/ai"
	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/observability"
	"github.com/unionhall/triage-service/internal/service"
)

// TriageWorker reacts to submitted tickets: it invokes the suggestion model
// and feeds the result through the router. When the model is unavailable or
// times out, the ticket degrades to NEEDS_ASSIGNMENT with a system error
// entry instead of a guessed assignment.
type TriageWorker struct {
	triageService *service.TriageService
	model         ai.Client
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewTriageWorker constructs the worker.
func NewTriageWorker(triageService *service.TriageService, model ai.Client, metrics *observability.Metrics, logger *zap.Logger) *TriageWorker {
	return &TriageWorker{triageService: triageService, model: model, metrics: metrics, logger: logger}
}

// Register subscribes the worker to ticket submissions.
func (w *TriageWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketSubmitted, w.handleSubmitted)
}

func (w *TriageWorker) handleSubmitted(ctx context.Context, event events.Event) error {
	ticket, err := w.triageService.GetTicket(ctx, event.TicketID)
	if err != nil {
		return err
	}

	suggestion, err := w.model.Submit(ctx, ticket.RedactedText)
	if err != nil {
		w.metrics.RecordModelError()
		w.logger.Warn("model call failed, degrading to needs-assignment",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return w.degrade(ctx, ticket.ID, err)
	}

	if _, err := w.triageService.Route(ctx, ticket.ID, *suggestion); err != nil {
		w.logger.Error("routing failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return err
	}
	return nil
}

// degrade moves the ticket to NEEDS_ASSIGNMENT and records the failure as a
// system MODEL_CALL entry so the fallback is visible in the trail.
func (w *TriageWorker) degrade(ctx context.Context, ticketID string, cause error) error {
	if err := w.triageService.FallbackNeedsAssignment(ctx, ticketID, cause); err != nil {
		w.logger.Error("fallback failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return err
	}
	return nil
}
