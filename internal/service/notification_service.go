package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/observability"
)

// NotificationService surfaces triage outcomes to the admin console feed.
// Delivery is a logging stub; the event wiring is the part that matters.
type NotificationService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, metrics: metrics, logger: logger}
}

// RegisterHandlers subscribes to triage events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketRouted, n.handleTicketRouted)
	n.dispatcher.Subscribe(events.EventAssignmentOverride, n.handleOverride)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTaskStatusChanged, n.handleTaskChanged)
}

func (n *NotificationService) handleTicketRouted(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.TicketRoutedPayload); ok {
		n.metrics.RecordRouted(string(payload.Status))
	}
	n.logger.Info("TicketRouted", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleOverride(_ context.Context, event events.Event) error {
	n.logger.Info("AssignmentOverridden", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTaskChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TaskStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}
