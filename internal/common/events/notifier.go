// Package events turns application state changes into published notifications.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/models"
)

// Publisher delivers one event. The SNS publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event models.ApplicationEvent) error
}

// Notifier is invoked explicitly by the component that changed the application.
type Notifier interface {
	ApplicationCreated(ctx context.Context, app *models.Application) error
	OrderCompleted(ctx context.Context, app *models.Application) error
	OrderFailed(ctx context.Context, app *models.Application, reason string) error
}

type PublishingNotifier struct {
	publisher Publisher
	logger    logger.Logger
	now       func() time.Time
}

func NewNotifier(publisher Publisher, log logger.Logger) *PublishingNotifier {
	return &PublishingNotifier{
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		now:       time.Now,
	}
}

func (n *PublishingNotifier) ApplicationCreated(ctx context.Context, app *models.Application) error {
	return n.publish(ctx, n.event(models.EventApplicationCreated, app))
}

func (n *PublishingNotifier) OrderCompleted(ctx context.Context, app *models.Application) error {
	return n.publish(ctx, n.event(models.EventOrderCompleted, app))
}

func (n *PublishingNotifier) OrderFailed(ctx context.Context, app *models.Application, reason string) error {
	event := n.event(models.EventOrderFailed, app)
	event.Reason = reason
	return n.publish(ctx, event)
}

func (n *PublishingNotifier) event(t models.EventType, app *models.Application) models.ApplicationEvent {
	event := models.ApplicationEvent{
		ID:            uuid.New().String(),
		Type:          t,
		ApplicationID: app.ID,
		CustomerID:    app.CustomerID,
		PlanType:      app.Plan.Type,
		Status:        app.Status,
		OccurredAt:    n.now().UTC().Format(time.RFC3339),
	}
	if app.OrderID != nil {
		event.OrderID = *app.OrderID
	}
	return event
}

func (n *PublishingNotifier) publish(ctx context.Context, event models.ApplicationEvent) error {
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("notification publish failed", map[string]interface{}{
			"eventType":     string(event.Type),
			"applicationId": event.ApplicationID,
			"error":         err.Error(),
		})
		return errors.NewNotificationPublishFailedError(string(event.Type), err)
	}
	n.logger.Debug("notification published", map[string]interface{}{
		"eventType":     string(event.Type),
		"applicationId": event.ApplicationID,
		"eventId":       event.ID,
	})
	return nil
}

// LogPublisher is used when no topic is configured; events only reach the log.
type LogPublisher struct {
	Logger logger.Logger
}

func (p LogPublisher) Publish(_ context.Context, event models.ApplicationEvent) error {
	p.Logger.Info("application event", map[string]interface{}{
		"eventType":     string(event.Type),
		"applicationId": event.ApplicationID,
		"status":        string(event.Status),
		"orderId":       event.OrderID,
	})
	return nil
}
