// internal/models/notification.go
package models

// EventType names an application lifecycle notification.
type EventType string

const (
	EventApplicationCreated EventType = "application.created"
	EventOrderCompleted     EventType = "application.order_completed"
	EventOrderFailed        EventType = "application.order_failed"
)

// ApplicationEvent is the payload published to the notification topic.
type ApplicationEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	ApplicationID string            `json:"applicationId"`
	CustomerID    string            `json:"customerId"`
	PlanType      PlanType          `json:"planType,omitempty"`
	Status        ApplicationStatus `json:"status"`
	OrderID       string            `json:"orderId,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    string            `json:"occurredAt"` // RFC3339
}
