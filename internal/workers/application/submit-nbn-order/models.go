package submitnbnorder

import (
	"context"

	"nbn-order-workers/internal/common/b2b"
	"nbn-order-workers/internal/common/claims"
	"nbn-order-workers/internal/common/events"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/observability"
	"nbn-order-workers/internal/models"
)

// Outcomes reported in job variables, metrics and spans.
const (
	OutcomeComplete  = "complete"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeFault     = "fault"
	OutcomeThrottled = "throttled"
	OutcomeSkipped   = "skipped"
	OutcomeConflict  = "conflict"
)

type Input struct {
	ApplicationID string `json:"applicationId"`
	CycleID       string `json:"cycleId,omitempty"`
}

type Output struct {
	ApplicationID string                   `json:"applicationId"`
	Outcome       string                   `json:"outcome"`
	Status        models.ApplicationStatus `json:"status"`
	OrderID       string                   `json:"orderId,omitempty"`
	Skipped       bool                     `json:"skipped"`
}

// ApplicationStore is the slice of store.ApplicationStore the task needs.
type ApplicationStore interface {
	Get(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, u models.StatusUpdate) error
}

type ServiceDependencies struct {
	Store         ApplicationStore
	Orders        b2b.OrderPlacer
	Claims        claims.Claimer
	Notifier      events.Notifier
	Observability *observability.Observability
	Logger        logger.Logger
}
