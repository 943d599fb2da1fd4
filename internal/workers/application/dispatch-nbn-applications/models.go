package dispatchnbnapplications

import (
	"context"

	"nbn-order-workers/internal/common/claims"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/queue"
	"nbn-order-workers/internal/models"
)

// Output summarises one dispatch cycle.
type Output struct {
	CycleID    string `json:"cycleId"`
	Eligible   int    `json:"eligible"`
	Dispatched int    `json:"dispatched"`
	Message    string `json:"message"`
}

// Selector returns every application eligible for ordering.
type Selector interface {
	SelectEligible(ctx context.Context) ([]*models.Application, error)
}

type ServiceDependencies struct {
	Selector Selector
	Queue    queue.Queue
	Claims   claims.Claimer
	Logger   logger.Logger
}
