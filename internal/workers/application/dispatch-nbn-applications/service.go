package dispatchnbnapplications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"nbn-order-workers/internal/common/claims"
	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/metrics"
	"nbn-order-workers/internal/common/queue"
)

// Message is what the trigger prints for a finished cycle.
func Message(dispatched int) string {
	if dispatched == 0 {
		return "No NBN applications to process."
	}
	return fmt.Sprintf("Dispatched %d NBN application(s) for processing.", dispatched)
}

// Dispatcher runs dispatch cycles: one selection, then one queued task per
// eligible application. It never waits for the tasks.
type Dispatcher struct {
	selector Selector
	queue    queue.Queue
	claims   claims.Claimer
	logger   logger.Logger
	newID    func() string
}

func NewDispatcher(deps ServiceDependencies) *Dispatcher {
	claimer := deps.Claims
	if claimer == nil {
		claimer = claims.Noop{}
	}
	return &Dispatcher{
		selector: deps.Selector,
		queue:    deps.Queue,
		claims:   claimer,
		logger:   deps.Logger.WithFields(map[string]interface{}{"taskType": TaskType}),
		newID:    func() string { return uuid.New().String() },
	}
}

// Run executes one cycle. Only a failed selection is returned as an error;
// per-application claim or enqueue problems are logged and skipped.
func (d *Dispatcher) Run(ctx context.Context) (*Output, error) {
	return d.RunCycle(ctx, d.newID())
}

func (d *Dispatcher) RunCycle(ctx context.Context, cycleID string) (*Output, error) {
	log := d.logger.WithFields(map[string]interface{}{"cycleId": cycleID})

	apps, err := d.selector.SelectEligible(ctx)
	if err != nil {
		metrics.NBNDispatchCycles.WithLabelValues("selection_failed").Inc()
		log.Error("Eligibility selection failed, nothing dispatched", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.NewSelectionFailedError(err).WithMetadata("cycleId", cycleID)
	}

	out := &Output{CycleID: cycleID, Eligible: len(apps)}
	for _, app := range apps {
		// the store query already filters; this guards a stale or hand-built selector
		if !app.EligibleForOrder() {
			continue
		}

		claimed, err := d.claims.Claim(ctx, app.ID, cycleID)
		if err != nil {
			// without a lease the conditional status write still prevents a double terminal update
			log.Warn("Dispatch claim unavailable, dispatching without it", map[string]interface{}{
				"applicationId": app.ID,
				"errorCode":     string(errors.ErrCodeClaimFailed),
				"error":         err.Error(),
			})
		} else if !claimed {
			log.Info("Application already claimed by another cycle", map[string]interface{}{
				"applicationId": app.ID,
			})
			continue
		}

		task := queue.Task{ApplicationID: app.ID, CycleID: cycleID}
		if err := d.queue.Submit(ctx, task); err != nil {
			log.Error("Failed to enqueue order submission", map[string]interface{}{
				"applicationId": app.ID,
				"errorCode":     string(errors.CodeOf(err)),
				"error":         err.Error(),
			})
			if rerr := d.claims.Release(ctx, app.ID, cycleID); rerr != nil {
				log.Warn("Failed to release dispatch claim", map[string]interface{}{
					"applicationId": app.ID,
					"error":         rerr.Error(),
				})
			}
			continue
		}
		out.Dispatched++
	}

	out.Message = Message(out.Dispatched)
	result := "dispatched"
	if out.Dispatched == 0 {
		result = "empty"
	}
	metrics.NBNDispatchCycles.WithLabelValues(result).Inc()
	metrics.NBNDispatchedApplications.Add(float64(out.Dispatched))

	log.Info(out.Message, map[string]interface{}{
		"eligible":   out.Eligible,
		"dispatched": out.Dispatched,
	})
	return out, nil
}
