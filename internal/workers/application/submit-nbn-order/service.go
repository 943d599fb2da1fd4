package submitnbnorder

import (
	"context"
	stderrors "errors"
	"time"

	"nbn-order-workers/internal/common/b2b"
	"nbn-order-workers/internal/common/claims"
	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/events"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/metrics"
	"nbn-order-workers/internal/common/observability"
	"nbn-order-workers/internal/models"
	"nbn-order-workers/internal/store"
)

// Service submits one application to the B2B endpoint and writes its
// terminal status. Exactly one of complete, rejected/malformed or fault
// applies per call; only the fault is returned as an error.
type Service struct {
	config   *Config
	logger   logger.Logger
	store    ApplicationStore
	orders   b2b.OrderPlacer
	claims   claims.Claimer
	notifier events.Notifier
	obs      *observability.Observability
	sleep    func(context.Context, time.Duration) error
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	claimer := deps.Claims
	if claimer == nil {
		claimer = claims.Noop{}
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = events.NewNotifier(events.LogPublisher{Logger: deps.Logger}, deps.Logger)
	}

	return &Service{
		config:   config,
		logger:   deps.Logger.WithFields(map[string]interface{}{"taskType": TaskType}),
		store:    deps.Store,
		orders:   deps.Orders,
		claims:   claimer,
		notifier: notifier,
		obs:      obs,
		sleep:    sleepContext,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	app, err := s.store.Get(ctx, input.ApplicationID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewApplicationNotFoundError(input.ApplicationID)
	}
	if err != nil {
		return nil, errors.NewLoadFailedError(input.ApplicationID, err)
	}

	if !app.EligibleForOrder() {
		s.logger.Info("Skipping application no longer eligible for ordering", map[string]interface{}{
			"applicationId": app.ID,
			"status":        string(app.Status),
			"planType":      string(app.Plan.Type),
		})
		s.release(ctx, input)
		metrics.NBNOrders.WithLabelValues(OutcomeSkipped).Inc()
		return &Output{ApplicationID: app.ID, Outcome: OutcomeSkipped, Status: app.Status, Skipped: true}, nil
	}

	spanCtx, span := s.obs.StartSpan(ctx, "nbn.submit_order", app.ID)
	output, err := s.submit(spanCtx, app)

	outcome := OutcomeFault
	switch {
	case output != nil:
		outcome = output.Outcome
	case errors.CodeOf(err) == errors.ErrCodeThrottled:
		outcome = OutcomeThrottled
	}
	observability.EndSpan(span, outcome, err)
	s.obs.RecordOrder(ctx, outcome, time.Since(start))
	metrics.NBNOrders.WithLabelValues(outcome).Inc()

	// an unwritten terminal status keeps the claim until its TTL runs out
	if err == nil || stdRecorded(err) {
		s.release(ctx, input)
	}
	return output, err
}

func (s *Service) submit(ctx context.Context, app *models.Application) (*Output, error) {
	resp, err := s.orders.PlaceOrder(ctx, app.ID, b2b.NewOrderRequest(app))
	if err == nil {
		return s.complete(ctx, app, resp.OrderID)
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeThrottled:
		return nil, s.throttled(app, err)
	case errors.ErrCodeExternalRejection, errors.ErrCodeMalformedResponse:
		return s.reject(ctx, app, err)
	default:
		return s.fault(ctx, app, err)
	}
}

func (s *Service) complete(ctx context.Context, app *models.Application, orderID string) (*Output, error) {
	update, err := app.CompleteOrder(orderID)
	if err != nil {
		// the schema check upstream makes this unreachable for a real response
		return s.fault(ctx, app, errors.NewMalformedResponseError("", err))
	}

	if err := s.writeStatus(ctx, update); err != nil {
		if stderrors.Is(err, store.ErrStatusConflict) {
			return s.conflict(app, orderID), nil
		}
		return nil, errors.NewUpdateFailedError(app.ID, err).WithMetadata("orderId", orderID)
	}
	app.Apply(update)

	s.logger.Info("NBN application processed successfully", map[string]interface{}{
		"applicationId": app.ID,
		"orderId":       orderID,
	})
	_ = s.notifier.OrderCompleted(ctx, app)

	return &Output{ApplicationID: app.ID, Outcome: OutcomeComplete, Status: app.Status, OrderID: orderID}, nil
}

// reject records a rejection or an unusable success body. Both are business
// outcomes: the job completes, nothing is retried.
func (s *Service) reject(ctx context.Context, app *models.Application, cause error) (*Output, error) {
	stdErr := errors.Normalize(cause)

	outcome := OutcomeRejected
	fields := map[string]interface{}{
		"applicationId": app.ID,
		"errorCode":     string(stdErr.Code),
	}
	if stdErr.Code == errors.ErrCodeMalformedResponse {
		outcome = OutcomeMalformed
		fields["response"] = stdErr.Metadata["response"]
		fields["error"] = stdErr.Details
		s.logger.Error("NBN order response malformed", fields)
	} else {
		fields["response"] = stdErr.Details
		fields["statusCode"] = stdErr.Metadata["statusCode"]
		s.logger.Error("NBN order rejected by B2B endpoint", fields)
	}

	update, err := app.FailOrder()
	if err != nil {
		return nil, errors.NewInvalidStatusTransitionError(err)
	}
	if err := s.writeStatus(ctx, update); err != nil {
		if stderrors.Is(err, store.ErrStatusConflict) {
			return s.conflict(app, ""), nil
		}
		return nil, errors.NewUpdateFailedError(app.ID, err).WithMetadata("cause", string(stdErr.Code))
	}
	app.Apply(update)
	_ = s.notifier.OrderFailed(ctx, app, string(stdErr.Code))

	return &Output{ApplicationID: app.ID, Outcome: outcome, Status: app.Status}, nil
}

// throttled leaves the application in order: nothing reached the carrier, so
// the retry (or the next cycle) sends it.
func (s *Service) throttled(app *models.Application, cause error) error {
	stdErr := errors.Normalize(cause).WithMetadata("applicationId", app.ID)
	s.logger.Warn("NBN order throttled before sending, left in order status", map[string]interface{}{
		"applicationId": app.ID,
		"errorCode":     string(stdErr.Code),
		"error":         stdErr.Details,
	})
	return stdErr
}

// fault writes order_failed first and then hands the original fault back.
// When the write lands the fault is marked recorded so runners do not resubmit.
func (s *Service) fault(ctx context.Context, app *models.Application, cause error) (*Output, error) {
	stdErr := errors.Normalize(cause).WithMetadata("applicationId", app.ID)

	s.logger.Error("NBN order submission fault", map[string]interface{}{
		"applicationId": app.ID,
		"errorCode":     string(stdErr.Code),
		"error":         stdErr.Details,
	})

	update, err := app.FailOrder()
	if err != nil {
		return nil, stdErr
	}
	if err := s.writeStatus(ctx, update); err != nil {
		if stderrors.Is(err, store.ErrStatusConflict) {
			return nil, stdErr.MarkRecorded()
		}
		s.logger.Error("Terminal status write failed, application left in order status", map[string]interface{}{
			"applicationId": app.ID,
			"status":        string(update.Status),
			"cause":         string(stdErr.Code),
			"error":         err.Error(),
		})
		return nil, stdErr
	}
	app.Apply(update)
	_ = s.notifier.OrderFailed(ctx, app, string(stdErr.Code))

	return nil, stdErr.MarkRecorded()
}

func (s *Service) conflict(app *models.Application, orderID string) *Output {
	s.logger.Warn("Application left order status while the order was in flight", map[string]interface{}{
		"applicationId": app.ID,
		"orderId":       orderID,
	})
	return &Output{ApplicationID: app.ID, Outcome: OutcomeConflict, Status: app.Status, OrderID: orderID, Skipped: true}
}

// writeStatus retries the terminal write with linear backoff. Conflicts are final.
func (s *Service) writeStatus(ctx context.Context, update models.StatusUpdate) error {
	var err error
	for attempt := 1; attempt <= s.config.UpdateAttempts; attempt++ {
		err = s.store.UpdateStatus(ctx, update)
		if err == nil || stderrors.Is(err, store.ErrStatusConflict) {
			return err
		}

		s.logger.Warn("Status write failed", map[string]interface{}{
			"applicationId": update.ApplicationID,
			"status":        string(update.Status),
			"attempt":       attempt,
			"error":         err.Error(),
		})
		if attempt < s.config.UpdateAttempts {
			if serr := s.sleep(ctx, time.Duration(attempt)*s.config.UpdateBackoff); serr != nil {
				return err
			}
		}
	}
	return err
}

func (s *Service) release(ctx context.Context, input *Input) {
	if input.CycleID == "" {
		return
	}
	if err := s.claims.Release(ctx, input.ApplicationID, input.CycleID); err != nil {
		s.logger.Warn("Failed to release dispatch claim", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"cycleId":       input.CycleID,
			"error":         err.Error(),
		})
	}
}

func stdRecorded(err error) bool {
	stdErr, ok := errors.AsStandardError(err)
	return ok && stdErr.Recorded
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
