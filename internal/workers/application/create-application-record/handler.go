// internal/workers/application/create-application-record/handler.go
package createapplicationrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/events"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/models"
)

const (
	TaskType = "create-application-record"
)

type Handler struct {
	config       *Config
	store        ApplicationStore
	notifier     events.Notifier
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, store ApplicationStore, notifier events.Notifier, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
		notifier:     notifier,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}

	result, err := inputSchema.ValidateInput(variables)
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewApplicationValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewApplicationValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute inserts the application and then runs the post-creation
// notification. A failed notification never undoes the insert.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	status := models.StatusPrelim
	if input.Status != "" {
		parsed, err := models.ParseApplicationStatus(input.Status)
		if err != nil || parsed.Terminal() {
			return nil, errors.NewApplicationValidationFailedError(fmt.Sprintf("status: %q is not a valid initial status", input.Status))
		}
		status = parsed
	}

	app := &models.Application{
		CustomerID: input.CustomerID,
		PlanID:     input.PlanID,
		Address1:   strings.TrimSpace(input.Address1),
		Address2:   strings.TrimSpace(input.Address2),
		City:       strings.TrimSpace(input.City),
		State:      strings.ToUpper(strings.TrimSpace(input.State)),
		Postcode:   strings.TrimSpace(input.Postcode),
		Status:     status,
	}

	if err := h.store.Create(ctx, app); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	h.logger.Info("application record created", map[string]interface{}{
		"applicationId": app.ID,
		"customerId":    app.CustomerID,
		"planId":        app.PlanID,
		"status":        string(app.Status),
	})

	// the event carries the plan type, which only the joined read resolves
	notified := app
	if loaded, err := h.store.Get(ctx, app.ID); err != nil {
		h.logger.Warn("reload after create failed, notifying without plan details", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	} else {
		notified = loaded
	}
	if h.notifier != nil {
		_ = h.notifier.ApplicationCreated(ctx, notified)
	}

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		CreatedAt:         app.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(ctx)
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}
