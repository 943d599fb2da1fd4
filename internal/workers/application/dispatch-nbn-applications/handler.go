package dispatchnbnapplications

import (
	"context"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/metrics"
)

const TaskType = "dispatch-nbn-applications"

type Handler struct {
	config       *Config
	logger       logger.Logger
	dispatcher   *Dispatcher
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Logger       logger.Logger
	Dispatcher   *Dispatcher
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("%s requires a dispatcher", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		dispatcher:   opts.Dispatcher,
		errorHandler: errors.NewErrorHandler(loggerInstance),
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing NBN dispatch cycle", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	cycleID, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	var output *Output
	if cycleID != "" {
		output, err = h.dispatcher.RunCycle(ctx, cycleID)
	} else {
		output, err = h.dispatcher.Run(ctx)
	}
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(map[string]interface{}{
		"dispatched":      output.Dispatched,
		"cycleId":         output.CycleID,
		"dispatchMessage": output.Message,
	})
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) parseInput(job entities.Job) (string, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return "", errors.NewApplicationValidationFailedError(fmt.Sprintf("job variables: %v", err))
	}

	result, err := GetInputSchema().ValidateInput(variables)
	if err != nil {
		return "", errors.NewApplicationValidationFailedError(err.Error())
	}
	if !result.Valid {
		return "", errors.NewApplicationValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	cycleID, _ := variables["cycleId"].(string)
	return cycleID, nil
}
