// Package queue hands order submission tasks to something that runs them
// asynchronously: a Zeebe process instance per task, or an in-process pool.
package queue

import (
	"context"
	"fmt"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
)

// Task identifies one order submission. CycleID is the dispatch cycle that
// claimed the application.
type Task struct {
	ApplicationID string `json:"applicationId"`
	CycleID       string `json:"cycleId"`
	Attempt       int    `json:"attempt,omitempty"`
}

// Queue accepts tasks without waiting for them to run.
type Queue interface {
	Submit(ctx context.Context, task Task) error
}

// Handler runs one task. A returned error is the task's fault.
type Handler func(ctx context.Context, task Task) error

// InstanceCreator starts a process instance. camunda.Client satisfies it.
type InstanceCreator interface {
	CreateInstance(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// ZeebeQueue submits each task as a new instance of the order submission process.
type ZeebeQueue struct {
	creator   InstanceCreator
	processID string
	logger    logger.Logger
}

func NewZeebeQueue(creator InstanceCreator, processID string, log logger.Logger) *ZeebeQueue {
	return &ZeebeQueue{
		creator:   creator,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"queue": "zeebe", "processId": processID}),
	}
}

func (q *ZeebeQueue) Submit(ctx context.Context, task Task) error {
	key, err := q.creator.CreateInstance(ctx, q.processID, task)
	if err != nil {
		return errors.NewEnqueueFailedError(task.ApplicationID, fmt.Errorf("create %s instance: %w", q.processID, err))
	}
	q.logger.Debug("order task enqueued", map[string]interface{}{
		"applicationId":      task.ApplicationID,
		"processInstanceKey": key,
	})
	return nil
}
