package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/metrics"
)

var ErrPoolClosed = stderrors.New("task pool is closed")

type PoolConfig struct {
	TaskType    string
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration
}

// DeadLetterFunc receives tasks that failed for good.
type DeadLetterFunc func(task Task, err error)

// Pool is a bounded in-process worker pool. Retryable faults are re-queued
// with linear backoff until MaxAttempts; everything else goes to the dead
// letter hook.
type Pool struct {
	cfg        PoolConfig
	handler    Handler
	deadLetter DeadLetterFunc
	logger     logger.Logger

	tasks   chan Task
	pending sync.WaitGroup
	workers sync.WaitGroup
	once    sync.Once

	// mu orders Submit's pending.Add against Close flipping closed
	mu     sync.RWMutex
	closed bool
}

func NewPool(cfg PoolConfig, handler Handler, deadLetter DeadLetterFunc, log logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if deadLetter == nil {
		deadLetter = func(Task, error) {}
	}
	return &Pool{
		cfg:        cfg,
		handler:    handler,
		deadLetter: deadLetter,
		logger:     log.WithFields(map[string]interface{}{"queue": "local", "taskType": cfg.TaskType}),
		tasks:      make(chan Task, cfg.Buffer),
	}
}

// Start launches the workers. ctx is handed to every task.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for task := range p.tasks {
				p.run(ctx, task)
			}
		}()
	}
}

// Submit queues a task. It blocks only while the buffer is full.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errors.NewEnqueueFailedError(task.ApplicationID, ErrPoolClosed)
	}
	p.pending.Add(1)
	p.mu.RUnlock()

	if task.Attempt == 0 {
		task.Attempt = 1
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return errors.NewEnqueueFailedError(task.ApplicationID, ctx.Err())
	}
}

// Close stops accepting tasks and waits for queued tasks and their retries.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.pending.Wait()
		close(p.tasks)
		p.workers.Wait()
	})
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer p.pending.Done()

	err := p.safeHandle(ctx, task)
	if err == nil {
		metrics.WorkerJobsCompleted.WithLabelValues(p.cfg.TaskType).Inc()
		return
	}
	metrics.WorkerJobsFailed.WithLabelValues(p.cfg.TaskType, string(errors.CodeOf(err))).Inc()

	if errors.IsRetryable(err) && task.Attempt < p.cfg.MaxAttempts {
		next := task
		next.Attempt++
		delay := p.cfg.Backoff * time.Duration(task.Attempt)
		p.logger.Warn("task failed, retrying", map[string]interface{}{
			"applicationId": task.ApplicationID,
			"attempt":       task.Attempt,
			"nextRetryIn":   delay.String(),
			"error":         err.Error(),
		})

		p.pending.Add(1)
		time.AfterFunc(delay, func() { p.tasks <- next })
		return
	}

	metrics.QueueDeadLetters.WithLabelValues(p.cfg.TaskType).Inc()
	p.logger.Error("task dead-lettered", map[string]interface{}{
		"applicationId": task.ApplicationID,
		"attempt":       task.Attempt,
		"errorCode":     string(errors.CodeOf(err)),
		"error":         err.Error(),
	})
	p.deadLetter(task, err)
}

// safeHandle turns a panicking task into an ordinary fault.
func (p *Pool) safeHandle(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Normalize(stderrors.New("task panicked"))
			p.logger.Error("task panicked", map[string]interface{}{
				"applicationId": task.ApplicationID,
				"panic":         r,
			})
		}
	}()
	return p.handler(ctx, task)
}
