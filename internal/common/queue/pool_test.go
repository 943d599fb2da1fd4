package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
)

func testPool(t *testing.T, handler Handler, deadLetter DeadLetterFunc) *Pool {
	t.Helper()
	p := NewPool(PoolConfig{
		TaskType:    "submit-nbn-order",
		Workers:     3,
		Buffer:      10,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, handler, deadLetter, logger.NewTestLogger(t))
	p.Start(context.Background())
	return p
}

func TestPool_RunsEveryTask(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	p := testPool(t, func(ctx context.Context, task Task) error {
		mu.Lock()
		seen[task.ApplicationID]++
		mu.Unlock()
		return nil
	}, nil)

	for _, id := range []string{"app-1", "app-2", "app-3", "app-4", "app-5"} {
		require.NoError(t, p.Submit(context.Background(), Task{ApplicationID: id}))
	}
	p.Close()

	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestPool_RetriesRetryableFaults(t *testing.T) {
	var calls atomic.Int32
	var dead atomic.Int32

	p := testPool(t, func(ctx context.Context, task Task) error {
		if calls.Add(1) < 3 {
			return errors.NewUpdateFailedError(task.ApplicationID, stderrors.New("deadlock"))
		}
		return nil
	}, func(Task, error) { dead.Add(1) })

	require.NoError(t, p.Submit(context.Background(), Task{ApplicationID: "app-1"}))
	p.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(0), dead.Load())
}

func TestPool_RecordedFaultGoesStraightToDeadLetter(t *testing.T) {
	var calls atomic.Int32
	var deadErr error
	var deadTask Task

	p := testPool(t, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return errors.NewTransportFaultError(stderrors.New("timeout")).MarkRecorded()
	}, func(task Task, err error) {
		deadTask = task
		deadErr = err
	})

	require.NoError(t, p.Submit(context.Background(), Task{ApplicationID: "app-1", CycleID: "c-1"}))
	p.Close()

	assert.Equal(t, int32(1), calls.Load())
	require.Error(t, deadErr)
	assert.Equal(t, errors.ErrCodeTransportFault, errors.CodeOf(deadErr))
	assert.Equal(t, "app-1", deadTask.ApplicationID)
	assert.Equal(t, 1, deadTask.Attempt)
}

func TestPool_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	var dead atomic.Int32

	p := testPool(t, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return errors.NewUpdateFailedError(task.ApplicationID, stderrors.New("connection reset"))
	}, func(Task, error) { dead.Add(1) })

	require.NoError(t, p.Submit(context.Background(), Task{ApplicationID: "app-1"}))
	p.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(1), dead.Load())
}

func TestPool_FaultDoesNotAffectSiblings(t *testing.T) {
	var ok atomic.Int32
	p := testPool(t, func(ctx context.Context, task Task) error {
		if task.ApplicationID == "bad" {
			panic("boom")
		}
		ok.Add(1)
		return nil
	}, nil)

	for _, id := range []string{"a", "bad", "b", "c"} {
		require.NoError(t, p.Submit(context.Background(), Task{ApplicationID: id}))
	}
	p.Close()
	assert.Equal(t, int32(3), ok.Load())
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := testPool(t, func(ctx context.Context, task Task) error { return nil }, nil)
	p.Close()

	err := p.Submit(context.Background(), Task{ApplicationID: "app-1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEnqueueFailed, errors.CodeOf(err))
	assert.True(t, stderrors.Is(err, ErrPoolClosed))
}

func TestPool_SubmitRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		var handled atomic.Int32
		p := testPool(t, func(ctx context.Context, task Task) error {
			handled.Add(1)
			return nil
		}, nil)

		var (
			wg       sync.WaitGroup
			accepted atomic.Int32
			start    = make(chan struct{})
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := p.Submit(context.Background(), Task{ApplicationID: "app-1"})
				if err == nil {
					accepted.Add(1)
					return
				}
				assert.ErrorIs(t, err, ErrPoolClosed)
			}()
		}

		close(start)
		p.Close()
		wg.Wait()

		// every accepted task ran before Close returned
		assert.Equal(t, accepted.Load(), handled.Load())
	}
}
