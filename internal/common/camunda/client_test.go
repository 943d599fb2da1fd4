package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/errors"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("rpc error: code = Unavailable")
		}
		return nil
	}, "create instance")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return stderrors.New("rpc error: code = NotFound desc = process not found")
	}, "create instance nbn-order-submission")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.ErrCodeWorkflowEngine, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return stderrors.New("context deadline exceeded")
	}, "deploy")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.IsRetryable(err))
}

func TestInstrument_CallsHandler(t *testing.T) {
	called := false
	h := Instrument("submit-nbn-order", func(client worker.JobClient, job entities.Job) {
		called = true
		assert.Equal(t, int64(7), job.Key)
	})

	h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 7}})
	assert.True(t, called)
}
