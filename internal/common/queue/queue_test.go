package queue

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
)

type MockInstanceCreator struct {
	mock.Mock
}

func (m *MockInstanceCreator) CreateInstance(ctx context.Context, processID string, variables interface{}) (int64, error) {
	args := m.Called(ctx, processID, variables)
	return args.Get(0).(int64), args.Error(1)
}

func TestZeebeQueue_Submit(t *testing.T) {
	creator := new(MockInstanceCreator)
	q := NewZeebeQueue(creator, "nbn-order-submission", logger.NewNoOpLogger())
	task := Task{ApplicationID: "app-1", CycleID: "cycle-1"}

	creator.On("CreateInstance", mock.Anything, "nbn-order-submission", task).Return(int64(2251799813685249), nil)

	require.NoError(t, q.Submit(context.Background(), task))
	creator.AssertExpectations(t)
}

func TestZeebeQueue_SubmitError(t *testing.T) {
	creator := new(MockInstanceCreator)
	q := NewZeebeQueue(creator, "nbn-order-submission", logger.NewNoOpLogger())

	creator.On("CreateInstance", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), stderrors.New("rpc error: code = Unavailable"))

	err := q.Submit(context.Background(), Task{ApplicationID: "app-1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEnqueueFailed, errors.CodeOf(err))

	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, "app-1", stdErr.Metadata["applicationId"])
}
