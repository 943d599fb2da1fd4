package events

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event models.ApplicationEvent) error {
	return m.Called(ctx, event).Error(0)
}

func fixedNotifier(pub Publisher) *PublishingNotifier {
	n := NewNotifier(pub, logger.NewNoOpLogger())
	n.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return n
}

func TestNotifier_OrderCompleted(t *testing.T) {
	pub := new(MockPublisher)
	orderID := "ORD-123456"
	app := &models.Application{
		ID:         "app-1",
		CustomerID: "cust-1",
		Status:     models.StatusComplete,
		OrderID:    &orderID,
		Plan:       models.Plan{Type: models.PlanTypeNBN},
	}

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.ApplicationEvent) bool {
		return e.Type == models.EventOrderCompleted &&
			e.ApplicationID == "app-1" &&
			e.CustomerID == "cust-1" &&
			e.OrderID == "ORD-123456" &&
			e.PlanType == models.PlanTypeNBN &&
			e.OccurredAt == "2024-03-01T10:00:00Z" &&
			e.ID != ""
	})).Return(nil)

	require.NoError(t, fixedNotifier(pub).OrderCompleted(context.Background(), app))
	pub.AssertExpectations(t)
}

func TestNotifier_OrderFailedCarriesReason(t *testing.T) {
	pub := new(MockPublisher)
	app := &models.Application{ID: "app-2", Status: models.StatusOrderFailed}

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.ApplicationEvent) bool {
		return e.Type == models.EventOrderFailed && e.Reason == "EXTERNAL_REJECTION" && e.OrderID == ""
	})).Return(nil)

	require.NoError(t, fixedNotifier(pub).OrderFailed(context.Background(), app, "EXTERNAL_REJECTION"))
	pub.AssertExpectations(t)
}

func TestNotifier_PublishFailure(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(stderrors.New("topic not found"))

	err := fixedNotifier(pub).ApplicationCreated(context.Background(), &models.Application{ID: "app-3"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationPublishFailed, errors.CodeOf(err))
}

func TestLogPublisher(t *testing.T) {
	log, logs := logger.NewObservedLogger()
	err := LogPublisher{Logger: log}.Publish(context.Background(), models.ApplicationEvent{
		Type:          models.EventApplicationCreated,
		ApplicationID: "app-4",
	})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "app-4", logs.All()[0].ContextMap()["applicationId"])
}
