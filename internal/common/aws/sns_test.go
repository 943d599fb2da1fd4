package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/models"
)

type MockSNSService struct {
	mock.Mock
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSNSPublisher_Publish(t *testing.T) {
	client := new(MockSNSService)
	publisher := NewSNSPublisherWithClient(client, "arn:aws:sns:ap-southeast-2:123:applications")

	event := models.ApplicationEvent{
		ID:            "evt-1",
		Type:          models.EventOrderCompleted,
		ApplicationID: "app-1",
		PlanType:      models.PlanTypeNBN,
		Status:        models.StatusComplete,
		OrderID:       "ORD-1",
	}

	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var decoded models.ApplicationEvent
		if err := json.Unmarshal([]byte(*in.Message), &decoded); err != nil {
			return false
		}
		return *in.TopicArn == "arn:aws:sns:ap-southeast-2:123:applications" &&
			*in.MessageAttributes["eventType"].StringValue == "application.order_completed" &&
			*in.MessageAttributes["planType"].StringValue == "nbn" &&
			decoded.OrderID == "ORD-1"
	})).Return(&sns.PublishOutput{}, nil)

	require.NoError(t, publisher.Publish(context.Background(), event))
	client.AssertExpectations(t)
}

func TestSNSPublisher_PublishError(t *testing.T) {
	client := new(MockSNSService)
	publisher := NewSNSPublisherWithClient(client, "arn")
	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := publisher.Publish(context.Background(), models.ApplicationEvent{Type: models.EventOrderFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application.order_failed")
}
