package b2b

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/errors"
	"nbn-order-workers/internal/models"
)

func testApplication() *models.Application {
	return &models.Application{
		ID:       "app-1",
		Address1: "1 Test St",
		City:     "Sydney",
		State:    "NSW",
		Postcode: "2000",
		Status:   models.StatusOrder,
		Plan:     models.Plan{Type: models.PlanTypeNBN, Name: "NBN 100"},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sendKey bool) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.B2BConfig{Endpoint: server.URL, Timeout: 2000, SendIdempotencyKey: sendKey})
}

func TestPlaceOrder_Success(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get(IdempotencyHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"order_id":"ORD-123456"}`))
	}, false)

	resp, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
	require.NoError(t, err)
	assert.Equal(t, "ORD-123456", resp.OrderID)

	assert.Equal(t, "1 Test St", received["address_1"])
	assert.Nil(t, received["address_2"])
	assert.Equal(t, "Sydney", received["city"])
	assert.Equal(t, "NSW", received["state"])
	assert.Equal(t, "2000", received["postcode"])
	assert.Equal(t, "NBN 100", received["plan_name"])
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-1", r.Header.Get(IdempotencyHeader))
		_, _ = w.Write([]byte(`{"order_id":"ORD-1"}`))
	}, true)

	_, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
	require.NoError(t, err)
}

func TestPlaceOrder_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   errors.ErrorCode
	}{
		{"bad request is a rejection", http.StatusBadRequest, `{"error":"invalid postcode"}`, errors.ErrCodeExternalRejection},
		{"server error is a rejection", http.StatusBadGateway, `upstream down`, errors.ErrCodeExternalRejection},
		{"missing order id", http.StatusOK, `{"success":true}`, errors.ErrCodeMalformedResponse},
		{"empty order id", http.StatusCreated, `{"order_id":""}`, errors.ErrCodeMalformedResponse},
		{"not json", http.StatusOK, `<html>ok</html>`, errors.ErrCodeMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, false)

			resp, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, tt.code, errors.CodeOf(err))

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.False(t, stdErr.Retryable)
			if tt.code == errors.ErrCodeExternalRejection {
				assert.Equal(t, tt.body, stdErr.Details)
				assert.Equal(t, tt.status, stdErr.Metadata["statusCode"])
			} else {
				assert.Equal(t, tt.body, stdErr.Metadata["response"])
			}
		})
	}
}

func TestPlaceOrder_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(config.B2BConfig{Endpoint: server.URL, Timeout: 50})
	_, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTransportFault, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestPlaceOrder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(config.B2BConfig{Endpoint: url, Timeout: 500})
	_, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
	assert.Equal(t, errors.ErrCodeTransportFault, errors.CodeOf(err))
}

func TestNewOrderRequest_KeepsAddress2(t *testing.T) {
	app := testApplication()
	app.Address2 = "Unit 4"
	req := NewOrderRequest(app)
	require.NotNil(t, req.Address2)
	assert.Equal(t, "Unit 4", *req.Address2)
}

func TestPlaceOrder_RateLimited(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"order_id":"ORD-1"}`))
	}))
	defer server.Close()

	client := NewClient(config.B2BConfig{Endpoint: server.URL, Timeout: 2000, RateLimit: 0.5, Burst: 1})

	_, err := client.PlaceOrder(context.Background(), "app-1", NewOrderRequest(testApplication()))
	require.NoError(t, err)

	// the next token is two seconds away, past this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.PlaceOrder(ctx, "app-2", NewOrderRequest(testApplication()))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeThrottled, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 1, hits)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0, 5))
	assert.Nil(t, newLimiter(-1, 5))

	l := newLimiter(10, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}
