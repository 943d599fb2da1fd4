// Package b2b talks to the carrier's order placement endpoint.
package b2b

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/errors"
	commonhttp "nbn-order-workers/internal/common/http"
	"nbn-order-workers/internal/common/metrics"
	"nbn-order-workers/internal/common/validation"
	"nbn-order-workers/internal/models"
)

// IdempotencyHeader carries the application id when enabled in config.
const IdempotencyHeader = "Idempotency-Key"

var successSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["order_id"],
	"properties": {
		"order_id": {"type": "string", "minLength": 1}
	}
}`)

// OrderRequest is the JSON body posted for one application.
type OrderRequest struct {
	Address1 string  `json:"address_1"`
	Address2 *string `json:"address_2"`
	City     string  `json:"city"`
	State    string  `json:"state"`
	Postcode string  `json:"postcode"`
	PlanName string  `json:"plan_name"`
}

type OrderResponse struct {
	OrderID string `json:"order_id"`
}

// NewOrderRequest snapshots the address and the plan name at submission time.
func NewOrderRequest(app *models.Application) OrderRequest {
	req := OrderRequest{
		Address1: app.Address1,
		City:     app.City,
		State:    app.State,
		Postcode: app.Postcode,
		PlanName: app.Plan.Name,
	}
	if strings.TrimSpace(app.Address2) != "" {
		addr2 := app.Address2
		req.Address2 = &addr2
	}
	return req
}

// OrderPlacer is what the submission task depends on.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, applicationID string, req OrderRequest) (*OrderResponse, error)
}

type Client struct {
	endpoint       string
	timeout        time.Duration
	idempotencyKey bool
	limiter        *rate.Limiter // nil when unthrottled
	http           *commonhttp.Client
}

func NewClient(cfg config.B2BConfig) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	return &Client{
		endpoint:       cfg.Endpoint,
		timeout:        timeout,
		idempotencyKey: cfg.SendIdempotencyKey,
		limiter:        newLimiter(cfg.RateLimit, cfg.Burst),
		http:           commonhttp.NewClient(timeout),
	}
}

// PlaceOrder posts the order. Errors are always *errors.StandardError with
// code TRANSPORT_FAULT, EXTERNAL_REJECTION or MALFORMED_RESPONSE, or
// B2B_THROTTLED when nothing was sent.
func (c *Client) PlaceOrder(ctx context.Context, applicationID string, req OrderRequest) (*OrderResponse, error) {
	// throttling happens before the request timeout starts
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.NewThrottledError(fmt.Errorf("rate limiter: %w", err)).WithMetadata("applicationId", applicationID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var headers map[string]string
	if c.idempotencyKey {
		headers = map[string]string{IdempotencyHeader: applicationID}
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, headers, req)
	if err != nil {
		return nil, errors.NewTransportFaultError(err).WithMetadata("applicationId", applicationID)
	}
	metrics.NBNB2BRequestDuration.WithLabelValues(statusClass(resp.StatusCode)).Observe(resp.Duration.Seconds())

	body := string(resp.Body)
	if !resp.Success() {
		return nil, errors.NewExternalRejectionError(resp.StatusCode, body).WithMetadata("applicationId", applicationID)
	}

	result, err := successSchema.ValidateBytes(resp.Body)
	if err != nil {
		return nil, errors.NewMalformedResponseError(body, err).WithMetadata("applicationId", applicationID)
	}
	if !result.Valid {
		verr := fmt.Errorf("%s", strings.Join(result.GetErrorMessages(), "; "))
		return nil, errors.NewMalformedResponseError(body, verr).WithMetadata("applicationId", applicationID)
	}

	var out OrderResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, errors.NewMalformedResponseError(body, err).WithMetadata("applicationId", applicationID)
	}
	return &out, nil
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
