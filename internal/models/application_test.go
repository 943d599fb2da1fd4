package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApplicationStatus(t *testing.T) {
	for _, raw := range []string{"prelim", "order", "complete", "order_failed"} {
		s, err := ParseApplicationStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, string(s))
	}

	_, err := ParseApplicationStatus("Complete")
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		allowed  bool
	}{
		{StatusOrder, StatusComplete, true},
		{StatusOrder, StatusOrderFailed, true},
		{StatusPrelim, StatusComplete, false},
		{StatusPrelim, StatusOrder, false},
		{StatusComplete, StatusOrderFailed, false},
		{StatusOrderFailed, StatusComplete, false},
		{StatusOrderFailed, StatusOrder, false},
		{ApplicationStatus("bogus"), StatusComplete, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusOrderFailed.Terminal())
	assert.False(t, StatusOrder.Terminal())
	assert.False(t, StatusPrelim.Terminal())
}

func TestStatusScanAndValue(t *testing.T) {
	var s ApplicationStatus
	require.NoError(t, s.Scan([]byte("order_failed")))
	assert.Equal(t, StatusOrderFailed, s)

	assert.Error(t, s.Scan(42))
	assert.Error(t, s.Scan("shipped"))

	v, err := StatusComplete.Value()
	require.NoError(t, err)
	assert.Equal(t, "complete", v)

	_, err = ApplicationStatus("").Value()
	assert.Error(t, err)
}

func TestParsePlanType(t *testing.T) {
	pt, err := ParsePlanType("opticomm")
	require.NoError(t, err)
	assert.Equal(t, PlanTypeOpticomm, pt)

	_, err = ParsePlanType("adsl")
	assert.True(t, errors.Is(err, ErrInvalidPlanType))
}

func TestFullAddress(t *testing.T) {
	app := &Application{Address1: "1 Test St", City: "Sydney", State: "NSW", Postcode: "2000"}
	assert.Equal(t, "1 Test St, Sydney, NSW, 2000", app.FullAddress())

	app.Address2 = "Unit 4"
	assert.Equal(t, "1 Test St, Unit 4, Sydney, NSW, 2000", app.FullAddress())
}

func TestEligibleForOrder(t *testing.T) {
	app := &Application{Status: StatusOrder, Plan: Plan{Type: PlanTypeNBN}}
	assert.True(t, app.EligibleForOrder())

	app.Status = StatusPrelim
	assert.False(t, app.EligibleForOrder())

	app = &Application{Status: StatusOrder, Plan: Plan{Type: PlanTypeMobile}}
	assert.False(t, app.EligibleForOrder())
}

func TestCompleteOrder(t *testing.T) {
	app := &Application{ID: "app-1", Status: StatusOrder}

	u, err := app.CompleteOrder("ORD-123456")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, u.Status)
	require.NotNil(t, u.OrderID)
	assert.Equal(t, "ORD-123456", *u.OrderID)

	app.Apply(u)
	assert.NoError(t, app.CheckInvariants())

	_, err = app.CompleteOrder("ORD-2")
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
}

func TestCompleteOrder_RequiresOrderID(t *testing.T) {
	app := &Application{ID: "app-1", Status: StatusOrder}
	_, err := app.CompleteOrder("  ")
	assert.True(t, errors.Is(err, ErrOrderIDInvariant))
}

func TestFailOrder(t *testing.T) {
	app := &Application{ID: "app-1", Status: StatusOrder}

	u, err := app.FailOrder()
	require.NoError(t, err)
	assert.Nil(t, u.OrderID)

	app.Apply(u)
	assert.Equal(t, StatusOrderFailed, app.Status)
	assert.NoError(t, app.CheckInvariants())

	_, err = (&Application{Status: StatusPrelim}).FailOrder()
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
}

func TestCheckInvariants(t *testing.T) {
	orderID := "ORD-1"
	assert.Error(t, (&Application{Status: StatusComplete}).CheckInvariants())
	assert.Error(t, (&Application{Status: StatusOrderFailed, OrderID: &orderID}).CheckInvariants())
	assert.NoError(t, (&Application{Status: StatusPrelim}).CheckInvariants())
}
