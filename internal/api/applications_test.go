package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/store"
)

var columns = []string{
	"id", "customer_id", "plan_id", "address_1", "address_2",
	"city", "state", "postcode", "status", "order_id", "created_at", "updated_at",
	"plan_id", "type", "name", "monthly_cost", "customer_id", "first_name", "last_name",
}

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := New(Options{
		Lister:   store.NewApplicationStore(db),
		Logger:   logger.NewTestLogger(t),
		PageSize: 15,
		BaseURL:  "http://localhost:8080",
	})
	return srv.Router(), mock
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListApplications_FilterByPlanType(t *testing.T) {
	h, mock := newTestServer(t)
	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications a .* WHERE p.type = \$1`).
		WithArgs("nbn").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`WHERE p.type = \$1 ORDER BY a.created_at ASC, a.id ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("nbn", 15, 0).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"app-nbn", "cust-1", "plan-1", "1 Test St", "Unit 2",
			"Sydney", "NSW", "2000", "complete", "ORD-123456", created, created,
			"plan-1", "nbn", "NBN 100/20", int64(123456), "cust-1", "Jane", "Citizen",
		))

	w := get(t, h, "/api/applications?plan_type=nbn")
	require.Equal(t, http.StatusOK, w.Code)

	var body listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	item := body.Data[0]
	assert.Equal(t, "app-nbn", item.ID)
	assert.Equal(t, "Jane Citizen", item.CustomerName)
	assert.Equal(t, "1 Test St, Unit 2, Sydney, NSW, 2000", item.Address)
	assert.Equal(t, "nbn", string(item.PlanType))
	assert.Equal(t, "NBN 100/20", item.PlanName)
	assert.Equal(t, "NSW", item.State)
	assert.Equal(t, "$1,234.56", item.PlanMonthlyCost)
	require.NotNil(t, item.OrderID)
	assert.Equal(t, "ORD-123456", *item.OrderID)

	assert.Equal(t, 1, body.Meta.Total)
	assert.Equal(t, 1, body.Meta.From)
	assert.Equal(t, 1, body.Meta.To)
	assert.Equal(t, 15, body.Meta.PerPage)
	assert.Equal(t, "http://localhost:8080/api/applications?page=1&plan_type=nbn", body.Links.First)
	assert.Nil(t, body.Links.Next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_InvalidPlanTypeNeverQueries(t *testing.T) {
	h, mock := newTestServer(t)

	w := get(t, h, "/api/applications?plan_type=adsl")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body validationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "The selected plan type is invalid.", body.Message)
	assert.Equal(t, []string{"The selected plan type is invalid."}, body.Errors["plan_type"])

	// no expectations were set, so any query would have failed the request
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_BlankPlanTypeIsNoFilter(t *testing.T) {
	for _, target := range []string{
		"/api/applications?plan_type=&page=",
		"/api/applications?plan_type=%20%20",
	} {
		h, mock := newTestServer(t)
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications a\s+JOIN plans p ON p.id = a.plan_id\s+JOIN customers c ON c.id = a.customer_id$`).
			WithArgs().
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		w := get(t, h, target)
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.JSONEq(t, `[]`, mustField(t, w.Body.Bytes(), "data"))
		assert.NotContains(t, mustField(t, w.Body.Bytes(), "links"), "plan_type")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestListApplications_InvalidPage(t *testing.T) {
	h, _ := newTestServer(t)

	w := get(t, h, "/api/applications?page=0")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "page")
}

func TestListApplications_OrderIDOnlyWhenComplete(t *testing.T) {
	h, mock := newTestServer(t)
	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(32))
	mock.ExpectQuery(`ORDER BY a.created_at ASC, a.id ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(15, 15).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("app-1", "cust-1", "plan-1", "1 Test St", "", "Perth", "WA", "6000", "order", nil, created, created,
				"plan-1", "nbn", "NBN 50", int64(6999), "cust-1", "Jane", "Citizen").
			AddRow("app-2", "cust-2", "plan-2", "2 Test St", "", "Perth", "WA", "6000", "order_failed", nil, created, created,
				"plan-2", "mobile", "Mobile 20GB", int64(3000), "cust-2", "John", "Smith"))

	w := get(t, h, "/api/applications?page=2")
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, item := range raw["data"].([]interface{}) {
		_, has := item.(map[string]interface{})["order_id"]
		assert.False(t, has)
	}

	var body listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "$69.99", body.Data[0].PlanMonthlyCost)
	assert.Equal(t, "1 Test St, Perth, WA, 6000", body.Data[0].Address)
	assert.Equal(t, 3, body.Meta.LastPage)
	assert.Equal(t, 16, body.Meta.From)
	assert.Equal(t, 17, body.Meta.To)
	require.NotNil(t, body.Links.Prev)
	require.NotNil(t, body.Links.Next)
	assert.Equal(t, "http://localhost:8080/api/applications?page=3", *body.Links.Next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_Empty(t *testing.T) {
	h, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	w := get(t, h, "/api/applications")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, mustField(t, w.Body.Bytes(), "data"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_StoreError(t *testing.T) {
	h, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnError(stderrors.New("connection refused"))

	w := get(t, h, "/api/applications")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReady(t *testing.T) {
	srv := New(Options{Checks: map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"zeebe":    func(context.Context) error { return stderrors.New("unavailable") },
	}})

	w := get(t, srv.Router(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "zeebe")

	w = get(t, New(Options{}).Router(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormatCents(t *testing.T) {
	tests := map[int64]string{
		0:         "$0.00",
		5:         "$0.05",
		5999:      "$59.99",
		100000:    "$1,000.00",
		123456789: "$1,234,567.89",
		-2550:     "-$25.50",
	}
	for cents, want := range tests {
		assert.Equal(t, want, FormatCents(cents))
	}
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	return string(raw[field])
}
