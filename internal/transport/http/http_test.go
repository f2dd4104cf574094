package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, int64, time.Duration) error { return nil }

type fixture struct {
	server *httptest.Server
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	svc := ordersvc.MustNewOrderService(
		ordersvc.WithMemoryStore(store),
		ordersvc.WithDispatcher(noopDispatcher{}),
	)

	transport := NewHTTPTransport(svc)
	transport.RegisterRoutes()

	server := httptest.NewServer(transport.Handler())
	t.Cleanup(server.Close)

	return &fixture{server: server, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))

	return v
}

func (f *fixture) product(t *testing.T, price string, stock int64) converters.Product {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":     "Lamp",
		"category": "home",
		"price":    price,
		"stock":    stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decode[converters.Product](t, resp)
}

func orderBody(productID, quantity int64) map[string]any {
	return map[string]any{
		"customerName":    "Ada",
		"customerEmail":   "ada@example.com",
		"deliveryAddress": "1 Analytical Way",
		"orderItems": []map[string]any{
			{"productId": productID, "quantity": quantity},
		},
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "12.50", 4)
	assert.Equal(t, "12.50", p.Price)

	resp := f.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, 3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[converters.Order](t, resp)

	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "37.50", created.TotalPrice)
	require.Len(t, created.OrderItems, 1)
	assert.Equal(t, "Lamp", created.OrderItems[0].ProductName)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[converters.Order](t, resp).ID)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decode[converters.Product](t, resp).Stock)
}

func TestCreateOrderErrors(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "1.00", 1)

	tests := []struct {
		name string
		body any
		code int
	}{
		{name: "insufficient stock", body: orderBody(p.ID, 2), code: http.StatusBadRequest},
		{name: "unknown product", body: orderBody(p.ID+10, 1), code: http.StatusBadRequest},
		{name: "zero quantity", body: orderBody(p.ID, 0), code: http.StatusBadRequest},
		{name: "no items", body: map[string]any{"customerName": "a", "customerEmail": "a@b.c", "deliveryAddress": "x"}, code: http.StatusBadRequest},
		{name: "bad email", body: func() map[string]any {
			b := orderBody(p.ID, 1)
			b["customerEmail"] = "nope"

			return b
		}(), code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.NotEmpty(t, decode[converters.Error](t, resp).Error)
		})
	}

	resp := f.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil)
	assert.Equal(t, int64(1), decode[converters.Product](t, resp).Stock)
}

func TestBulkCreateReportsEveryOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "2.00", 3)

	resp := f.do(t, http.MethodPost, "/api/orders/bulk", map[string]any{
		"orders": []any{orderBody(p.ID, 2), orderBody(p.ID, 5), orderBody(p.ID, 1)},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	results := decode[[]converters.BulkResult](t, resp)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Order)
	assert.Nil(t, results[1].Order)
	assert.Contains(t, results[1].Error, "insufficient stock")
	assert.NotNil(t, results[2].Order)

	resp = f.do(t, http.MethodPost, "/api/orders/bulk", map[string]any{
		"orders": []any{orderBody(p.ID, 0)},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/orders?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]converters.Order](t, resp), 2)
}

func TestBulkCreateAllSucceed(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "2.00", 3)

	resp := f.do(t, http.MethodPost, "/api/orders/bulk", map[string]any{
		"orders": []any{orderBody(p.ID, 1), orderBody(p.ID, 1)},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, decode[[]converters.BulkResult](t, resp), 2)
}

func TestListFiltersAndDelayed(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "1.00", 10)

	resp := f.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[converters.Order](t, resp)

	svc := fulfillmentsvc.MustNewFulfillmentService(fulfillmentsvc.WithMemoryStore(f.store))
	_, err := svc.Transition(context.Background(), o.ID, status.Pending, status.Processing)
	require.NoError(t, err)
	_, err = svc.Transition(context.Background(), o.ID, status.Processing, status.Delayed)
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, "/api/orders/delayed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	delayed := decode[[]converters.Order](t, resp)
	require.Len(t, delayed, 1)
	assert.Equal(t, o.ID, delayed[0].ID)

	resp = f.do(t, http.MethodGet, "/api/orders?status=delayed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]converters.Order](t, resp), 1)

	resp = f.do(t, http.MethodGet, "/api/orders?search=ada@", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]converters.Order](t, resp), 1)

	resp = f.do(t, http.MethodGet, "/api/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/orders?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/history", o.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]converters.HistoryEntry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "DELAYED", entries[1].NewStatus)
}

func TestDeleteOrderKeepsHistory(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "1.00", 1)

	resp := f.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, 1))
	o := decode[converters.Order](t, resp)

	svc := fulfillmentsvc.MustNewFulfillmentService(fulfillmentsvc.WithMemoryStore(f.store))
	_, err := svc.Transition(context.Background(), o.ID, status.Pending, status.Processing)
	require.NoError(t, err)

	resp = f.do(t, http.MethodDelete, fmt.Sprintf("/api/orders/%d", o.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", o.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, fmt.Sprintf("/api/orders/%d", o.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/history", o.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]converters.HistoryEntry](t, resp), 1)
}

func TestMiscRoutes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/orders/abc", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/products/99", nil).StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/swagger/doc.json", nil).StatusCode)

	resp := f.do(t, http.MethodPost, "/api/products", map[string]any{"name": "x", "price": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductMaintenance(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "5.00", 0)
	path := fmt.Sprintf("/api/products/%d", p.ID)

	resp := f.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, 2))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "nothing in stock yet")

	resp = f.do(t, http.MethodPost, path+"/restock", map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), decode[converters.Product](t, resp).Stock)

	resp = f.do(t, http.MethodPatch, path, map[string]any{"price": "7.25", "expiryDate": "2027-03-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[converters.Product](t, resp)
	assert.Equal(t, "7.25", updated.Price)
	assert.Equal(t, "2027-03-01", updated.ExpiryDate)
	assert.Equal(t, "Lamp", updated.Name)
	assert.Equal(t, int64(3), updated.Stock)

	resp = f.do(t, http.MethodPost, "/api/orders", orderBody(p.ID, 2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[converters.Order](t, resp)
	assert.Equal(t, "14.50", o.TotalPrice)

	resp = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "ordered products cannot be deleted")

	resp = f.do(t, http.MethodDelete, fmt.Sprintf("/api/orders/%d", o.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).StatusCode)
}

func TestProductMaintenanceErrors(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "5.00", 1)
	path := fmt.Sprintf("/api/products/%d", p.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"zero restock", http.MethodPost, path + "/restock", map[string]any{"quantity": 0}, http.StatusBadRequest},
		{"restock unknown product", http.MethodPost, "/api/products/999/restock", map[string]any{"quantity": 1}, http.StatusNotFound},
		{"negative price", http.MethodPatch, path, map[string]any{"price": "-1"}, http.StatusBadRequest},
		{"negative stock", http.MethodPatch, path, map[string]any{"stock": -4}, http.StatusBadRequest},
		{"blank name", http.MethodPatch, path, map[string]any{"name": "  "}, http.StatusBadRequest},
		{"bad expiry", http.MethodPatch, path, map[string]any{"expiryDate": "tomorrow"}, http.StatusBadRequest},
		{"update unknown product", http.MethodPatch, "/api/products/999", map[string]any{"stock": 1}, http.StatusNotFound},
		{"bad id", http.MethodDelete, "/api/products/abc", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.do(t, tt.method, tt.path, tt.body).StatusCode)
		})
	}

	resp := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[converters.Product](t, resp)
	assert.Equal(t, "5.00", got.Price)
	assert.Equal(t, int64(1), got.Stock)
}
