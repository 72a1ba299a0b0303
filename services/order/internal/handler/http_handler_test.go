package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/services/order/internal/client"
	"github.com/kyungseok/reservation-core/services/order/internal/domain"
	"github.com/kyungseok/reservation-core/services/order/internal/service"
)

func TestHTTPHandler_CreateOrder_ConfirmedReturns201(t *testing.T) {
	svc := &fakeOrderService{createResult: &service.CreateOrderResult{
		Order: &domain.Order{OrderID: "order-1", Status: domain.OrderStatusConfirmed, ReservationID: "res-1"},
	}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	body, _ := json.Marshal(CreateOrderRequest{CustomerID: "cust-1", ProductID: "widget", Quantity: 2})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, "res-1", resp.ReservationID)
}

func TestHTTPHandler_CreateOrder_PendingVerificationReturns202(t *testing.T) {
	svc := &fakeOrderService{createResult: &service.CreateOrderResult{
		Order: &domain.Order{OrderID: "order-1", Status: domain.OrderStatusPendingVerification},
	}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	body, _ := json.Marshal(CreateOrderRequest{CustomerID: "cust-1", ProductID: "widget", Quantity: 2})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHTTPHandler_CreateOrder_ValidationErrorReturns400(t *testing.T) {
	svc := &fakeOrderService{createErr: domainerrors.New(domainerrors.ErrCodeValidation, "quantity must be positive")}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	body, _ := json.Marshal(CreateOrderRequest{CustomerID: "cust-1"})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_CreateOrder_UnexpectedErrorReturns500(t *testing.T) {
	svc := &fakeOrderService{createErr: domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to begin transaction", nil)}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	body, _ := json.Marshal(CreateOrderRequest{CustomerID: "cust-1", ProductID: "widget", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHTTPHandler_CreateOrder_PicksUpIdempotencyKeyHeader(t *testing.T) {
	svc := &fakeOrderService{createResult: &service.CreateOrderResult{
		Order: &domain.Order{OrderID: "order-1", Status: domain.OrderStatusConfirmed},
	}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	body, _ := json.Marshal(CreateOrderRequest{CustomerID: "cust-1", ProductID: "widget", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-from-header")
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, "key-from-header", svc.lastCreateCmd.IdempotencyKey)
}

func TestHTTPHandler_GetOrder_NotFoundReturns404(t *testing.T) {
	svc := &fakeOrderService{getErr: domainerrors.Wrap(domainerrors.ErrCodeOrderNotFound, "order not found", nil)}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	rec := httptest.NewRecorder()

	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPHandler_GetOrder_FoundReturns200(t *testing.T) {
	svc := &fakeOrderService{getResult: &domain.Order{OrderID: "order-1", Status: domain.OrderStatusConfirmed}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	rec := httptest.NewRecorder()

	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPHandler_GetOrder_RoutesCancelSuffixToCancelOrder(t *testing.T) {
	svc := &fakeOrderService{cancelResult: &domain.Order{OrderID: "order-1", Status: domain.OrderStatusCancelled}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/cancel", nil)
	rec := httptest.NewRecorder()

	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order-1", svc.lastCancelID)
}

func TestHTTPHandler_CancelOrder_ConflictReturns400(t *testing.T) {
	svc := &fakeOrderService{cancelErr: domainerrors.New(domainerrors.ErrCodeConflict, "order cannot be cancelled from its current status")}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/cancel", nil)
	rec := httptest.NewRecorder()

	h.CancelOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_ListOrders_ReturnsOKWithOrders(t *testing.T) {
	svc := &fakeOrderService{listResult: []*domain.Order{
		{OrderID: "order-1", Status: domain.OrderStatusConfirmed},
		{OrderID: "order-2", Status: domain.OrderStatusPending},
	}}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/orders?status=confirmed&limit=10", nil)
	rec := httptest.NewRecorder()

	h.ListOrders(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestHTTPHandler_Products_ProxiesToCatalog(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"productId":"widget"}]`))
	}))
	defer upstream.Close()

	svc := &fakeOrderService{}
	h := NewHTTPHandler(svc, client.NewCatalogClient(upstream.URL), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()

	h.Products(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"productId":"widget"}]`, rec.Body.String())
}

func TestHTTPHandler_Products_CatalogUnavailableReturns503(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://127.0.0.1:1"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()

	h.Products(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPHandler_HealthCheck_ReturnsHealthy(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewHTTPHandler(svc, client.NewCatalogClient("http://unused"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
