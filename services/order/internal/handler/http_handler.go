// Package handler implements the Order Coordinator's inbound surfaces:
// the HTTP API (§6) and the inventory-events consumer (§4.5).
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/services/order/internal/client"
	"github.com/kyungseok/reservation-core/services/order/internal/domain"
	"github.com/kyungseok/reservation-core/services/order/internal/service"
)

// HTTPHandler serves the Order Coordinator's JSON API (§6).
type HTTPHandler struct {
	orderService service.OrderService
	catalog      *client.CatalogClient
	logger       *zap.Logger
}

// NewHTTPHandler builds an HTTPHandler.
func NewHTTPHandler(orderService service.OrderService, catalog *client.CatalogClient, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orderService: orderService, catalog: catalog, logger: logger}
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID     string `json:"customerId"`
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// OrderResponse is the JSON projection of a domain.Order.
type OrderResponse struct {
	OrderID       string `json:"orderId"`
	CustomerID    string `json:"customerId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	Status        string `json:"status"`
	ReservationID string `json:"reservationId,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	Cached        bool   `json:"cached,omitempty"`
}

// ErrorResponse is the JSON body of a non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toOrderResponse(order *domain.Order, cached bool) OrderResponse {
	return OrderResponse{
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Status:        string(order.Status),
		ReservationID: order.ReservationID,
		ErrorMessage:  order.ErrorMessage,
		Cached:        cached,
	}
}

// CreateOrder handles POST /orders (§6: 201 confirmed, 202
// pending_verification, 400 domain-failed or validation, 500 internal).
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	result, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderCommand{
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	order := result.Order
	status := http.StatusCreated
	switch order.Status {
	case domain.OrderStatusPendingVerification:
		status = http.StatusAccepted
	case domain.OrderStatusFailed:
		status = http.StatusBadRequest
	}

	h.respondJSON(w, status, toOrderResponse(order, result.Cached))
}

// GetOrder handles GET /orders/:id.
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if strings.HasSuffix(orderID, "/cancel") {
		h.CancelOrder(w, r)
		return
	}

	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(order, false))
}

// ListOrders handles GET /orders?status=&limit=.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	status := domain.OrderStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.orderService.ListOrders(r.Context(), status, limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order, false))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// CancelOrder handles POST /orders/:id/cancel.
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	orderID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/orders/"), "/cancel")

	order, err := h.orderService.CancelOrder(r.Context(), orderID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(order, false))
}

// Products handles GET /products, proxying to the external catalog
// service (§6: "pass-through").
func (h *HTTPHandler) Products(w http.ResponseWriter, r *http.Request) {
	h.proxyToCatalog(w, "/products")
}

// ProductStock handles GET /products/:id/stock.
func (h *HTTPHandler) ProductStock(w http.ResponseWriter, r *http.Request) {
	h.proxyToCatalog(w, r.URL.Path)
}

func (h *HTTPHandler) proxyToCatalog(w http.ResponseWriter, path string) {
	status, body, contentType, err := h.catalog.Proxy(path)
	if err != nil {
		h.logger.Error("catalog proxy failed", zap.Error(err), zap.String("path", path))
		h.respondError(w, http.StatusServiceUnavailable, "catalog service unavailable", "")
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	w.Write(body)
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) respondDomainError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	switch code {
	case domainerrors.ErrCodeValidation, domainerrors.ErrCodeInvalidOrder, domainerrors.ErrCodeConflict:
		h.respondError(w, http.StatusBadRequest, err.Error(), string(code))
	case domainerrors.ErrCodeOrderNotFound:
		h.respondError(w, http.StatusNotFound, err.Error(), string(code))
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error", string(code))
	}
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string, code string) {
	h.respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
