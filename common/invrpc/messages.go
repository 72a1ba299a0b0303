// Package invrpc is the InventoryService contract shared by the Order
// Coordinator's client and the Inventory Custodian's server (spec §6):
// request/response structs, the numeric status enum, and the
// grpc.ServiceDesc that wires them onto google.golang.org/grpc without a
// protoc-generated stub (see common/grpcjson).
package invrpc

// ReserveStatus is the wire-compatible numeric outcome of ReserveStock.
type ReserveStatus int32

const (
	ReserveStatusUnknown           ReserveStatus = 0
	ReserveStatusConfirmed         ReserveStatus = 1
	ReserveStatusInsufficientStock ReserveStatus = 2
	ReserveStatusProductNotFound   ReserveStatus = 3
	ReserveStatusAlreadyExists     ReserveStatus = 4
)

func (s ReserveStatus) String() string {
	switch s {
	case ReserveStatusConfirmed:
		return "CONFIRMED"
	case ReserveStatusInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case ReserveStatusProductNotFound:
		return "PRODUCT_NOT_FOUND"
	case ReserveStatusAlreadyExists:
		return "ALREADY_EXISTS"
	default:
		return "UNKNOWN"
	}
}

// ReserveStockRequest is the body of InventoryService.ReserveStock (§4.2).
type ReserveStockRequest struct {
	OrderID        string `json:"orderId"`
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// ReserveStockResponse is ReserveStock's reply.
type ReserveStockResponse struct {
	Success        bool          `json:"success"`
	Status         ReserveStatus `json:"status"`
	ReservationID  string        `json:"reservationId,omitempty"`
	RemainingStock int           `json:"remainingStock"`
	Message        string        `json:"message,omitempty"`
}

// ReleaseStockRequest is the body of InventoryService.ReleaseStock (§4.4).
type ReleaseStockRequest struct {
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason,omitempty"`
}

// ReleaseStockResponse is ReleaseStock's reply.
type ReleaseStockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CheckStockRequest is the body of InventoryService.CheckStock.
type CheckStockRequest struct {
	ProductID string `json:"productId"`
}

// CheckStockResponse is CheckStock's reply.
type CheckStockResponse struct {
	Found bool   `json:"found"`
	Stock int    `json:"stock"`
	Name  string `json:"name,omitempty"`
}

// HealthCheckRequest is the body of InventoryService.HealthCheck.
type HealthCheckRequest struct{}

// HealthCheckResponse is HealthCheck's reply.
type HealthCheckResponse struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}
