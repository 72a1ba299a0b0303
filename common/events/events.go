// Package events defines the wire schema for every message that crosses
// the event bus (§6): a typed BaseEvent envelope plus one struct per
// event type, so consumers decode into a tagged union instead of an
// untyped body (§9 design note).
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a bus message's payload shape, as a dotted, versioned
// name distinct from the topic it travels on (order-events,
// inventory-events); the verify-orders queue carries VerifyOrderMessage,
// whose order outbox row is tagged EventVerifyOrder.
type EventType string

const (
	EventOrderCreated             EventType = "order.created.v1"
	EventOrderConfirmed           EventType = "order.confirmed.v1"
	EventOrderFailed              EventType = "order.failed.v1"
	EventOrderCancelled           EventType = "order.cancelled.v1"
	EventOrderPendingVerification EventType = "order.pending_verification.v1"

	EventStockReserved EventType = "stock.reserved.v1"
	EventStockReleased EventType = "stock.released.v1"
	EventLowStockAlert EventType = "stock.low_stock_alert.v1"
	EventOrderVerified EventType = "order.verified.v1"
	// EventVerificationComplete is the legacy shape accepted on ingress
	// for wire compatibility (§9); this rewrite never emits it.
	EventVerificationComplete EventType = "verification.complete.v1"

	// EventVerifyOrder tags the order outbox row carrying a
	// VerifyOrderMessage, so the outbox worker can route it to the
	// verify-orders queue instead of the order-events topic (§4.3).
	EventVerifyOrder EventType = "order.verify.v1"
)

// BaseEvent is embedded in every event payload.
type BaseEvent struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	SchemaVersion int       `json:"schemaVersion"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId"` // == orderId
}

// NewBaseEvent stamps a fresh BaseEvent for eventType, correlated to
// correlationID (conventionally the orderId). messageId is taken to be
// eventId (§6); there is no separate field for it on the wire.
func NewBaseEvent(eventType EventType, correlationID string) BaseEvent {
	return BaseEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SchemaVersion: 1,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// OrderCreatedEvent is published the moment a pending order is persisted.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        string `json:"orderId"`
	CustomerID     string `json:"customerId"`
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// OrderConfirmedEvent is published when an order reaches `confirmed`.
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
}

// OrderFailedEvent is published when an order reaches `failed`.
type OrderFailedEvent struct {
	BaseEvent
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// OrderCancelledEvent is published when an order reaches `cancelled`.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// OrderPendingVerificationEvent is published when the coordinator's
// reservation RPC times out or the transport is unavailable.
type OrderPendingVerificationEvent struct {
	BaseEvent
	OrderID string `json:"orderId"`
}

// StockReservedEvent is published by the Inventory Custodian after a
// reserveStock transaction commits.
type StockReservedEvent struct {
	BaseEvent
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
}

// StockReleasedEvent is published by the Inventory Custodian after a
// releaseStock transaction commits.
type StockReleasedEvent struct {
	BaseEvent
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason"`
}

// LowStockAlertEvent is published when a reservation leaves a product at
// or below its low_stock_threshold.
type LowStockAlertEvent struct {
	BaseEvent
	ProductID      string `json:"productId"`
	RemainingStock int    `json:"remainingStock"`
	Threshold      int    `json:"threshold"`
}

// OrderVerifiedEvent is published by the VerifyOrder handler (§4.3); it is
// the one shape this rewrite emits, though the consumer also accepts the
// legacy VerificationCompleteEvent on ingress.
type OrderVerifiedEvent struct {
	BaseEvent
	OrderID            string `json:"orderId"`
	Status             string `json:"status"` // "confirmed" | "not_found"
	ReservationID      string `json:"reservationId,omitempty"`
	RecoveredFromCrash bool   `json:"recoveredFromCrash"`
}

// VerificationCompleteEvent is the legacy wire shape for the same logical
// event as OrderVerifiedEvent, accepted on ingress only (§9).
type VerificationCompleteEvent struct {
	BaseEvent
	OrderID       string `json:"orderId"`
	Verified      bool   `json:"verified"`
	ReservationID string `json:"reservationId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerifyOrderMessage is the body of a verify-orders queue message (§4.3),
// enqueued by the coordinator whenever a reservation RPC's outcome is
// unknown.
type VerifyOrderMessage struct {
	OrderID             string    `json:"orderId"`
	ProductID           string    `json:"productId"`
	Quantity            int       `json:"quantity"`
	IdempotencyKey      string    `json:"idempotencyKey"`
	OriginalRequestTime time.Time `json:"originalRequestTime"`
}
