// Package handler implements the Inventory Custodian's VerifyOrder queue
// consumer (spec §4.3), the closing element of the verification recovery
// path: together with the coordinator's at-least-once enqueue, it
// guarantees every order that left pending_verification eventually
// reaches a terminal status.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/common/invrpc"
	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/inventory/internal/service"
)

// VerifyOrderHandler drains the verify-orders queue.
type VerifyOrderHandler struct {
	inventoryService *service.InventoryService
	db               *sql.DB
	publisher        messaging.Publisher
	logger           *zap.Logger
}

// NewVerifyOrderHandler builds a VerifyOrderHandler.
func NewVerifyOrderHandler(inventoryService *service.InventoryService, db *sql.DB, publisher messaging.Publisher, logger *zap.Logger) *VerifyOrderHandler {
	return &VerifyOrderHandler{inventoryService: inventoryService, db: db, publisher: publisher, logger: logger}
}

// Handle implements messaging.MessageHandler. A non-nil return leaves the
// message unacked so the bus redelivers it (§4.3 step 4).
func (h *VerifyOrderHandler) Handle(ctx context.Context, msg *messaging.Message) error {
	var req events.VerifyOrderMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		h.logger.Error("failed to unmarshal VerifyOrder message", zap.Error(err))
		return err
	}

	h.logger.Info("verifying order", zap.String("orderId", req.OrderID))

	// Step 1: idempotent finder.
	existing, err := h.inventoryService.ReservationByOrderID(ctx, h.db, req.OrderID)
	if err != nil {
		return err
	}

	if existing != nil {
		// Step 2: a reservation already exists (either a legitimate
		// concurrent success or a Schrodinger crash that committed before
		// replying). Publish the recovered-confirmation and ack.
		return h.publishVerified(ctx, req.OrderID, events.OrderVerifiedEvent{
			BaseEvent:          events.NewBaseEvent(events.EventOrderVerified, req.OrderID),
			OrderID:            req.OrderID,
			Status:             "confirmed",
			ReservationID:      existing.ReservationID,
			RecoveredFromCrash: true,
		})
	}

	// Step 3: attempt the reservation idempotently under a derived key.
	verifyKey := fmt.Sprintf("verify-%s", req.IdempotencyKey)
	resp, err := h.inventoryService.ReserveStock(ctx, &invrpc.ReserveStockRequest{
		OrderID:        req.OrderID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		IdempotencyKey: verifyKey,
	})
	if err != nil {
		return err
	}

	if resp.Success {
		return h.publishVerified(ctx, req.OrderID, events.OrderVerifiedEvent{
			BaseEvent:          events.NewBaseEvent(events.EventOrderVerified, req.OrderID),
			OrderID:            req.OrderID,
			Status:             "confirmed",
			ReservationID:      resp.ReservationID,
			RecoveredFromCrash: false,
		})
	}

	return h.publishVerified(ctx, req.OrderID, events.OrderVerifiedEvent{
		BaseEvent:          events.NewBaseEvent(events.EventOrderVerified, req.OrderID),
		OrderID:            req.OrderID,
		Status:             "not_found",
		RecoveredFromCrash: false,
	})
}

func (h *VerifyOrderHandler) publishVerified(ctx context.Context, orderID string, evt events.OrderVerifiedEvent) error {
	// Step 4: only ack (return nil) once the publish itself succeeds.
	if err := messaging.PublishWithOrderID(ctx, h.publisher, messaging.TopicInventoryEvents, orderID, evt); err != nil {
		h.logger.Error("failed to publish OrderVerified", zap.Error(err), zap.String("orderId", orderID))
		return err
	}
	return nil
}
