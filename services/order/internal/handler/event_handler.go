package handler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/common/idempotency"
	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/order/internal/service"
)

// EventHandler dispatches inventory-events messages to the OrderService
// (§4.5). Messages are keyed by orderId, not event type (§4.6), so
// dispatch switches on the envelope's own eventType field rather than
// msg.Topic/msg.Key.
type EventHandler struct {
	orderService service.OrderService
	idemStore    idempotency.Store
	logger       *zap.Logger
}

// NewEventHandler builds an EventHandler.
func NewEventHandler(orderService service.OrderService, idemStore idempotency.Store, logger *zap.Logger) *EventHandler {
	return &EventHandler{orderService: orderService, idemStore: idemStore, logger: logger}
}

type envelope struct {
	EventID   string           `json:"eventId"`
	EventType events.EventType `json:"eventType"`
}

// HandleMessage implements messaging.MessageHandler.
func (h *EventHandler) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	h.logger.Info("received message", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))

	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger.Error("failed to unmarshal event envelope", zap.Error(err), zap.String("topic", msg.Topic))
		return nil
	}

	if processed, _ := h.idemStore.IsProcessed(ctx, env.EventID); processed {
		h.logger.Info("event already processed", zap.String("eventId", env.EventID))
		return nil
	}

	var err error
	switch env.EventType {
	case events.EventStockReserved:
		err = h.handleStockReserved(ctx, msg)
	case events.EventStockReleased:
		err = h.handleStockReleased(ctx, msg)
	case events.EventOrderVerified:
		err = h.handleOrderVerified(ctx, msg)
	case events.EventVerificationComplete:
		err = h.handleVerificationComplete(ctx, msg)
	case events.EventLowStockAlert:
		return nil // informational only; nothing for the coordinator to do
	default:
		h.logger.Warn("unknown event type", zap.String("eventType", string(env.EventType)))
		return nil
	}

	if err != nil {
		if domainerrors.IsRetryable(err) {
			return err
		}
		h.logger.Error("dropping event after non-retryable failure", zap.Error(err), zap.String("eventId", env.EventID))
		return nil
	}

	_, _ = h.idemStore.Reserve(ctx, env.EventID, 24*time.Hour)
	return nil
}

func (h *EventHandler) handleStockReserved(ctx context.Context, msg *messaging.Message) error {
	var evt events.StockReservedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}
	return h.orderService.HandleStockReserved(ctx, evt)
}

func (h *EventHandler) handleStockReleased(ctx context.Context, msg *messaging.Message) error {
	var evt events.StockReleasedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}
	return h.orderService.HandleStockReleased(ctx, evt)
}

func (h *EventHandler) handleOrderVerified(ctx context.Context, msg *messaging.Message) error {
	var evt events.OrderVerifiedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}
	return h.orderService.HandleOrderVerified(ctx, evt)
}

func (h *EventHandler) handleVerificationComplete(ctx context.Context, msg *messaging.Message) error {
	var evt events.VerificationCompleteEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}
	return h.orderService.HandleVerificationComplete(ctx, evt)
}

