// Package service implements the Order Coordinator's business logic: order
// creation and cancellation (spec §4.1), and the event-consumer handlers
// (§4.5) that react to inventory-events. Both the synchronous RPC-reply
// path and the asynchronous event-consumer path funnel every status
// transition through domain.Apply under a single LockForUpdate
// transaction (§9 design note), so whichever path learns the outcome
// first wins and the other is a safe no-op.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/common/invrpc"
	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/order/internal/client"
	"github.com/kyungseok/reservation-core/services/order/internal/domain"
	"github.com/kyungseok/reservation-core/services/order/internal/repository"
)

// CreateOrderCommand is the input to CreateOrder (§6 POST /orders).
type CreateOrderCommand struct {
	CustomerID     string
	ProductID      string
	Quantity       int
	IdempotencyKey string
}

// CreateOrderResult carries the order and whether it was served from the
// idempotency cache rather than freshly created (§4.1 step 1).
type CreateOrderResult struct {
	Order  *domain.Order
	Cached bool
}

// OrderService is the Order Coordinator's domain API.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error)

	HandleStockReserved(ctx context.Context, evt events.StockReservedEvent) error
	HandleStockReleased(ctx context.Context, evt events.StockReleasedEvent) error
	HandleOrderVerified(ctx context.Context, evt events.OrderVerifiedEvent) error
	HandleVerificationComplete(ctx context.Context, evt events.VerificationCompleteEvent) error
}

// InventoryRPC is the subset of client.InventoryClient the order service
// depends on, narrowed to an interface so unit tests can substitute a fake
// rather than dial a real Inventory Custodian.
type InventoryRPC interface {
	ReserveStock(ctx context.Context, req *invrpc.ReserveStockRequest) (*invrpc.ReserveStockResponse, error)
	ReleaseStock(ctx context.Context, req *invrpc.ReleaseStockRequest) (*invrpc.ReleaseStockResponse, error)
}

var _ InventoryRPC = (*client.InventoryClient)(nil)

type orderService struct {
	repo      repository.OrderRepository
	inventory InventoryRPC
	publisher messaging.Publisher
	logger    *zap.Logger
}

// NewOrderService wires the Order DB, the Inventory gRPC client and the
// event bus into an OrderService.
func NewOrderService(repo repository.OrderRepository, inventory InventoryRPC, publisher messaging.Publisher, logger *zap.Logger) OrderService {
	return &orderService{repo: repo, inventory: inventory, publisher: publisher, logger: logger}
}

// CreateOrder implements spec §4.1 "Create order".
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	// Step 1: idempotency check before any side effect.
	if cmd.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err != nil && err != repository.ErrNotFound {
			return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to look up idempotency key", err)
		}
		if existing != nil {
			return &CreateOrderResult{Order: existing, Cached: true}, nil
		}
	}

	if cmd.CustomerID == "" || cmd.ProductID == "" || cmd.Quantity <= 0 {
		return nil, domainerrors.New(domainerrors.ErrCodeValidation, "customerId, productId and a positive quantity are required")
	}

	effectiveKey := cmd.IdempotencyKey
	if effectiveKey == "" {
		effectiveKey = uuid.New().String()
	}

	// Step 2: persist pending, with OrderCreated outboxed in the same
	// transaction (§9 design note).
	now := time.Now()
	order := &domain.Order{
		OrderID:        uuid.New().String(),
		CustomerID:     cmd.CustomerID,
		ProductID:      cmd.ProductID,
		Quantity:       cmd.Quantity,
		Status:         domain.OrderStatusPending,
		IdempotencyKey: effectiveKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.createPending(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created", zap.String("orderId", order.OrderID), zap.String("idempotencyKey", effectiveKey))

	// Step 4: synchronous reservation RPC with a hard 2s deadline (the
	// deadline itself lives in the InventoryClient).
	resp, rpcErr := s.inventory.ReserveStock(ctx, &invrpc.ReserveStockRequest{
		OrderID:        order.OrderID,
		ProductID:      order.ProductID,
		Quantity:       order.Quantity,
		IdempotencyKey: effectiveKey,
	})

	// Step 5: classify the outcome.
	var outcome domain.Outcome
	var reservationID, reason string
	switch {
	case rpcErr == nil && resp.Success:
		outcome = domain.OutcomeConfirmed
		reservationID = resp.ReservationID
	case rpcErr == nil && !resp.Success:
		outcome = domain.OutcomeFailed
		reason = resp.Message
		if reason == "" {
			reason = resp.Status.String()
		}
	case rpcErr != nil && domainerrors.IsTransportFailure(rpcErr):
		outcome = domain.OutcomePendingVerification
	default:
		// Any other error: the order stays pending; §4.3's event-driven
		// paths reconcile it if Inventory did in fact commit.
		return nil, rpcErr
	}

	updated, err := s.applyOutcome(ctx, order.OrderID, outcome, reservationID, reason)
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{Order: updated, Cached: false}, nil
}

func (s *orderService) createPending(ctx context.Context, order *domain.Order) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.repo.Create(ctx, tx, order); err != nil {
		return err
	}

	evt := events.OrderCreatedEvent{
		BaseEvent:      events.NewBaseEvent(events.EventOrderCreated, order.OrderID),
		OrderID:        order.OrderID,
		CustomerID:     order.CustomerID,
		ProductID:      order.ProductID,
		Quantity:       order.Quantity,
		IdempotencyKey: order.IdempotencyKey,
	}
	if err := s.outboxEvent(ctx, tx, events.EventOrderCreated, evt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit order creation", err)
	}
	return nil
}

// CancelOrder implements spec §4.1 "Cancel order".
func (s *orderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err == repository.ErrNotFound {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeOrderNotFound, "order not found", err)
	}
	if err != nil {
		return nil, err
	}

	if !order.CanCancel() {
		return nil, domainerrors.New(domainerrors.ErrCodeConflict, "order cannot be cancelled from its current status")
	}

	if order.ReservationID != "" {
		_, err := s.inventory.ReleaseStock(ctx, &invrpc.ReleaseStockRequest{
			OrderID:       order.OrderID,
			ReservationID: order.ReservationID,
			Reason:        "order cancelled",
		})
		if err != nil {
			// Release failure never blocks the cancel (§4.1): the
			// reservation may already be gone, or Inventory may be down.
			s.logger.Warn("releaseStock failed during cancel, proceeding anyway",
				zap.Error(err), zap.String("orderId", order.OrderID))
		}
	}

	return s.applyOutcome(ctx, orderID, domain.OutcomeCancelled, "", "cancelled by customer")
}

// GetOrder is a direct read.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err == repository.ErrNotFound {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeOrderNotFound, "order not found", err)
	}
	return order, err
}

// ListOrders is a direct read.
func (s *orderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, status, limit)
}

// HandleStockReserved implements spec §4.5's StockReserved case: confirm
// the order. domain.Apply's own idempotence already restricts this to
// orders currently in {pending, pending_verification} — those are the
// only non-terminal statuses, so no extra guard is needed here.
func (s *orderService) HandleStockReserved(ctx context.Context, evt events.StockReservedEvent) error {
	_, err := s.applyOutcome(ctx, evt.OrderID, domain.OutcomeConfirmed, evt.ReservationID, "")
	return err
}

// HandleStockReleased is informational only (§4.5): audited via logging,
// no status transition.
func (s *orderService) HandleStockReleased(ctx context.Context, evt events.StockReleasedEvent) error {
	s.logger.Info("stock released for order",
		zap.String("orderId", evt.OrderID),
		zap.String("reservationId", evt.ReservationID),
		zap.String("reason", evt.Reason))
	return nil
}

// HandleOrderVerified implements spec §4.5's OrderVerified case: applies
// only when the order is currently pending_verification.
func (s *orderService) HandleOrderVerified(ctx context.Context, evt events.OrderVerifiedEvent) error {
	outcome := domain.OutcomeFailed
	reason := "verification found no reservation"
	if evt.Status == "confirmed" {
		outcome = domain.OutcomeConfirmed
		reason = ""
	}
	return s.applyVerificationOutcome(ctx, evt.OrderID, outcome, evt.ReservationID, reason)
}

// HandleVerificationComplete accepts the legacy event-name variant (§9):
// same semantics as HandleOrderVerified, keyed off evt.Verified instead
// of a status string.
func (s *orderService) HandleVerificationComplete(ctx context.Context, evt events.VerificationCompleteEvent) error {
	outcome := domain.OutcomeFailed
	reason := evt.Reason
	if reason == "" {
		reason = "verification did not confirm the reservation"
	}
	if evt.Verified {
		outcome = domain.OutcomeConfirmed
		reason = ""
	}
	return s.applyVerificationOutcome(ctx, evt.OrderID, outcome, evt.ReservationID, reason)
}

// applyOutcome locks the order row, runs it through domain.Apply, and
// persists+outboxes the transition if one occurred. A missing order is
// treated as an orphan event and acked silently (§4.5).
func (s *orderService) applyOutcome(ctx context.Context, orderID string, outcome domain.Outcome, reservationID, reason string) (*domain.Order, error) {
	return s.transitionOrder(ctx, orderID, outcome, reservationID, reason, nil)
}

// applyVerificationOutcome is applyOutcome restricted to orders currently
// in pending_verification (§4.5 "terminal-state safety" — here stricter
// than terminal: any status other than pending_verification is skipped).
func (s *orderService) applyVerificationOutcome(ctx context.Context, orderID string, outcome domain.Outcome, reservationID, reason string) error {
	_, err := s.transitionOrder(ctx, orderID, outcome, reservationID, reason, func(current domain.OrderStatus) bool {
		return current == domain.OrderStatusPendingVerification
	})
	return err
}

func (s *orderService) transitionOrder(ctx context.Context, orderID string, outcome domain.Outcome, reservationID, reason string, guard func(domain.OrderStatus) bool) (*domain.Order, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	order, err := s.repo.LockForUpdate(ctx, tx, orderID)
	if err == repository.ErrNotFound {
		if err := tx.Commit(); err != nil {
			return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit orphan-event ack", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if guard != nil && !guard(order.Status) {
		if err := tx.Commit(); err != nil {
			return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit skipped transition", err)
		}
		return order, nil
	}

	next, changed := domain.Apply(order.Status, outcome)
	if !changed {
		if err := tx.Commit(); err != nil {
			return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit no-op transition", err)
		}
		return order, nil
	}

	order.Status = next
	if reservationID != "" {
		order.ReservationID = reservationID
	}
	if reason != "" {
		order.ErrorMessage = reason
	}
	if next.IsTerminal() {
		completedAt := time.Now()
		order.CompletedAt = &completedAt
	}

	if err := s.repo.Update(ctx, tx, order); err != nil {
		return nil, err
	}

	eventType, payload := s.transitionEvent(order, next, reason)
	if err := s.outboxEvent(ctx, tx, eventType, payload); err != nil {
		return nil, err
	}

	if next == domain.OrderStatusPendingVerification {
		// The VerifyOrder enqueue is this protocol's liveness guarantee
		// (§4.3/§9): it must be at-least-once, not best-effort, so it rides
		// the same outbox/transaction as the status transition rather than
		// a direct fire-and-forget publish.
		verifyMsg := events.VerifyOrderMessage{
			OrderID:             order.OrderID,
			ProductID:           order.ProductID,
			Quantity:            order.Quantity,
			IdempotencyKey:      order.IdempotencyKey,
			OriginalRequestTime: order.CreatedAt,
		}
		if err := s.outboxEvent(ctx, tx, events.EventVerifyOrder, verifyMsg); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit order transition", err)
	}

	s.logger.Info("order transitioned",
		zap.String("orderId", order.OrderID),
		zap.String("status", string(order.Status)))

	return order, nil
}

func (s *orderService) transitionEvent(order *domain.Order, next domain.OrderStatus, reason string) (events.EventType, interface{}) {
	switch next {
	case domain.OrderStatusConfirmed:
		return events.EventOrderConfirmed, events.OrderConfirmedEvent{
			BaseEvent:     events.NewBaseEvent(events.EventOrderConfirmed, order.OrderID),
			OrderID:       order.OrderID,
			ReservationID: order.ReservationID,
		}
	case domain.OrderStatusFailed:
		return events.EventOrderFailed, events.OrderFailedEvent{
			BaseEvent: events.NewBaseEvent(events.EventOrderFailed, order.OrderID),
			OrderID:   order.OrderID,
			Reason:    reason,
		}
	case domain.OrderStatusPendingVerification:
		return events.EventOrderPendingVerification, events.OrderPendingVerificationEvent{
			BaseEvent: events.NewBaseEvent(events.EventOrderPendingVerification, order.OrderID),
			OrderID:   order.OrderID,
		}
	default: // domain.OrderStatusCancelled
		return events.EventOrderCancelled, events.OrderCancelledEvent{
			BaseEvent: events.NewBaseEvent(events.EventOrderCancelled, order.OrderID),
			OrderID:   order.OrderID,
			Reason:    reason,
		}
	}
}

func (s *orderService) outboxEvent(ctx context.Context, tx *sql.Tx, eventType events.EventType, evt interface{}) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeSerializationError, "failed to marshal event", err)
	}
	return s.repo.InsertOutboxEvent(ctx, tx, string(eventType), payload)
}
