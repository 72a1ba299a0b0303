// Package service implements the Inventory Custodian's business logic:
// transactional reserveStock/releaseStock (spec §4.2/§4.4) exposed over
// the invrpc.InventoryServiceServer contract, plus the building blocks the
// VerifyOrder handler (§4.3) reuses directly.
package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"encoding/json"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/common/invrpc"
	"github.com/kyungseok/reservation-core/common/retry"
	"github.com/kyungseok/reservation-core/services/inventory/internal/chaos"
	"github.com/kyungseok/reservation-core/services/inventory/internal/domain"
	"github.com/kyungseok/reservation-core/services/inventory/internal/repository"
)

// InventoryService is the Inventory Custodian's gRPC-facing API.
type InventoryService struct {
	repo   repository.InventoryRepository
	chaos  *chaos.Injector
	logger *zap.Logger
}

// NewInventoryService wires repo and chaos into an InventoryService. Every
// event this package would publish is instead written to inventory_outbox
// in the same transaction as the mutation that warrants it (§9 design
// note); the OutboxWorker is the only thing that actually talks to the bus.
func NewInventoryService(repo repository.InventoryRepository, chaosInjector *chaos.Injector, logger *zap.Logger) *InventoryService {
	return &InventoryService{repo: repo, chaos: chaosInjector, logger: logger}
}

var _ invrpc.InventoryServiceServer = (*InventoryService)(nil)

// ReserveStock implements spec §4.2, wrapped in a single in-handler retry
// (§7): the transaction is run once more after any error it returns, a
// TransientInternal serialization failure or deadlock among them. Domain
// failures come back as a response, not an error, and are not retried.
func (s *InventoryService) ReserveStock(ctx context.Context, req *invrpc.ReserveStockRequest) (*invrpc.ReserveStockResponse, error) {
	if s.chaos != nil {
		s.chaos.GremlinDelay(ctx)
	}

	resp, err := retry.DoWithResult(ctx, retry.TransientConfig(), s.logger, func() (*invrpc.ReserveStockResponse, error) {
		return s.reserveStockOnce(ctx, req)
	})

	// Only a successful response follows a commit (a new reservation, or
	// the already_exists short-circuit).
	if s.chaos != nil && err == nil && resp.Success {
		s.chaos.SchrodingerCrashAfterCommit()
	}

	return resp, err
}

func (s *InventoryService) reserveStockOnce(ctx context.Context, req *invrpc.ReserveStockRequest) (*invrpc.ReserveStockResponse, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	// Step 1: idempotent short-circuit.
	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindReservationByIdempotencyKey(ctx, tx, req.IdempotencyKey)
		if err != nil && err != repository.ErrNotFound {
			return nil, err
		}
		if existing != nil {
			if err := tx.Commit(); err != nil {
				return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit idempotent read", err)
			}
			return &invrpc.ReserveStockResponse{
				Success:       true,
				Status:        invrpc.ReserveStatusAlreadyExists,
				ReservationID: existing.ReservationID,
			}, nil
		}
	}

	// Step 2: lock the product row.
	product, err := s.repo.LockProduct(ctx, tx, req.ProductID)
	if err == repository.ErrNotFound {
		return &invrpc.ReserveStockResponse{
			Success: false,
			Status:  invrpc.ReserveStatusProductNotFound,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	// Step 3: verify stock.
	if product.Stock < req.Quantity {
		return &invrpc.ReserveStockResponse{
			Success:        false,
			Status:         invrpc.ReserveStatusInsufficientStock,
			RemainingStock: product.Stock,
			Message:        "Insufficient stock",
		}, nil
	}

	// Step 4: deduct.
	newStock := product.Stock - req.Quantity
	if err := s.repo.UpdateProductStock(ctx, tx, req.ProductID, newStock); err != nil {
		return nil, err
	}

	// Step 5: insert reservation.
	reservationID := uuid.New().String()
	reservation := &domain.Reservation{
		ReservationID:  reservationID,
		OrderID:        req.OrderID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		Status:         domain.ReservationActive,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := s.repo.InsertReservation(ctx, tx, reservation); err != nil {
		return nil, err
	}

	// Step 6: audit.
	if err := s.repo.InsertAuditLog(ctx, tx, &domain.AuditLog{
		ProductID:      req.ProductID,
		OrderID:        req.OrderID,
		ReservationID:  reservationID,
		PreviousStock:  product.Stock,
		NewStock:       newStock,
		QuantityChange: -req.Quantity,
		Operation:      domain.AuditOperationReserve,
	}); err != nil {
		return nil, err
	}

	// Step 6b: outbox the post-commit publishes in the same transaction
	// (§9 design note), so StockReserved/LowStockAlert never go missing
	// even if the process dies between commit and publish.
	if err := s.outboxStockReserved(ctx, tx, req.OrderID, reservationID, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}
	if newStock <= product.LowStockThreshold {
		if err := s.outboxLowStockAlert(ctx, tx, req.ProductID, newStock, product.LowStockThreshold); err != nil {
			return nil, err
		}
	}

	// Step 7: commit.
	if err := tx.Commit(); err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit reservation", err)
	}

	s.logger.Info("stock reserved",
		zap.String("orderId", req.OrderID),
		zap.String("reservationId", reservationID),
		zap.Int("remainingStock", newStock))

	return &invrpc.ReserveStockResponse{
		Success:        true,
		Status:         invrpc.ReserveStatusConfirmed,
		ReservationID:  reservationID,
		RemainingStock: newStock,
	}, nil
}

// ReleaseStock implements spec §4.4.
func (s *InventoryService) ReleaseStock(ctx context.Context, req *invrpc.ReleaseStockRequest) (*invrpc.ReleaseStockResponse, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	reservation, err := s.repo.LockReservationByOrderID(ctx, tx, req.ReservationID, req.OrderID)
	if err == repository.ErrNotFound {
		return &invrpc.ReleaseStockResponse{Success: false, Message: "reservation not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	if reservation.Status != domain.ReservationActive {
		return &invrpc.ReleaseStockResponse{Success: false, Message: "already " + string(reservation.Status)}, nil
	}

	product, err := s.repo.LockProduct(ctx, tx, reservation.ProductID)
	if err != nil {
		return nil, err
	}

	newStock := product.Stock + reservation.Quantity
	if err := s.repo.UpdateProductStock(ctx, tx, reservation.ProductID, newStock); err != nil {
		return nil, err
	}

	if err := s.repo.MarkReservationReleased(ctx, tx, reservation.ReservationID); err != nil {
		return nil, err
	}

	if err := s.repo.InsertAuditLog(ctx, tx, &domain.AuditLog{
		ProductID:      reservation.ProductID,
		OrderID:        reservation.OrderID,
		ReservationID:  reservation.ReservationID,
		PreviousStock:  product.Stock,
		NewStock:       newStock,
		QuantityChange: reservation.Quantity,
		Operation:      domain.AuditOperationRelease,
		Reason:         req.Reason,
	}); err != nil {
		return nil, err
	}

	if err := s.outboxStockReleased(ctx, tx, reservation, req.Reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to commit release", err)
	}

	s.logger.Info("stock released",
		zap.String("orderId", req.OrderID),
		zap.String("reservationId", reservation.ReservationID))

	return &invrpc.ReleaseStockResponse{Success: true}, nil
}

// CheckStock is a direct, unlocked read.
func (s *InventoryService) CheckStock(ctx context.Context, req *invrpc.CheckStockRequest) (*invrpc.CheckStockResponse, error) {
	product, err := s.repo.FindProduct(ctx, req.ProductID)
	if err == repository.ErrNotFound {
		return &invrpc.CheckStockResponse{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &invrpc.CheckStockResponse{Found: true, Stock: product.Stock, Name: product.Name}, nil
}

// HealthCheck reports healthy iff the owned database is reachable (§9
// open question).
func (s *InventoryService) HealthCheck(ctx context.Context, _ *invrpc.HealthCheckRequest) (*invrpc.HealthCheckResponse, error) {
	if _, err := s.repo.FindProduct(ctx, "__healthcheck__"); err != nil && err != repository.ErrNotFound {
		return &invrpc.HealthCheckResponse{Healthy: false, Message: err.Error()}, nil
	}
	return &invrpc.HealthCheckResponse{Healthy: true}, nil
}

// ReservationByOrderID exposes the idempotent finder used by the
// VerifyOrder handler's step 1 (§4.3) without going through a transaction.
func (s *InventoryService) ReservationByOrderID(ctx context.Context, db *sql.DB, orderID string) (*domain.Reservation, error) {
	res, err := s.repo.FindActiveReservationByOrderID(ctx, db, orderID)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	return res, err
}

func (s *InventoryService) outboxStockReserved(ctx context.Context, tx *sql.Tx, orderID, reservationID, productID string, quantity int) error {
	evt := events.StockReservedEvent{
		BaseEvent:     events.NewBaseEvent(events.EventStockReserved, orderID),
		OrderID:       orderID,
		ReservationID: reservationID,
		ProductID:     productID,
		Quantity:      quantity,
	}
	return s.insertOutboxEvent(ctx, tx, events.EventStockReserved, evt)
}

func (s *InventoryService) outboxStockReleased(ctx context.Context, tx *sql.Tx, reservation *domain.Reservation, reason string) error {
	evt := events.StockReleasedEvent{
		BaseEvent:     events.NewBaseEvent(events.EventStockReleased, reservation.OrderID),
		OrderID:       reservation.OrderID,
		ReservationID: reservation.ReservationID,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		Reason:        reason,
	}
	return s.insertOutboxEvent(ctx, tx, events.EventStockReleased, evt)
}

func (s *InventoryService) outboxLowStockAlert(ctx context.Context, tx *sql.Tx, productID string, remaining, threshold int) error {
	evt := events.LowStockAlertEvent{
		BaseEvent:      events.NewBaseEvent(events.EventLowStockAlert, productID),
		ProductID:      productID,
		RemainingStock: remaining,
		Threshold:      threshold,
	}
	return s.insertOutboxEvent(ctx, tx, events.EventLowStockAlert, evt)
}

func (s *InventoryService) insertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType events.EventType, evt interface{}) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeSerializationError, "failed to marshal event", err)
	}
	return s.repo.InsertOutboxEvent(ctx, tx, string(eventType), payload)
}
