// Package repository is the Inventory Custodian's Postgres access layer:
// product row-locking, reservation bookkeeping, the stock audit log, and
// the outbox, all driven through database/sql + lib/pq the way the
// teacher's stock_reservations/outbox_events tables are (see
// services/inventory/internal/service for the transactions that drive it).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/services/inventory/internal/domain"
)

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("not found")

// pqSerializationFailure is the SQLSTATE Postgres raises when a
// serializable transaction cannot be placed in a valid order; the caller
// classifies it as TransientInternal and retries once (§7).
const pqSerializationFailure = "40001"

// pqUniqueViolation is the SQLSTATE for a unique-constraint conflict,
// raised here by the idempotency_key unique index on reservations.
const pqUniqueViolation = "23505"

// InventoryRepository is the transactional gateway onto the Inventory DB.
type InventoryRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	FindReservationByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (*domain.Reservation, error)
	FindActiveReservationByOrderID(ctx context.Context, q Querier, orderID string) (*domain.Reservation, error)
	LockReservationByOrderID(ctx context.Context, tx *sql.Tx, reservationID, orderID string) (*domain.Reservation, error)

	LockProduct(ctx context.Context, tx *sql.Tx, productID string) (*domain.Product, error)
	FindProduct(ctx context.Context, productID string) (*domain.Product, error)
	UpdateProductStock(ctx context.Context, tx *sql.Tx, productID string, newStock int) error

	InsertReservation(ctx context.Context, tx *sql.Tx, res *domain.Reservation) error
	MarkReservationReleased(ctx context.Context, tx *sql.Tx, reservationID string) error

	InsertAuditLog(ctx context.Context, tx *sql.Tx, log *domain.AuditLog) error

	InsertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, payload []byte) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting read paths
// that do not need a lock run outside a transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// OutboxRow is one pending row in the inventory outbox.
type OutboxRow struct {
	ID        int64
	EventType string
	Payload   []byte
}

type postgresRepository struct {
	db *sql.DB
}

// NewInventoryRepository builds a Postgres-backed InventoryRepository.
func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *postgresRepository) FindReservationByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (*domain.Reservation, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT reservation_id, order_id, product_id, quantity, status, idempotency_key, created_at, updated_at
		FROM reservations WHERE idempotency_key = $1
	`, key)
	return scanReservation(row)
}

func (r *postgresRepository) FindActiveReservationByOrderID(ctx context.Context, q Querier, orderID string) (*domain.Reservation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT reservation_id, order_id, product_id, quantity, status, idempotency_key, created_at, updated_at
		FROM reservations WHERE order_id = $1 AND status = 'active'
	`, orderID)
	return scanReservation(row)
}

func (r *postgresRepository) LockReservationByOrderID(ctx context.Context, tx *sql.Tx, reservationID, orderID string) (*domain.Reservation, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT reservation_id, order_id, product_id, quantity, status, idempotency_key, created_at, updated_at
		FROM reservations WHERE reservation_id = $1 AND order_id = $2 FOR UPDATE
	`, reservationID, orderID)
	return scanReservation(row)
}

func scanReservation(row *sql.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ReservationID, &res.OrderID, &res.ProductID, &res.Quantity,
		&res.Status, &res.IdempotencyKey, &res.CreatedAt, &res.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPQError(err, "failed to scan reservation")
	}
	return &res, nil
}

func (r *postgresRepository) LockProduct(ctx context.Context, tx *sql.Tx, productID string) (*domain.Product, error) {
	var p domain.Product
	err := tx.QueryRowContext(ctx, `
		SELECT product_id, name, stock, low_stock_threshold FROM products WHERE product_id = $1 FOR UPDATE
	`, productID).Scan(&p.ProductID, &p.Name, &p.Stock, &p.LowStockThreshold)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPQError(err, "failed to lock product")
	}
	return &p, nil
}

func (r *postgresRepository) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, name, stock, low_stock_threshold FROM products WHERE product_id = $1
	`, productID).Scan(&p.ProductID, &p.Name, &p.Stock, &p.LowStockThreshold)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPQError(err, "failed to find product")
	}
	return &p, nil
}

func (r *postgresRepository) UpdateProductStock(ctx context.Context, tx *sql.Tx, productID string, newStock int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = $1, updated_at = NOW() WHERE product_id = $2
	`, newStock, productID)
	if err != nil {
		return classifyPQError(err, "failed to update product stock")
	}
	return nil
}

func (r *postgresRepository) InsertReservation(ctx context.Context, tx *sql.Tx, res *domain.Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (reservation_id, order_id, product_id, quantity, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, res.ReservationID, res.OrderID, res.ProductID, res.Quantity, res.Status, res.IdempotencyKey)
	if err != nil {
		return classifyPQError(err, "failed to insert reservation")
	}
	return nil
}

func (r *postgresRepository) MarkReservationReleased(ctx context.Context, tx *sql.Tx, reservationID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = 'released', updated_at = NOW() WHERE reservation_id = $1
	`, reservationID)
	if err != nil {
		return classifyPQError(err, "failed to release reservation")
	}
	return nil
}

func (r *postgresRepository) InsertAuditLog(ctx context.Context, tx *sql.Tx, log *domain.AuditLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_audit_log
			(product_id, order_id, reservation_id, previous_stock, new_stock, quantity_change, operation, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, log.ProductID, log.OrderID, log.ReservationID, log.PreviousStock, log.NewStock,
		log.QuantityChange, log.Operation, log.Reason)
	if err != nil {
		return classifyPQError(err, "failed to insert audit log")
	}
	return nil
}

func (r *postgresRepository) InsertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_outbox (event_type, payload, status, created_at)
		VALUES ($1, $2, 'pending', NOW())
	`, eventType, payload)
	if err != nil {
		return classifyPQError(err, "failed to insert outbox event")
	}
	return nil
}

func (r *postgresRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, payload FROM inventory_outbox
		WHERE status = 'pending' ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, classifyPQError(err, "failed to fetch pending outbox rows")
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.EventType, &row.Payload); err != nil {
			return nil, classifyPQError(err, "failed to scan outbox row")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRepository) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inventory_outbox SET status = 'sent', sent_at = NOW() WHERE id = $1
	`, id)
	return err
}

// classifyPQError maps a lib/pq error into the protocol's error taxonomy:
// a serialization failure is TransientInternal (retryable once in-handler,
// §7); a unique violation is Conflict (the idempotency_key race §4.2 step
// 1's read-side check can lose); anything else is a DatabaseError.
func classifyPQError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure:
			return domainerrors.Wrap(domainerrors.ErrCodeTransientInternal, message, err)
		case pqUniqueViolation:
			return domainerrors.Wrap(domainerrors.ErrCodeConflict, message, err)
		}
	}
	return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, message, err)
}
