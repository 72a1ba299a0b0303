// Package repository is the Order Coordinator's Postgres access layer:
// order CRUD plus the outbox the coordinator drains to the bus (§9 design
// note).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/services/order/internal/domain"
)

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("not found")

const pqUniqueViolation = "23505"

// OrderRepository is the transactional gateway onto the Order DB.
type OrderRepository interface {
	Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	List(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error)

	BeginTx(ctx context.Context) (*sql.Tx, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Order, error)
	Update(ctx context.Context, tx *sql.Tx, order *domain.Order) error

	InsertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, payload []byte) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// OutboxRow is one pending row in the order outbox.
type OutboxRow struct {
	ID        int64
	EventType string
	Payload   []byte
}

type postgresRepository struct {
	db *sql.DB
}

// NewOrderRepository builds a Postgres-backed OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, customer_id, product_id, quantity, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.OrderID, order.CustomerID, order.ProductID, order.Quantity, order.Status,
		nullableString(order.IdempotencyKey), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domainerrors.Wrap(domainerrors.ErrCodeDuplicateKey, "order with this idempotency key already exists", err)
		}
		return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to create order", err)
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `
		SELECT order_id, customer_id, product_id, quantity, status, idempotency_key, reservation_id,
		       error_message, created_at, updated_at, completed_at
		FROM orders WHERE order_id = $1
	`, orderID))
}

func (r *postgresRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `
		SELECT order_id, customer_id, product_id, quantity, status, idempotency_key, reservation_id,
		       error_message, created_at, updated_at, completed_at
		FROM orders WHERE idempotency_key = $1
	`, key))
}

func (r *postgresRepository) List(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT order_id, customer_id, product_id, quantity, status, idempotency_key, reservation_id,
			       error_message, created_at, updated_at, completed_at
			FROM orders ORDER BY created_at DESC LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT order_id, customer_id, product_id, quantity, status, idempotency_key, reservation_id,
			       error_message, created_at, updated_at, completed_at
			FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2
		`, status, limit)
	}
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to list orders", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (r *postgresRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *postgresRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, `
		SELECT order_id, customer_id, product_id, quantity, status, idempotency_key, reservation_id,
		       error_message, created_at, updated_at, completed_at
		FROM orders WHERE order_id = $1 FOR UPDATE
	`, orderID))
}

func (r *postgresRepository) Update(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, reservation_id = $2, error_message = $3, updated_at = NOW(), completed_at = $4
		WHERE order_id = $5
	`, order.Status, nullableString(order.ReservationID), nullableString(order.ErrorMessage),
		order.CompletedAt, order.OrderID)
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to update order", err)
	}
	return nil
}

func (r *postgresRepository) InsertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_outbox (event_type, payload, status, created_at)
		VALUES ($1, $2, 'pending', NOW())
	`, eventType, payload)
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to insert outbox event", err)
	}
	return nil
}

func (r *postgresRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, payload FROM order_outbox
		WHERE status = 'pending' ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to fetch pending outbox rows", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.EventType, &row.Payload); err != nil {
			return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to scan outbox row", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRepository) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET status = 'sent', sent_at = NOW() WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return order, err
}

func scanOrderRow(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var idempotencyKey, reservationID, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&order.OrderID, &order.CustomerID, &order.ProductID, &order.Quantity, &order.Status,
		&idempotencyKey, &reservationID, &errorMessage, &order.CreatedAt, &order.UpdatedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, domainerrors.Wrap(domainerrors.ErrCodeDatabaseError, "failed to scan order", err)
	}

	order.IdempotencyKey = idempotencyKey.String
	order.ReservationID = reservationID.String
	order.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		order.CompletedAt = &t
	}
	return &order, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
