// Package domain holds the Order Coordinator's Order entity and the
// shared state-transition function both the synchronous RPC-reply path
// and the asynchronous event-consumer path call into (spec §9 design
// note), so the cyclic dependency between the two confirmation sources
// resolves to one idempotent rule instead of two independent writers.
package domain

import "time"

// OrderStatus is the closed set of states an Order passes through (§3).
type OrderStatus string

const (
	OrderStatusPending             OrderStatus = "pending"
	OrderStatusPendingVerification OrderStatus = "pending_verification"
	OrderStatusConfirmed           OrderStatus = "confirmed"
	OrderStatusFailed              OrderStatus = "failed"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

// IsTerminal reports whether status is one of the absorbing terminal
// states; terminal status is never overwritten (§8 invariant).
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is keyed by OrderID (an opaque identifier, not an auto-increment
// integer, since §3 calls it an "opaque 128-bit identifier").
type Order struct {
	OrderID        string
	CustomerID     string
	ProductID      string
	Quantity       int
	Status         OrderStatus
	IdempotencyKey string
	ReservationID  string // empty until confirmed
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// Outcome is the event apply() reacts to: the result of either a
// reservation RPC reply or an inventory-events message.
type Outcome string

const (
	OutcomeConfirmed           Outcome = "confirmed"
	OutcomeFailed              Outcome = "failed"
	OutcomePendingVerification Outcome = "pending_verification"
	OutcomeCancelled           Outcome = "cancelled"
)

// Apply computes the order's next status given its current status and an
// incoming outcome. It is idempotent on {pending, pending_verification} →
// confirmed/failed and a no-op once the order is already terminal,
// regardless of which path (RPC reply or event consumer) calls it first.
// changed reports whether the returned status differs from current, so
// callers only persist and publish on a genuine transition.
//
// OutcomeCancelled is checked before the terminal guard: cancellation is
// the one outcome the terminal-absorbing rule must not swallow, since
// CanCancel allows it from `confirmed` (§4.1) and boundary scenario 6
// requires a confirmed order to still become cancelled. It stays a no-op
// from `failed`/`cancelled` (CanCancel excludes both), so the terminal
// guard still applies to every outcome it was meant for (§9's
// confirmation race).
func Apply(current OrderStatus, outcome Outcome) (next OrderStatus, changed bool) {
	if outcome == OutcomeCancelled {
		if current == OrderStatusFailed || current == OrderStatusCancelled {
			return current, false
		}
		return OrderStatusCancelled, true
	}

	if current.IsTerminal() {
		return current, false
	}

	switch outcome {
	case OutcomeConfirmed:
		if current == OrderStatusConfirmed {
			return current, false
		}
		return OrderStatusConfirmed, true
	case OutcomeFailed:
		return OrderStatusFailed, true
	case OutcomePendingVerification:
		if current == OrderStatusPendingVerification {
			return current, false
		}
		return OrderStatusPendingVerification, true
	default:
		return current, false
	}
}

// CanCancel reports whether the order may be cancelled from its current
// status (§4.1 "Cancel order").
func (o *Order) CanCancel() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusPendingVerification, OrderStatusConfirmed:
		return true
	default:
		return false
	}
}
