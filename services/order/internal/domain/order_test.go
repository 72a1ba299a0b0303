package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_TerminalIsAbsorbing(t *testing.T) {
	// OutcomeCancelled is excluded here: CanCancel allows cancelling a
	// confirmed order (§4.1), so it is not absorbed by every terminal
	// status the way the other outcomes are — see
	// TestApply_CancelledTransitionsConfirmedToCancelled below.
	for _, terminal := range []OrderStatus{OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled} {
		for _, outcome := range []Outcome{OutcomeConfirmed, OutcomeFailed, OutcomePendingVerification} {
			next, changed := Apply(terminal, outcome)
			assert.Equal(t, terminal, next)
			assert.False(t, changed, "terminal state %s must absorb outcome %s", terminal, outcome)
		}
	}
}

func TestApply_CancelledTransitionsConfirmedToCancelled(t *testing.T) {
	// CanCancel (§4.1, boundary scenario 6) allows cancelling a confirmed
	// order; the terminal-absorbing rule exists for the §9 confirmation
	// race and must not swallow this transition.
	next, changed := Apply(OrderStatusConfirmed, OutcomeCancelled)
	assert.Equal(t, OrderStatusCancelled, next)
	assert.True(t, changed)
}

func TestApply_CancelledIsAbsorbedByOtherTerminalStatuses(t *testing.T) {
	// CanCancel excludes failed and cancelled, so OutcomeCancelled must
	// still no-op from those two.
	for _, terminal := range []OrderStatus{OrderStatusFailed, OrderStatusCancelled} {
		next, changed := Apply(terminal, OutcomeCancelled)
		assert.Equal(t, terminal, next)
		assert.False(t, changed, "terminal state %s must absorb OutcomeCancelled", terminal)
	}
}

func TestApply_CancelledFromNonTerminalStatuses(t *testing.T) {
	for _, current := range []OrderStatus{OrderStatusPending, OrderStatusPendingVerification} {
		next, changed := Apply(current, OutcomeCancelled)
		assert.Equal(t, OrderStatusCancelled, next)
		assert.True(t, changed, "status %s", current)
	}
}

func TestApply_PendingConfirmedByRPCReply(t *testing.T) {
	next, changed := Apply(OrderStatusPending, OutcomeConfirmed)
	assert.Equal(t, OrderStatusConfirmed, next)
	assert.True(t, changed)
}

func TestApply_PendingVerificationConfirmedByEventConsumer(t *testing.T) {
	// Exercises the race from §9: the RPC reply already pushed the order
	// into pending_verification, and the event consumer later confirms it.
	next, changed := Apply(OrderStatusPendingVerification, OutcomeConfirmed)
	assert.Equal(t, OrderStatusConfirmed, next)
	assert.True(t, changed)
}

func TestApply_AlreadyConfirmedIsNoOp(t *testing.T) {
	// Whichever path (RPC reply or event consumer) wins the race, the
	// loser's later call on the same outcome must be a no-op, not an error.
	next, changed := Apply(OrderStatusConfirmed, OutcomeConfirmed)
	assert.Equal(t, OrderStatusConfirmed, next)
	assert.False(t, changed)
}

func TestApply_PendingToPendingVerificationIsOnlyRealTransitionOnce(t *testing.T) {
	next, changed := Apply(OrderStatusPending, OutcomePendingVerification)
	assert.Equal(t, OrderStatusPendingVerification, next)
	assert.True(t, changed)

	next, changed = Apply(OrderStatusPendingVerification, OutcomePendingVerification)
	assert.Equal(t, OrderStatusPendingVerification, next)
	assert.False(t, changed)
}

func TestApply_FailedFromEitherNonTerminalStatus(t *testing.T) {
	for _, current := range []OrderStatus{OrderStatusPending, OrderStatusPendingVerification} {
		next, changed := Apply(current, OutcomeFailed)
		assert.Equal(t, OrderStatusFailed, next)
		assert.True(t, changed)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusConfirmed.IsTerminal())
	assert.True(t, OrderStatusFailed.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusPendingVerification.IsTerminal())
}

func TestOrder_CanCancel(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, true},
		{OrderStatusPendingVerification, true},
		{OrderStatusConfirmed, true},
		{OrderStatusFailed, false},
		{OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		order := &Order{Status: tc.status}
		assert.Equal(t, tc.want, order.CanCancel(), "status %s", tc.status)
	}
}
