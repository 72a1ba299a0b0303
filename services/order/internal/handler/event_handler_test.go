package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/common/messaging"
)

// fakeIdemStore is an in-memory idempotency.Store.
type fakeIdemStore struct {
	reserved map[string]bool
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{reserved: make(map[string]bool)}
}

func (f *fakeIdemStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.reserved[key] {
		return false, nil
	}
	f.reserved[key] = true
	return true, nil
}

func (f *fakeIdemStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return f.reserved[key], nil
}

func (f *fakeIdemStore) Release(ctx context.Context, key string) error {
	delete(f.reserved, key)
	return nil
}

func marshalEvent(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload
}

func TestEventHandler_DispatchesStockReservedToHandler(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewEventHandler(svc, newFakeIdemStore(), zap.NewNop())

	evt := events.StockReservedEvent{
		BaseEvent: events.NewBaseEvent(events.EventStockReserved, "order-1"),
		OrderID:   "order-1", ReservationID: "res-1", ProductID: "widget", Quantity: 2,
	}
	msg := &messaging.Message{Topic: messaging.TopicInventoryEvents, Value: marshalEvent(t, evt)}

	err := h.HandleMessage(context.Background(), msg)

	require.NoError(t, err)
	require.Len(t, svc.stockReserved, 1)
	assert.Equal(t, "order-1", svc.stockReserved[0].OrderID)
}

func TestEventHandler_SkipsAlreadyProcessedMessages(t *testing.T) {
	svc := &fakeOrderService{}
	idem := newFakeIdemStore()
	h := NewEventHandler(svc, idem, zap.NewNop())

	evt := events.StockReservedEvent{BaseEvent: events.NewBaseEvent(events.EventStockReserved, "order-1"), OrderID: "order-1"}
	msg := &messaging.Message{Value: marshalEvent(t, evt)}

	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	assert.Len(t, svc.stockReserved, 1, "second delivery of an already-processed event must be a no-op")
}

func TestEventHandler_UnknownEventTypeIsAckedSilently(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewEventHandler(svc, newFakeIdemStore(), zap.NewNop())

	msg := &messaging.Message{Value: marshalEvent(t, map[string]string{"eventId": "e1", "eventType": "something.unrecognized.v1"})}

	err := h.HandleMessage(context.Background(), msg)
	assert.NoError(t, err)
}

func TestEventHandler_MalformedPayloadIsAckedSilently(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewEventHandler(svc, newFakeIdemStore(), zap.NewNop())

	msg := &messaging.Message{Value: []byte("not json")}

	err := h.HandleMessage(context.Background(), msg)
	assert.NoError(t, err)
}

func TestEventHandler_RetryableFailureLeavesMessageUnacked(t *testing.T) {
	svc := &fakeOrderService{errToReturn: domainerrors.New(domainerrors.ErrCodeDatabaseError, "connection reset")}
	idem := newFakeIdemStore()
	h := NewEventHandler(svc, idem, zap.NewNop())

	evt := events.StockReservedEvent{BaseEvent: events.NewBaseEvent(events.EventStockReserved, "order-1"), OrderID: "order-1"}
	msg := &messaging.Message{Value: marshalEvent(t, evt)}

	err := h.HandleMessage(context.Background(), msg)

	assert.Error(t, err)
	processed, _ := idem.IsProcessed(context.Background(), evt.EventID)
	assert.False(t, processed, "a retryable failure must not mark the message as processed")
}

func TestEventHandler_NonRetryableFailureIsAckedSilently(t *testing.T) {
	svc := &fakeOrderService{errToReturn: domainerrors.New(domainerrors.ErrCodeValidation, "bad payload")}
	h := NewEventHandler(svc, newFakeIdemStore(), zap.NewNop())

	evt := events.StockReservedEvent{BaseEvent: events.NewBaseEvent(events.EventStockReserved, "order-1"), OrderID: "order-1"}
	msg := &messaging.Message{Value: marshalEvent(t, evt)}

	err := h.HandleMessage(context.Background(), msg)
	assert.NoError(t, err)
}

func TestEventHandler_LowStockAlertIsInformationalOnly(t *testing.T) {
	svc := &fakeOrderService{}
	h := NewEventHandler(svc, newFakeIdemStore(), zap.NewNop())

	evt := events.LowStockAlertEvent{BaseEvent: events.NewBaseEvent(events.EventLowStockAlert, "widget"), ProductID: "widget"}
	msg := &messaging.Message{Value: marshalEvent(t, evt)}

	err := h.HandleMessage(context.Background(), msg)
	assert.NoError(t, err)
}
