package handler

import (
	"context"

	"github.com/kyungseok/reservation-core/common/events"
	"github.com/kyungseok/reservation-core/services/order/internal/domain"
	"github.com/kyungseok/reservation-core/services/order/internal/service"
)

// fakeOrderService is a hand-written test double for service.OrderService,
// shared by the HTTP and event-consumer handler tests.
type fakeOrderService struct {
	createResult *service.CreateOrderResult
	createErr    error
	cancelResult *domain.Order
	cancelErr    error
	getResult    *domain.Order
	getErr       error
	listResult   []*domain.Order
	listErr      error

	lastCreateCmd service.CreateOrderCommand
	lastCancelID  string

	stockReserved        []events.StockReservedEvent
	stockReleased        []events.StockReleasedEvent
	orderVerified        []events.OrderVerifiedEvent
	verificationComplete []events.VerificationCompleteEvent
	errToReturn          error
}

var _ service.OrderService = (*fakeOrderService)(nil)

func (f *fakeOrderService) CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (*service.CreateOrderResult, error) {
	f.lastCreateCmd = cmd
	return f.createResult, f.createErr
}

func (f *fakeOrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	f.lastCancelID = orderID
	return f.cancelResult, f.cancelErr
}

func (f *fakeOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return f.getResult, f.getErr
}

func (f *fakeOrderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	return f.listResult, f.listErr
}

func (f *fakeOrderService) HandleStockReserved(ctx context.Context, evt events.StockReservedEvent) error {
	f.stockReserved = append(f.stockReserved, evt)
	return f.errToReturn
}

func (f *fakeOrderService) HandleStockReleased(ctx context.Context, evt events.StockReleasedEvent) error {
	f.stockReleased = append(f.stockReleased, evt)
	return f.errToReturn
}

func (f *fakeOrderService) HandleOrderVerified(ctx context.Context, evt events.OrderVerifiedEvent) error {
	f.orderVerified = append(f.orderVerified, evt)
	return f.errToReturn
}

func (f *fakeOrderService) HandleVerificationComplete(ctx context.Context, evt events.VerificationCompleteEvent) error {
	f.verificationComplete = append(f.verificationComplete, evt)
	return f.errToReturn
}
