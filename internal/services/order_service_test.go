package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ecostore/internal/events"
	"ecostore/internal/models"
	"ecostore/internal/repositories"
	"ecostore/internal/services"
)

// MockPublisher records published order events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderEvent(event events.OrderEvent) error {
	return m.Called(event).Error(0)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(ev events.OrderEvent) bool { return ev.Type == eventType })
}

func validDraft(method models.PaymentMethod) models.OrderDraft {
	return models.OrderDraft{
		OrderID: "0b5c3f4e-8a59-4d5e-9b61-6c1f9f1d2a10",
		Items: []models.OrderItem{
			{ProductID: "bamboo-brush", Name: "Bamboo Toothbrush", Quantity: 2, Price: 300},
		},
		Customer:        models.Customer{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210"},
		ShippingAddress: models.ShippingAddress{Address1: "12 MG Road", City: "Pune", State: "Maharashtra", Pincode: "411001", Country: "India"},
		PaymentMethod:   method,
	}
}

func TestOrderService_CreateOrder_COD(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("PublishOrderEvent", eventOfType(events.OrderCreated)).Return(nil).Once()
	svc := services.NewOrderService(repositories.NewMockOrderRepository(), publisher)

	draft := validDraft(models.PaymentCashOnDelivery)
	draft.Total = 1 // client figures are ignored

	order, err := svc.CreateOrder(draft)
	require.NoError(t, err)
	assert.Equal(t, draft.OrderID, order.OrderID)
	assert.Equal(t, float64(600), order.Subtotal)
	assert.Equal(t, float64(0), order.ShippingMethod.Cost)
	assert.Equal(t, float64(600), order.Total)
	assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, order.OrderStatus)
	publisher.AssertExpectations(t)
}

func TestOrderService_CreateOrder_PrepaidWithCoupon(t *testing.T) {
	svc := services.NewOrderService(repositories.NewMockOrderRepository(), nil)

	draft := validDraft(models.PaymentGatewayPrepaid)
	draft.Items = []models.OrderItem{{ProductID: "jute-bag", Name: "Jute Bag", Quantity: 1, Price: 200}}
	draft.Coupon.Code = "freeshipping"

	order, err := svc.CreateOrder(draft)
	require.NoError(t, err)
	assert.Equal(t, "FREESHIPPING", order.Coupon.Code)
	assert.Equal(t, float64(50), order.Coupon.Discount)
	assert.Equal(t, float64(0), order.ShippingMethod.Cost)
	assert.Equal(t, float64(200), order.Total)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
}

func TestOrderService_CreateOrder_Rejects(t *testing.T) {
	svc := services.NewOrderService(repositories.NewMockOrderRepository(), nil)

	badPhone := validDraft(models.PaymentCashOnDelivery)
	badPhone.Customer.Phone = "987654321"
	_, err := svc.CreateOrder(badPhone)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "OrderDraft.customer.phone")

	blank := validDraft(models.PaymentCashOnDelivery)
	blank.ShippingAddress.Address1 = "   "
	blank.ShippingAddress.City = "\t"
	_, err = svc.CreateOrder(blank)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "OrderDraft.shippingAddress.address1")
	assert.Contains(t, verr.Fields, "OrderDraft.shippingAddress.city")

	empty := validDraft(models.PaymentCashOnDelivery)
	empty.Items = nil
	_, err = svc.CreateOrder(empty)
	assert.ErrorAs(t, err, &verr)

	coupon := validDraft(models.PaymentCashOnDelivery)
	coupon.Coupon.Code = "SAVE10"
	_, err = svc.CreateOrder(coupon)
	assert.ErrorIs(t, err, services.ErrInvalidCoupon)

	dup := validDraft(models.PaymentCashOnDelivery)
	_, err = svc.CreateOrder(dup)
	require.NoError(t, err)
	_, err = svc.CreateOrder(dup)
	assert.ErrorIs(t, err, repositories.ErrDuplicateOrder)
}

func TestOrderService_CancelPendingOrder(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("PublishOrderEvent", mock.Anything).Return(nil)
	repo := repositories.NewMockOrderRepository()
	svc := services.NewOrderService(repo, publisher)

	prepaid, err := svc.CreateOrder(validDraft(models.PaymentGatewayPrepaid))
	require.NoError(t, err)

	cancelled, err := svc.CancelPendingOrder(prepaid.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.OrderStatus)
	_, err = repo.GetByID(prepaid.OrderID)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
	publisher.AssertCalled(t, "PublishOrderEvent", eventOfType(events.OrderCancelled))

	cod := validDraft(models.PaymentCashOnDelivery)
	cod.OrderID = "5d0b2a39-7a4f-4d9c-8d57-0e3d4f6a8b21"
	paid, err := svc.CreateOrder(cod)
	require.NoError(t, err)
	_, err = svc.CancelPendingOrder(paid.OrderID)
	assert.ErrorIs(t, err, services.ErrOrderNotPending)

	_, err = svc.CancelPendingOrder("missing")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	svc := services.NewOrderService(repositories.NewMockOrderRepository(), nil)
	order, err := svc.CreateOrder(validDraft(models.PaymentCashOnDelivery))
	require.NoError(t, err)

	updated, err := svc.UpdateOrderStatus(order.OrderID, models.OrderDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, updated.OrderStatus)

	_, err = svc.UpdateOrderStatus(order.OrderID, "Shipped")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
}
