package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostore/internal/models"
)

func TestNewOrderEvent(t *testing.T) {
	order := &models.Order{
		OrderID:       "order-1",
		Customer:      models.Customer{FirstName: "Asha", LastName: "Rao"},
		Total:         600,
		PaymentMethod: models.PaymentCashOnDelivery,
		PaymentStatus: models.PaymentSuccess,
		OrderStatus:   models.OrderConfirmed,
	}

	ev := NewOrderEvent(OrderCreated, order)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, OrderCreated, ev.Type)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, "Asha Rao", ev.CustomerName)
	assert.Equal(t, models.PaymentSuccess, ev.PaymentStatus)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.PublishOrderEvent(OrderEvent{OrderID: "order-1"}))
	assert.Equal(t, "order-1", (<-first).OrderID)
	assert.Equal(t, "order-1", (<-second).OrderID)

	cancelFirst()
	cancelFirst()
	assert.Equal(t, 1, b.Subscribers())
	_, open := <-first
	assert.False(t, open)
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	require.NoError(t, b.PublishOrderEvent(OrderEvent{OrderID: "a"}))
	require.NoError(t, b.PublishOrderEvent(OrderEvent{OrderID: "b"}))

	assert.Equal(t, "a", (<-ch).OrderID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.OrderID)
	default:
	}
}
