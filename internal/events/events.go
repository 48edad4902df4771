// Package events carries order lifecycle notifications to the admin
// dashboard's live feed.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ecostore/internal/models"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	OrderCancelled     = "order.cancelled"
	OrderStatusUpdated = "order.status_updated"
)

// OrderEvent is published whenever an order changes in a way the admin
// dashboard shows.
type OrderEvent struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	CustomerName  string               `json:"customerName"`
	Total         float64              `json:"total"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	OrderStatus   models.OrderStatus   `json:"orderStatus"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewOrderEvent builds an event of type eventType from order.
func NewOrderEvent(eventType string, order *models.Order) OrderEvent {
	return OrderEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		OrderID:       order.OrderID,
		CustomerName:  order.Customer.FirstName + " " + order.Customer.LastName,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher sends order events somewhere.
type Publisher interface {
	PublishOrderEvent(event OrderEvent) error
}

// Broadcaster fans events out to in-process subscribers such as open SSE
// connections. Slow subscribers miss events rather than block publishers.
type Broadcaster struct {
	subscribers map[chan OrderEvent]struct{}
	buffer      int
	mu          sync.RWMutex
}

// NewBroadcaster creates a Broadcaster whose subscribers buffer up to
// buffer events.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{
		subscribers: make(map[chan OrderEvent]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// once the subscriber is done; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan OrderEvent, func()) {
	ch := make(chan OrderEvent, b.buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// PublishOrderEvent delivers event to every subscriber with buffer room.
func (b *Broadcaster) PublishOrderEvent(event OrderEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
