package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ecostore/internal/events"
	"ecostore/internal/models"
	"ecostore/internal/pricing"
	"ecostore/internal/repositories"
	"ecostore/internal/validation"
)

var (
	ErrInvalidCoupon   = errors.New("coupon code is not valid")
	ErrOrderNotPending = errors.New("order is not awaiting payment")
	ErrInvalidStatus   = errors.New("invalid order status")
)

// ValidationError lists the fields of an order request that failed
// validation, keyed by JSON field path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, field+" ("+tag+")")
	}
	return "invalid order: " + strings.Join(parts, ", ")
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo repositories.OrderRepository
	publisher events.Publisher
	validate  *validator.Validate
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, publisher events.Publisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		publisher: publisher,
		validate:  validation.New(),
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// CreateOrder prices and stores a submitted draft. Totals are recomputed
// here; the client's figures are ignored. Cash-on-delivery orders are
// settled immediately, prepaid orders wait for gateway verification.
func (s *OrderService) CreateOrder(draft models.OrderDraft) (*models.Order, error) {
	if err := s.validate.Struct(draft); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, fmt.Errorf("failed to validate order: %w", err)
	}

	couponCode := pricing.NormalizeCoupon(draft.Coupon.Code)
	if couponCode != "" && !pricing.IsRecognizedCoupon(couponCode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoupon, couponCode)
	}

	orderID := draft.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	items := make([]models.OrderItem, len(draft.Items))
	for i, item := range draft.Items {
		items[i] = models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Variant:   item.Variant,
		}
	}

	subtotal := pricing.Subtotal(items)
	quote := pricing.Price(subtotal, couponCode)

	order := &models.Order{
		OrderID:         orderID,
		Customer:        draft.Customer,
		ShippingAddress: draft.ShippingAddress,
		ShippingMethod:  models.ShippingMethod{Type: quote.ShippingType(), Cost: quote.ShippingCost},
		Coupon:          models.Coupon{Code: couponCode, Discount: quote.Discount},
		GSTNumber:       draft.GSTNumber,
		Items:           items,
		Subtotal:        quote.Subtotal,
		Total:           quote.Total,
		PaymentMethod:   draft.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		OrderStatus:     models.OrderConfirmed,
	}
	if order.PaymentMethod == models.PaymentCashOnDelivery {
		order.PaymentStatus = models.PaymentSuccess
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Printf("Created order %s (%s, total %.2f)", order.OrderID, order.PaymentMethod, order.Total)
	s.publish(events.OrderCreated, order)
	return order, nil
}

// CancelPendingOrder voids an order whose payment never completed.
func (s *OrderService) CancelPendingOrder(id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, fmt.Errorf("order %s: %w", id, ErrOrderNotPending)
	}
	if err := s.orderRepo.Delete(id); err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", id, err)
	}

	order.OrderStatus = models.OrderCancelled
	order.PaymentStatus = models.PaymentFailed
	log.Printf("Cancelled pending order %s", id)
	s.publish(events.OrderCancelled, order)
	return order, nil
}

// UpdateOrderStatus changes the fulfilment status of an order.
func (s *OrderService) UpdateOrderStatus(id string, status models.OrderStatus) (*models.Order, error) {
	switch status {
	case models.OrderConfirmed, models.OrderDelivered, models.OrderCancelled:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	order.OrderStatus = status
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}

	s.publish(events.OrderStatusUpdated, order)
	return order, nil
}

func (s *OrderService) publish(eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(events.NewOrderEvent(eventType, order)); err != nil {
		log.Printf("Warning: failed to publish %s for order %s: %v", eventType, order.OrderID, err)
	}
}
