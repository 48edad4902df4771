package services

import (
	"errors"
	"fmt"
	"log"

	"ecostore/internal/events"
	"ecostore/internal/models"
	"ecostore/internal/pricing"
	"ecostore/internal/repositories"
	"ecostore/pkg/razorpay"
)

var (
	ErrPaymentNotRequired   = errors.New("order is not paid through the gateway")
	ErrGatewayOrderMismatch = errors.New("gateway order does not belong to this order")
	ErrInvalidSignature     = errors.New("payment signature verification failed")
)

// PaymentGateway is the server side of the hosted checkout.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(amount int64, currency, receipt string) (*razorpay.GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// PaymentService opens gateway sessions and verifies their results.
type PaymentService struct {
	orderRepo repositories.OrderRepository
	gateway   PaymentGateway
	publisher events.Publisher
}

// NewPaymentService creates a new PaymentService. publisher may be nil.
func NewPaymentService(orderRepo repositories.OrderRepository, gateway PaymentGateway, publisher events.Publisher) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
	}
}

// InitiatePayment creates (or reuses) the gateway order for a pending
// prepaid order. The amount is derived from the stored total, never from
// the client.
func (s *PaymentService) InitiatePayment(orderID string) (*models.PaymentSession, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentGatewayPrepaid {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrPaymentNotRequired)
	}
	if !order.IsPending() {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotPending)
	}

	amount := pricing.MinorUnits(order.Total)
	if order.RazorpayOrderID == "" {
		gwOrder, err := s.gateway.CreateOrder(amount, pricing.Currency, order.OrderID)
		if err != nil {
			return nil, err
		}
		order.RazorpayOrderID = gwOrder.ID
		if err := s.orderRepo.Update(order); err != nil {
			return nil, fmt.Errorf("failed to store gateway order for %s: %w", orderID, err)
		}
		log.Printf("Opened gateway order %s for order %s (%d paise)", gwOrder.ID, orderID, amount)
	}

	return &models.PaymentSession{
		RazorpayOrderID: order.RazorpayOrderID,
		KeyID:           s.gateway.KeyID(),
		OrderData: models.PaymentOrderData{
			OrderID:  order.OrderID,
			Amount:   amount,
			Currency: pricing.Currency,
		},
	}, nil
}

// VerifyPayment checks the checkout signature and marks the order paid.
// Verifying an already-paid order with the same payment is a no-op.
func (s *PaymentService) VerifyPayment(req models.PaymentCallback) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.RazorpayOrderID == "" || order.RazorpayOrderID != req.RazorpayOrderID {
		return nil, fmt.Errorf("order %s: %w", req.OrderID, ErrGatewayOrderMismatch)
	}
	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		log.Printf("Rejected payment %s for order %s: bad signature", req.RazorpayPaymentID, req.OrderID)
		return nil, fmt.Errorf("order %s: %w", req.OrderID, ErrInvalidSignature)
	}

	if order.PaymentStatus == models.PaymentSuccess && order.PaymentID == req.RazorpayPaymentID {
		return order, nil
	}
	if !order.IsPending() {
		return nil, fmt.Errorf("order %s: %w", req.OrderID, ErrOrderNotPending)
	}

	order.PaymentStatus = models.PaymentSuccess
	order.PaymentID = req.RazorpayPaymentID
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to mark order %s paid: %w", req.OrderID, err)
	}

	log.Printf("Verified payment %s for order %s", req.RazorpayPaymentID, req.OrderID)
	if s.publisher != nil {
		if err := s.publisher.PublishOrderEvent(events.NewOrderEvent(events.OrderPaid, order)); err != nil {
			log.Printf("Warning: failed to publish %s for order %s: %v", events.OrderPaid, order.OrderID, err)
		}
	}
	return order, nil
}
