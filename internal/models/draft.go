package models

import "time"

// ShippingMethod is derived from the subtotal; Cost is what the customer is
// charged after any free-shipping coupon.
type ShippingMethod struct {
	Type string  `json:"type"`
	Cost float64 `json:"cost"`
}

// Coupon is the applied coupon. Discount is recomputed on every change to the
// code or the subtotal.
type Coupon struct {
	Code     string  `json:"code,omitempty"`
	Discount float64 `json:"discount"`
}

// OrderDraft is the client-side order while the customer fills in checkout.
type OrderDraft struct {
	OrderID         string          `json:"orderId"`
	Items           []OrderItem     `json:"items" validate:"min=1,dive"`
	Customer        Customer        `json:"customer"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	GSTNumber       string          `json:"gstNumber,omitempty" validate:"omitempty,gstin"`
	ShippingMethod  ShippingMethod  `json:"shippingMethod"`
	Coupon          Coupon          `json:"coupon"`
	Subtotal        float64         `json:"subtotal"`
	Total           float64         `json:"total"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"oneof=COD Razorpay"`
}

// PendingTransaction marks a prepaid payment that was started but not yet
// confirmed or cancelled. There is at most one per order.
type PendingTransaction struct {
	OrderID        string    `json:"orderId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	Timestamp      time.Time `json:"timestamp"`
}
