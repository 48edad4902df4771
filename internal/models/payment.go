package models

// PaymentSession is returned when a gateway payment is initiated for an
// order. Amount is authoritative: the storefront charges exactly this.
type PaymentSession struct {
	RazorpayOrderID string           `json:"razorpayOrderId"`
	KeyID           string           `json:"keyId"`
	OrderData       PaymentOrderData `json:"orderData"`
}

// PaymentOrderData describes the amount the gateway session was created for.
type PaymentOrderData struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentCallback carries the fields the hosted checkout hands back after a
// completed payment, plus the store order they belong to.
type PaymentCallback struct {
	OrderID           string `json:"orderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// VerifyPaymentResponse is the backend's answer to a verification request.
type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Order   *Order `json:"order,omitempty"`
	Message string `json:"message,omitempty"`
}
