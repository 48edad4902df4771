package models

import "time"

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "COD"
	PaymentGatewayPrepaid PaymentMethod = "Razorpay"
)

// PaymentStatus is owned by the backend; clients only read it.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentSuccess PaymentStatus = "Success"
	PaymentFailed  PaymentStatus = "Failed"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderConfirmed OrderStatus = "Confirmed"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// Customer holds the buyer's contact details.
type Customer struct {
	FirstName string `json:"firstName" validate:"required,notblank,alphaspace"`
	LastName  string `json:"lastName" validate:"required,notblank,alphaspace"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,len=10,digits"`
}

// ShippingAddress is where the parcel goes. Pincode is an Indian postal code.
type ShippingAddress struct {
	Address1 string `json:"address1" validate:"required,notblank"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city" validate:"required,notblank"`
	State    string `json:"state" validate:"required,notblank"`
	Pincode  string `json:"pincode" validate:"required,len=6,digits"`
	Country  string `json:"country"`
}

// OrderItem represents a single line within an order. Price is the price at
// the time the item was added to the cart.
type OrderItem struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	OrderID   string  `json:"-" gorm:"index;type:varchar(36)"`
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
	Variant   string  `json:"variant,omitempty"`
}

// Order is the backend's canonical record of a placed order.
type Order struct {
	OrderID         string          `json:"orderId" gorm:"primaryKey;type:varchar(36)"`
	Customer        Customer        `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	ShippingAddress ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	ShippingMethod  ShippingMethod  `json:"shippingMethod" gorm:"embedded;embeddedPrefix:shipping_method_"`
	Coupon          Coupon          `json:"coupon" gorm:"embedded;embeddedPrefix:coupon_"`
	GSTNumber       string          `json:"gstNumber,omitempty"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal        float64         `json:"subtotal"`
	Total           float64         `json:"total"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" gorm:"type:varchar(16)"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus" gorm:"type:varchar(16);index"`
	OrderStatus     OrderStatus     `json:"orderStatus" gorm:"type:varchar(16)"`
	RazorpayOrderID string          `json:"razorpayOrderId,omitempty" gorm:"type:varchar(64)"`
	PaymentID       string          `json:"paymentId,omitempty" gorm:"type:varchar(64)"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// IsPending reports whether the order still awaits payment confirmation.
func (o *Order) IsPending() bool {
	return o.PaymentStatus == PaymentPending && o.OrderStatus != OrderCancelled
}
