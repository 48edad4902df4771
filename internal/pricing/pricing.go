// Package pricing holds the checkout money rules shared by the storefront
// client and the backend. Both sides must agree to the paisa, otherwise the
// gateway session amount and the verified payment diverge.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"ecostore/internal/models"
)

const (
	// FreeShippingThreshold is the subtotal from which standard shipping is free.
	FreeShippingThreshold = 500
	// FlatShippingFee is charged below the threshold.
	FlatShippingFee = 50
	// FreeShippingCoupon is the only coupon code the store recognises.
	FreeShippingCoupon = "FREESHIPPING"
	// MinimumTotal is the smallest order total, in rupees.
	MinimumTotal = 1
	// MinimumChargeMinorUnits is the gateway's smallest chargeable amount (paise).
	MinimumChargeMinorUnits = 100
	// Currency is the ISO code sent to the gateway.
	Currency = "INR"
)

const (
	ShippingStandard = "standard"
	ShippingFree     = "free"
)

// Quote is the result of pricing a subtotal with an optional coupon.
type Quote struct {
	Subtotal float64
	// ShippingFee is the fee for the shipping method before any coupon.
	ShippingFee float64
	// ShippingCost is what the customer is charged for shipping.
	ShippingCost float64
	Discount     float64
	Total        float64
}

// NormalizeCoupon trims and upper-cases a coupon code.
func NormalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsRecognizedCoupon reports whether code is a coupon the store honours.
func IsRecognizedCoupon(code string) bool {
	return NormalizeCoupon(code) == FreeShippingCoupon
}

// ShippingFee returns the shipping fee for a subtotal.
func ShippingFee(subtotal float64) float64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// Subtotal sums price × quantity over items.
func Subtotal(items []models.OrderItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// Price computes shipping, discount and total for a subtotal and coupon code.
// Unrecognised codes are ignored; callers decide whether that is an error.
func Price(subtotal float64, couponCode string) Quote {
	fee := ShippingFee(subtotal)
	q := Quote{
		Subtotal:     subtotal,
		ShippingFee:  fee,
		ShippingCost: fee,
	}
	if IsRecognizedCoupon(couponCode) {
		q.Discount = fee
		q.ShippingCost = 0
	}
	q.Total = Total(subtotal, fee, q.Discount)
	return q
}

// Total returns max(MinimumTotal, subtotal + shippingFee - discount).
func Total(subtotal, shippingFee, discount float64) float64 {
	total := decimal.NewFromFloat(subtotal).
		Add(decimal.NewFromFloat(shippingFee)).
		Sub(decimal.NewFromFloat(discount))
	total = decimal.Max(total, decimal.NewFromInt(MinimumTotal))
	return total.Round(2).InexactFloat64()
}

// MinorUnits converts a rupee total into the paise amount sent to the
// gateway: round(total × 100), floored at MinimumChargeMinorUnits.
func MinorUnits(total float64) int64 {
	paise := decimal.NewFromFloat(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if paise < MinimumChargeMinorUnits {
		return MinimumChargeMinorUnits
	}
	return paise
}

// ShippingType names the shipping method for a quote.
func (q Quote) ShippingType() string {
	if q.ShippingCost == 0 {
		return ShippingFree
	}
	return ShippingStandard
}
