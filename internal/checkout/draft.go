package checkout

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ecostore/internal/models"
	"ecostore/internal/pricing"
	"ecostore/internal/validation"
)

// draftRules lists the draft fields in the order they are checked, with the
// message shown when the field is invalid.
var draftRules = []FieldError{
	{Field: "items", Message: "Your cart is empty. Add a product before checking out."},
	{Field: "customer.firstName", Message: "Please enter your first name using letters and spaces only."},
	{Field: "customer.lastName", Message: "Please enter your last name using letters and spaces only."},
	{Field: "customer.email", Message: "Please enter a valid email address."},
	{Field: "customer.phone", Message: "Please enter a valid 10-digit phone number."},
	{Field: "shippingAddress.pincode", Message: "Please enter a valid 6-digit pincode."},
	{Field: "shippingAddress.address1", Message: "Please enter your street address."},
	{Field: "shippingAddress.city", Message: "Please enter your city."},
	{Field: "shippingAddress.state", Message: "Please enter your state."},
	{Field: "gstNumber", Message: "Please enter a valid 15-character GST number or leave it empty."},
	{Field: "total", Message: "Order total must be at least ₹1."},
	{Field: "paymentMethod", Message: "Please choose a payment method."},
}

var draftValidator = validation.New()

// DraftBuilder assembles an order draft from checkout form edits. Every edit
// re-prices the draft, so shipping, discount and total always reflect the
// current items and coupon.
type DraftBuilder struct {
	draft models.OrderDraft
}

// NewDraftBuilder starts an empty cash-on-delivery draft with a fresh order
// id.
func NewDraftBuilder() *DraftBuilder {
	b := &DraftBuilder{draft: models.OrderDraft{
		OrderID:         uuid.NewString(),
		PaymentMethod:   models.PaymentCashOnDelivery,
		ShippingAddress: models.ShippingAddress{Country: "India"},
	}}
	b.reprice()
	return b
}

// SetItems copies the cart lines into the draft.
func (b *DraftBuilder) SetItems(items []models.OrderItem) {
	b.draft.Items = append([]models.OrderItem(nil), items...)
	b.reprice()
}

func (b *DraftBuilder) SetCustomer(c models.Customer) {
	b.draft.Customer = models.Customer{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}
}

func (b *DraftBuilder) SetShippingAddress(a models.ShippingAddress) {
	a = models.ShippingAddress{
		Address1: strings.TrimSpace(a.Address1),
		Address2: strings.TrimSpace(a.Address2),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		Pincode:  strings.TrimSpace(a.Pincode),
		Country:  strings.TrimSpace(a.Country),
	}
	if a.Country == "" {
		a.Country = "India"
	}
	b.draft.ShippingAddress = a
}

// SetGSTNumber stores an optional GSTIN, upper-cased.
func (b *DraftBuilder) SetGSTNumber(gstin string) {
	b.draft.GSTNumber = strings.ToUpper(strings.TrimSpace(gstin))
}

func (b *DraftBuilder) SetPaymentMethod(m models.PaymentMethod) {
	b.draft.PaymentMethod = m
}

// ApplyCoupon applies a coupon code. Unknown codes leave the draft unchanged
// and return ErrInvalidCoupon. Applying the same code twice is a no-op.
func (b *DraftBuilder) ApplyCoupon(code string) error {
	if !pricing.IsRecognizedCoupon(code) {
		return ErrInvalidCoupon
	}
	b.draft.Coupon.Code = pricing.NormalizeCoupon(code)
	b.reprice()
	return nil
}

func (b *DraftBuilder) RemoveCoupon() {
	b.draft.Coupon = models.Coupon{}
	b.reprice()
}

// RenewOrderID gives the draft a new order id, used after the order it
// produced was cancelled.
func (b *DraftBuilder) RenewOrderID() {
	b.draft.OrderID = uuid.NewString()
}

// Draft returns a copy of the current draft.
func (b *DraftBuilder) Draft() models.OrderDraft {
	return b.Freeze()
}

// Freeze returns a snapshot of the draft for submission. Later edits to the
// builder do not affect it.
func (b *DraftBuilder) Freeze() models.OrderDraft {
	d := b.draft
	d.Items = append([]models.OrderItem(nil), b.draft.Items...)
	return d
}

// Validate checks the draft and returns a *ValidationError listing every
// violated rule, or nil.
func (b *DraftBuilder) Validate() error {
	return ValidateDraft(b.draft)
}

func (b *DraftBuilder) reprice() {
	q := pricing.Price(pricing.Subtotal(b.draft.Items), b.draft.Coupon.Code)
	b.draft.Subtotal = q.Subtotal
	b.draft.ShippingMethod = models.ShippingMethod{Type: q.ShippingType(), Cost: q.ShippingCost}
	b.draft.Coupon.Discount = q.Discount
	b.draft.Total = q.Total
}

// ValidateDraft applies the checkout rules to d. It never touches the
// network.
func ValidateDraft(d models.OrderDraft) error {
	failed := map[string]bool{}
	if err := draftValidator.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			failed[draftField(fe.Namespace())] = true
		}
	}
	if d.Total < pricing.MinimumTotal {
		failed["total"] = true
	}
	if len(failed) == 0 {
		return nil
	}

	verr := &ValidationError{}
	for _, rule := range draftRules {
		if failed[rule.Field] {
			verr.Errors = append(verr.Errors, rule)
			delete(failed, rule.Field)
		}
	}
	// fields without a dedicated rule keep a generic message
	rest := make([]string, 0, len(failed))
	for field := range failed {
		rest = append(rest, field)
	}
	sort.Strings(rest)
	for _, field := range rest {
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: "Please check " + field + "."})
	}
	return verr
}

// draftField turns "OrderDraft.items[2].quantity" into "items" and
// "OrderDraft.customer.phone" into "customer.phone".
func draftField(namespace string) string {
	field := namespace
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	if strings.HasPrefix(field, "items") {
		return "items"
	}
	return field
}
