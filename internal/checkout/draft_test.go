package checkout_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostore/internal/checkout"
	"ecostore/internal/models"
)

func cartOf(price float64, quantity int) []models.OrderItem {
	return []models.OrderItem{{ProductID: "bamboo-brush", Name: "Bamboo Toothbrush", Quantity: quantity, Price: price}}
}

func filledDraft(items []models.OrderItem) *checkout.DraftBuilder {
	b := checkout.NewDraftBuilder()
	b.SetItems(items)
	b.SetCustomer(models.Customer{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210"})
	b.SetShippingAddress(models.ShippingAddress{Address1: "12 MG Road", City: "Pune", State: "Maharashtra", Pincode: "411001"})
	return b
}

func TestDraftBuilder_ShippingThreshold(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		wantCost float64
		wantType string
	}{
		{"at threshold", 500, 0, "free"},
		{"just below", 499, 50, "standard"},
		{"well above", 1200, 0, "free"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := filledDraft(cartOf(tt.price, 1)).Draft()
			assert.Equal(t, tt.wantCost, d.ShippingMethod.Cost)
			assert.Equal(t, tt.wantType, d.ShippingMethod.Type)
			assert.Equal(t, tt.price+tt.wantCost, d.Total)
		})
	}
}

func TestDraftBuilder_FreeShippingCoupon(t *testing.T) {
	b := filledDraft(cartOf(200, 1))
	require.NoError(t, b.ApplyCoupon(" freeshipping "))
	first := b.Draft()

	assert.Equal(t, "FREESHIPPING", first.Coupon.Code)
	assert.Equal(t, float64(50), first.Coupon.Discount)
	assert.Equal(t, float64(0), first.ShippingMethod.Cost)
	assert.Equal(t, float64(200), first.Total)

	require.NoError(t, b.ApplyCoupon("FREESHIPPING"))
	assert.Equal(t, first, b.Draft())

	// discount follows the subtotal
	b.SetItems(cartOf(300, 2))
	assert.Equal(t, float64(0), b.Draft().Coupon.Discount)
	assert.Equal(t, float64(600), b.Draft().Total)

	b.RemoveCoupon()
	assert.Empty(t, b.Draft().Coupon.Code)
}

func TestDraftBuilder_InvalidCoupon(t *testing.T) {
	b := filledDraft(cartOf(200, 1))
	before := b.Draft()

	err := b.ApplyCoupon("SAVE10")
	assert.ErrorIs(t, err, checkout.ErrInvalidCoupon)
	assert.Equal(t, checkout.KindBusiness, checkout.KindOf(err))
	assert.Equal(t, before, b.Draft())
}

func TestDraftBuilder_TotalFloor(t *testing.T) {
	b := filledDraft([]models.OrderItem{{ProductID: "sample", Name: "Free Sample", Quantity: 1, Price: 0}})
	require.NoError(t, b.ApplyCoupon("FREESHIPPING"))

	d := b.Draft()
	assert.Equal(t, float64(50), d.Coupon.Discount)
	assert.Equal(t, float64(1), d.Total)
	assert.NoError(t, b.Validate())
}

func TestDraftBuilder_Validate(t *testing.T) {
	tests := []struct {
		name      string
		edit      func(b *checkout.DraftBuilder)
		wantField string
	}{
		{"empty cart", func(b *checkout.DraftBuilder) { b.SetItems(nil) }, "items"},
		{"nine digit phone", func(b *checkout.DraftBuilder) {
			c := b.Draft().Customer
			c.Phone = "987654321"
			b.SetCustomer(c)
		}, "customer.phone"},
		{"name with digits", func(b *checkout.DraftBuilder) {
			c := b.Draft().Customer
			c.FirstName = "Asha2"
			b.SetCustomer(c)
		}, "customer.firstName"},
		{"email without domain", func(b *checkout.DraftBuilder) {
			c := b.Draft().Customer
			c.Email = "asha@"
			b.SetCustomer(c)
		}, "customer.email"},
		{"five digit pincode", func(b *checkout.DraftBuilder) {
			a := b.Draft().ShippingAddress
			a.Pincode = "41100"
			b.SetShippingAddress(a)
		}, "shippingAddress.pincode"},
		{"missing city", func(b *checkout.DraftBuilder) {
			a := b.Draft().ShippingAddress
			a.City = ""
			b.SetShippingAddress(a)
		}, "shippingAddress.city"},
		{"blank street address", func(b *checkout.DraftBuilder) {
			a := b.Draft().ShippingAddress
			a.Address1 = "   "
			b.SetShippingAddress(a)
		}, "shippingAddress.address1"},
		{"blank city", func(b *checkout.DraftBuilder) {
			a := b.Draft().ShippingAddress
			a.City = "\t"
			b.SetShippingAddress(a)
		}, "shippingAddress.city"},
		{"blank state", func(b *checkout.DraftBuilder) {
			a := b.Draft().ShippingAddress
			a.State = " "
			b.SetShippingAddress(a)
		}, "shippingAddress.state"},
		{"blank first name", func(b *checkout.DraftBuilder) {
			c := b.Draft().Customer
			c.FirstName = "  "
			b.SetCustomer(c)
		}, "customer.firstName"},
		{"bad gstin", func(b *checkout.DraftBuilder) { b.SetGSTNumber("27ABCDE1234F1Z") }, "gstNumber"},
		{"zero quantity", func(b *checkout.DraftBuilder) { b.SetItems(cartOf(300, 0)) }, "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := filledDraft(cartOf(300, 2))
			tt.edit(b)

			err := b.Validate()
			var verr *checkout.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.First().Field)
			assert.Equal(t, verr.First().Message, err.Error())
			assert.Equal(t, checkout.KindValidation, checkout.KindOf(err))
		})
	}
}

func TestDraftBuilder_ValidateRuleOrder(t *testing.T) {
	b := checkout.NewDraftBuilder()
	b.SetCustomer(models.Customer{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "123"})
	b.SetShippingAddress(models.ShippingAddress{Pincode: "12"})

	var verr *checkout.ValidationError
	require.ErrorAs(t, b.Validate(), &verr)
	assert.Equal(t, "items", verr.First().Field)
	assert.True(t, verr.Has("customer.phone"))
	assert.True(t, verr.Has("shippingAddress.pincode"))
	assert.True(t, verr.Has("shippingAddress.address1"))
	assert.False(t, verr.Has("customer.email"))
}

func TestDraftBuilder_ValidGSTIN(t *testing.T) {
	b := filledDraft(cartOf(300, 2))
	b.SetGSTNumber("27abcde1234f1z5")
	assert.Equal(t, "27ABCDE1234F1Z5", b.Draft().GSTNumber)
	assert.NoError(t, b.Validate())
}

func TestDraftBuilder_FreezeIsSnapshot(t *testing.T) {
	b := filledDraft(cartOf(300, 2))
	frozen := b.Freeze()

	b.SetItems(cartOf(100, 1))
	b.RenewOrderID()

	assert.Len(t, frozen.Items, 1)
	assert.Equal(t, 2, frozen.Items[0].Quantity)
	assert.Equal(t, float64(600), frozen.Total)
	assert.NotEqual(t, frozen.OrderID, b.Draft().OrderID)
}

func TestSanitize(t *testing.T) {
	d := filledDraft([]models.OrderItem{{ProductID: "p1", Name: `<script>alert("x")</script>`, Quantity: 1, Price: 10}}).Draft()
	d.ShippingAddress.Address2 = "Flat 4 & 5"
	d.ShippingAddress.City = "D'Souza Nagar"
	d.Customer.Email = "o'brien+orders@example.com"
	d.Coupon.Code = "FREE&SHIP"

	clean := checkout.Sanitize(d)
	assert.Equal(t, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;", clean.Items[0].Name)
	assert.Equal(t, "Flat 4 &amp; 5", clean.ShippingAddress.Address2)
	assert.Equal(t, "D&#39;Souza Nagar", clean.ShippingAddress.City)
	// format-checked fields go out as typed
	assert.Equal(t, "o'brien+orders@example.com", clean.Customer.Email)
	assert.Equal(t, "9876543210", clean.Customer.Phone)
	assert.Equal(t, "411001", clean.ShippingAddress.Pincode)
	assert.Equal(t, "FREE&SHIP", clean.Coupon.Code)
	// the original is untouched
	assert.Equal(t, `<script>alert("x")</script>`, d.Items[0].Name)
}
