package checkout

import (
	"html"

	"ecostore/internal/models"
)

// Sanitize returns a copy of d with the free-text display fields HTML
// escaped. Order text is rendered on the admin dashboard. Email, phone,
// pincode, GST number and coupon code are left as typed since the backend
// validates their format.
func Sanitize(d models.OrderDraft) models.OrderDraft {
	d.Customer.FirstName = html.EscapeString(d.Customer.FirstName)
	d.Customer.LastName = html.EscapeString(d.Customer.LastName)

	a := &d.ShippingAddress
	a.Address1 = html.EscapeString(a.Address1)
	a.Address2 = html.EscapeString(a.Address2)
	a.City = html.EscapeString(a.City)
	a.State = html.EscapeString(a.State)
	a.Country = html.EscapeString(a.Country)

	items := make([]models.OrderItem, len(d.Items))
	for i, item := range d.Items {
		item.Name = html.EscapeString(item.Name)
		item.Variant = html.EscapeString(item.Variant)
		items[i] = item
	}
	d.Items = items
	return d
}
