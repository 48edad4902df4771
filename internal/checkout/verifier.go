package checkout

import (
	"context"
	"log"

	"ecostore/internal/models"
)

// Verifier confirms completed gateway payments with the backend. The
// gateway callback alone never confirms a payment.
type Verifier struct {
	api      Backend
	recovery *Recovery
}

func NewVerifier(api Backend, recovery *Recovery) *Verifier {
	return &Verifier{api: api, recovery: recovery}
}

// Verify forwards the callback for signature verification. When the backend
// does not confirm it, or cannot be reached, the order is reconciled before
// anything is reported: a paid order is still returned as confirmed.
func (v *Verifier) Verify(ctx context.Context, cb models.PaymentCallback) (*models.Order, error) {
	resp, err := v.api.VerifyPayment(ctx, cb)
	if err == nil && resp.Success && resp.Order != nil {
		if cerr := v.recovery.Confirm(ctx); cerr != nil {
			return nil, cerr
		}
		log.Printf("Payment %s verified for order %s", cb.RazorpayPaymentID, cb.OrderID)
		return resp.Order, nil
	}

	switch {
	case err != nil:
		log.Printf("Verification of payment %s failed, reconciling order %s: %v", cb.RazorpayPaymentID, cb.OrderID, err)
	default:
		log.Printf("Payment %s not verified for order %s (%s), reconciling", cb.RazorpayPaymentID, cb.OrderID, resp.Message)
	}
	v.recovery.Inconclusive()
	return v.recovery.Reconcile(ctx, cb.OrderID)
}
