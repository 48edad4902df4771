package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecostore/internal/models"
	"ecostore/pkg/razorpay"
)

// CheckoutOptions configure one hosted checkout session.
type CheckoutOptions struct {
	KeyID          string
	GatewayOrderID string
	OrderID        string
	// Amount in minor units, exactly as the backend created the session.
	Amount   int64
	Currency string
	Prefill  models.Customer
}

// Outcome is how a hosted checkout session ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeDismissed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDismissed:
		return "dismissed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GatewayResult is the result of a checkout session. Callback is set when
// the session completed, Err when it failed.
type GatewayResult struct {
	Outcome  Outcome
	Callback models.PaymentCallback
	Err      *GatewayError
}

// Gateway is a blocking hosted checkout.
type Gateway interface {
	// Load prepares the checkout. It is called once per process.
	Load(ctx context.Context) error
	// Open runs a checkout session until it completes, fails or is
	// dismissed.
	Open(ctx context.Context, opts CheckoutOptions) (GatewayResult, error)
}

// Handlers receive the outcome of a callback-style checkout. Exactly one is
// called per session.
type Handlers struct {
	OnSuccess func(paymentID, gatewayOrderID, signature string)
	OnFailure func(code, description string)
	OnDismiss func()
}

// Modal is a callback-style hosted checkout, the shape gateway SDKs expose.
// Open returns once the modal is shown.
type Modal interface {
	Load(ctx context.Context) error
	Open(opts CheckoutOptions, h Handlers) error
}

// ModalGateway adapts a Modal to the blocking Gateway interface.
type ModalGateway struct {
	Modal Modal
}

func (g ModalGateway) Load(ctx context.Context) error {
	return g.Modal.Load(ctx)
}

// Open shows the modal and waits for one of its handlers. Cancelling ctx is
// treated as a dismissal.
func (g ModalGateway) Open(ctx context.Context, opts CheckoutOptions) (GatewayResult, error) {
	done := make(chan GatewayResult, 1)
	var once sync.Once
	finish := func(r GatewayResult) {
		once.Do(func() { done <- r })
	}

	err := g.Modal.Open(opts, Handlers{
		OnSuccess: func(paymentID, gatewayOrderID, signature string) {
			finish(GatewayResult{Outcome: OutcomeCompleted, Callback: models.PaymentCallback{
				OrderID:           opts.OrderID,
				RazorpayPaymentID: paymentID,
				RazorpayOrderID:   gatewayOrderID,
				RazorpaySignature: signature,
			}})
		},
		OnFailure: func(code, description string) {
			finish(GatewayResult{Outcome: OutcomeFailed, Err: &GatewayError{Code: code, Description: description}})
		},
		OnDismiss: func() {
			finish(GatewayResult{Outcome: OutcomeDismissed})
		},
	})
	if err != nil {
		return GatewayResult{}, err
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return GatewayResult{Outcome: OutcomeDismissed}, ctx.Err()
	}
}

// SandboxBehavior selects how the sandbox checkout ends.
type SandboxBehavior string

const (
	SandboxPay     SandboxBehavior = "pay"
	SandboxDismiss SandboxBehavior = "dismiss"
	SandboxDecline SandboxBehavior = "decline"
)

var ErrSandboxUnavailable = errors.New("sandbox checkout unavailable")

// SandboxModal simulates the hosted checkout. A successful payment is signed
// with KeySecret the same way the gateway signs it, so a backend sharing the
// secret verifies it.
type SandboxModal struct {
	KeySecret string
	Behavior  SandboxBehavior
	// Delay before the outcome is reported.
	Delay time.Duration
	// Unavailable makes Load fail.
	Unavailable bool
}

func (m *SandboxModal) Load(ctx context.Context) error {
	if m.Unavailable {
		return ErrSandboxUnavailable
	}
	return ctx.Err()
}

func (m *SandboxModal) Open(opts CheckoutOptions, h Handlers) error {
	go func() {
		if m.Delay > 0 {
			time.Sleep(m.Delay)
		}
		switch m.Behavior {
		case SandboxDismiss:
			h.OnDismiss()
		case SandboxDecline:
			h.OnFailure("BAD_REQUEST_ERROR", "Your card was declined by the bank.")
		default:
			paymentID := razorpay.NewID("pay")
			h.OnSuccess(paymentID, opts.GatewayOrderID, razorpay.Sign(m.KeySecret, opts.GatewayOrderID, paymentID))
		}
	}()
	return nil
}
