package checkout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ecostore/internal/models"
	"ecostore/internal/pricing"
)

// Bridge opens the hosted gateway checkout for a placed order.
type Bridge struct {
	api     Backend
	gateway Gateway
	local   *LocalState
	now     func() time.Time

	loadMu  sync.Mutex
	loaded  bool
	loadErr error
}

func NewBridge(api Backend, gateway Gateway, local *LocalState) *Bridge {
	return &Bridge{api: api, gateway: gateway, local: local, now: time.Now}
}

// PrepaidAvailable loads the gateway on first use and reports whether it
// loaded. A failed load disables prepaid payment for the life of the Bridge,
// unless it failed because ctx ended; the next call loads again.
func (b *Bridge) PrepaidAvailable(ctx context.Context) bool {
	return b.load(ctx) == nil
}

func (b *Bridge) load(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	if b.loaded {
		return b.loadErr
	}
	if b.gateway == nil {
		b.loaded, b.loadErr = true, ErrPrepaidUnavailable
		return b.loadErr
	}

	err := b.gateway.Load(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil {
		log.Printf("Payment gateway failed to load, prepaid disabled: %v", err)
		err = fmt.Errorf("%w: %v", ErrPrepaidUnavailable, err)
	}
	b.loaded, b.loadErr = true, err
	return err
}

// Pay initiates a gateway session for order and runs the checkout. The
// pending transaction is stored, and begin called with it, before the
// checkout opens; a failure in either aborts without opening.
func (b *Bridge) Pay(ctx context.Context, order *models.Order, begin func(models.PendingTransaction) error) (GatewayResult, error) {
	if err := b.load(ctx); err != nil {
		return GatewayResult{}, err
	}

	session, err := b.api.InitiatePayment(ctx, order.OrderID)
	if err != nil {
		return GatewayResult{}, err
	}

	pending := models.PendingTransaction{
		OrderID:        order.OrderID,
		GatewayOrderID: session.RazorpayOrderID,
		Timestamp:      b.now().UTC(),
	}
	if err := b.local.SavePendingTransaction(ctx, pending); err != nil {
		return GatewayResult{}, fmt.Errorf("failed to store pending payment: %w", err)
	}
	if begin != nil {
		if err := begin(pending); err != nil {
			return GatewayResult{}, err
		}
	}

	amount := session.OrderData.Amount
	if amount <= 0 {
		amount = pricing.MinorUnits(order.Total)
	}
	currency := session.OrderData.Currency
	if currency == "" {
		currency = pricing.Currency
	}

	log.Printf("Opening checkout for order %s (gateway order %s, %d %s)", order.OrderID, session.RazorpayOrderID, amount, currency)
	return b.gateway.Open(ctx, CheckoutOptions{
		KeyID:          session.KeyID,
		GatewayOrderID: session.RazorpayOrderID,
		OrderID:        order.OrderID,
		Amount:         amount,
		Currency:       currency,
		Prefill:        order.Customer,
	})
}
