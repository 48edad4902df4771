package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"ecostore/internal/models"
)

var ErrAlreadyPaid = errors.New("this order has already been paid")

// AlreadyPaidError carries the order a retry found already paid. It matches
// ErrAlreadyPaid.
type AlreadyPaidError struct {
	Order *models.Order
}

func (e *AlreadyPaidError) Error() string { return ErrAlreadyPaid.Error() }

func (e *AlreadyPaidError) Unwrap() error { return ErrAlreadyPaid }

// Recovery owns the payment state machine. It finds interrupted payments
// from the stored pending transaction and resolves them against the
// backend: retry, cancel, or reconcile the real payment status.
type Recovery struct {
	api    Backend
	bridge *Bridge
	local  *LocalState

	mu    sync.Mutex
	state State
}

func NewRecovery(api Backend, bridge *Bridge, local *LocalState) *Recovery {
	return &Recovery{api: api, bridge: bridge, local: local}
}

// State returns the current payment state.
func (r *Recovery) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recovery) apply(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := Transition(r.state, ev)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

// Resume restores an interrupted payment from the stored pending
// transaction, if there is one.
func (r *Recovery) Resume(ctx context.Context) (State, error) {
	pending, err := r.local.PendingTransaction(ctx)
	if err != nil {
		return r.State(), fmt.Errorf("failed to read pending payment: %w", err)
	}
	if pending != nil && r.State().Phase == NoPending {
		log.Printf("Found interrupted payment for order %s (gateway order %s)", pending.OrderID, pending.GatewayOrderID)
		if err := r.apply(Event{Kind: EventRestore, Pending: pending}); err != nil {
			return r.State(), err
		}
	}
	return r.State(), nil
}

// CheckStatus returns the backend's view of the order, or nil if the
// backend no longer has it.
func (r *Recovery) CheckStatus(ctx context.Context, orderID string) (*models.Order, error) {
	return r.api.PendingOrder(ctx, orderID)
}

// Pay starts the first payment attempt for a placed order.
func (r *Recovery) Pay(ctx context.Context, order *models.Order) (GatewayResult, error) {
	return r.attempt(ctx, order, EventBegin)
}

// Retry re-opens the gateway for an interrupted payment, reusing its order.
// If the backend already settled the order, the payment is resolved instead
// and an *AlreadyPaidError holding the paid order, or ErrSessionExpired, is
// returned.
func (r *Recovery) Retry(ctx context.Context, orderID string) (GatewayResult, error) {
	if r.State().Phase != Interrupted {
		return GatewayResult{}, ErrNoPendingPayment
	}
	order, err := r.CheckStatus(ctx, orderID)
	if err != nil {
		return GatewayResult{}, err
	}
	if order == nil || !order.IsPending() {
		settled, err := r.Reconcile(ctx, orderID)
		if err == nil && settled != nil {
			return GatewayResult{}, &AlreadyPaidError{Order: settled}
		}
		return GatewayResult{}, err
	}
	return r.attempt(ctx, order, EventRetry)
}

func (r *Recovery) attempt(ctx context.Context, order *models.Order, kind EventKind) (GatewayResult, error) {
	res, err := r.bridge.Pay(ctx, order, func(p models.PendingTransaction) error {
		return r.apply(Event{Kind: kind, Pending: &p})
	})
	if err != nil {
		if r.State().Phase == AwaitingGateway {
			r.interrupt()
		}
		return res, err
	}

	switch res.Outcome {
	case OutcomeDismissed:
		log.Printf("Checkout dismissed for order %s", order.OrderID)
		r.interrupt()
		return res, &InterruptedError{OrderID: order.OrderID}
	case OutcomeFailed:
		log.Printf("Payment failed for order %s: %v", order.OrderID, res.Err)
		r.interrupt()
		return res, fmt.Errorf("%w. Retry Payment or Cancel Order", res.Err)
	}
	return res, nil
}

func (r *Recovery) interrupt() {
	if err := r.apply(Event{Kind: EventInterrupt}); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// Confirm records a verified payment and clears the pending transaction.
func (r *Recovery) Confirm(ctx context.Context) error {
	if err := r.apply(Event{Kind: EventConfirm}); err != nil {
		return err
	}
	r.clearPending(ctx)
	return nil
}

// Inconclusive records that verification could not confirm the payment.
func (r *Recovery) Inconclusive() {
	r.interrupt()
}

// Reconcile asks the backend for the order's true payment status. A paid
// order resolves as done and is returned. An order that is gone or no longer
// payable resolves as expired with ErrSessionExpired. An order still
// awaiting payment stays interrupted with an *InterruptedError. If the
// backend cannot be reached the pending transaction is kept.
func (r *Recovery) Reconcile(ctx context.Context, orderID string) (*models.Order, error) {
	if err := r.apply(Event{Kind: EventCheck}); err != nil {
		return nil, err
	}

	order, err := r.CheckStatus(ctx, orderID)
	if err != nil {
		r.interrupt()
		return nil, err
	}

	switch {
	case order != nil && order.PaymentStatus == models.PaymentSuccess:
		log.Printf("Order %s reconciled as paid", orderID)
		if err := r.apply(Event{Kind: EventConfirm}); err != nil {
			return nil, err
		}
		r.clearPending(ctx)
		return order, nil
	case order != nil && order.IsPending():
		if err := r.apply(Event{Kind: EventStillPending}); err != nil {
			return nil, err
		}
		return order, &InterruptedError{OrderID: orderID}
	default:
		log.Printf("Order %s is no longer payable, clearing pending payment", orderID)
		if err := r.apply(Event{Kind: EventExpire}); err != nil {
			return nil, err
		}
		r.clearPending(ctx)
		return nil, ErrSessionExpired
	}
}

// Cancel voids the interrupted order on the backend and clears the pending
// transaction.
func (r *Recovery) Cancel(ctx context.Context, orderID string) error {
	if r.State().Phase != Interrupted {
		return ErrNoPendingPayment
	}
	if err := r.api.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	if err := r.local.ClearPendingTransaction(ctx); err != nil {
		return fmt.Errorf("failed to clear pending payment: %w", err)
	}
	log.Printf("Cancelled pending order %s", orderID)
	return r.apply(Event{Kind: EventCancel})
}

// Reset acknowledges a resolved payment so a new checkout can start.
func (r *Recovery) Reset() error {
	if r.State().Phase == NoPending {
		return nil
	}
	return r.apply(Event{Kind: EventReset})
}

func (r *Recovery) clearPending(ctx context.Context) {
	if err := r.local.ClearPendingTransaction(ctx); err != nil {
		log.Printf("Warning: failed to clear pending payment: %v", err)
	}
}
