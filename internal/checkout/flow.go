package checkout

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"ecostore/internal/models"
)

// Step is the checkout screen the customer is on.
type Step int

const (
	StepDetails Step = iota
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// Flow runs a checkout from draft to confirmation. Only one operation runs
// at a time; a concurrent call returns ErrOperationInProgress.
type Flow struct {
	api      Backend
	local    *LocalState
	bridge   *Bridge
	recovery *Recovery
	verifier *Verifier
	draft    *DraftBuilder

	busy atomic.Bool

	mu    sync.Mutex
	step  Step
	order *models.Order
}

// NewFlow wires the checkout components. gateway may be nil, in which case
// only cash on delivery is offered.
func NewFlow(api Backend, gateway Gateway, local *LocalState) *Flow {
	bridge := NewBridge(api, gateway, local)
	recovery := NewRecovery(api, bridge, local)
	return &Flow{
		api:      api,
		local:    local,
		bridge:   bridge,
		recovery: recovery,
		verifier: NewVerifier(api, recovery),
		draft:    NewDraftBuilder(),
	}
}

func (f *Flow) Draft() *DraftBuilder { return f.draft }

func (f *Flow) Recovery() *Recovery { return f.recovery }

// PaymentState is the state of the current prepaid payment.
func (f *Flow) PaymentState() State { return f.recovery.State() }

// PrepaidAvailable reports whether the payment gateway loaded.
func (f *Flow) PrepaidAvailable(ctx context.Context) bool {
	return f.bridge.PrepaidAvailable(ctx)
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Order is the backend's copy of the order being paid or confirmed.
func (f *Flow) Order() *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

func (f *Flow) set(step Step, order *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = step
	f.order = order
}

func (f *Flow) acquire() (func(), error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInProgress
	}
	return func() { f.busy.Store(false) }, nil
}

// Start fills the draft from the stored cart and restores an interrupted
// payment, which puts the flow on the payment step.
func (f *Flow) Start(ctx context.Context) (State, error) {
	release, err := f.acquire()
	if err != nil {
		return f.recovery.State(), err
	}
	defer release()

	items, err := f.local.Cart(ctx)
	if err != nil {
		return f.recovery.State(), err
	}
	f.draft.SetItems(items)

	st, err := f.recovery.Resume(ctx)
	if err != nil {
		return st, err
	}
	if st.Phase == Interrupted {
		f.set(StepPayment, nil)
	}
	return st, nil
}

// Continue validates the draft and moves to the payment step.
func (f *Flow) Continue() error {
	if err := f.draft.Validate(); err != nil {
		return err
	}
	f.set(StepPayment, f.Order())
	return nil
}

// PlaceOrder validates and submits the draft. Cash on delivery orders are
// confirmed at once; prepaid orders go through the gateway and are verified.
func (f *Flow) PlaceOrder(ctx context.Context) (*models.Order, error) {
	release, err := f.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if st := f.recovery.State(); st.Phase != NoPending {
		if st.Pending != nil {
			return nil, &InterruptedError{OrderID: st.Pending.OrderID}
		}
		return nil, ErrDuplicateOrder
	}
	if err := f.draft.Validate(); err != nil {
		f.set(StepDetails, nil)
		return nil, err
	}
	f.set(StepPayment, nil)

	draft := f.draft.Freeze()
	if draft.PaymentMethod == models.PaymentGatewayPrepaid && !f.bridge.PrepaidAvailable(ctx) {
		f.draft.SetPaymentMethod(models.PaymentCashOnDelivery)
		return nil, ErrPrepaidUnavailable
	}

	order, err := f.api.CreateOrder(ctx, draft)
	if err != nil {
		return nil, err
	}
	log.Printf("Placed order %s (%s, total %.2f)", order.OrderID, order.PaymentMethod, order.Total)
	f.set(StepPayment, order)

	if order.PaymentMethod != models.PaymentGatewayPrepaid {
		f.complete(ctx, order)
		return order, nil
	}

	res, err := f.recovery.Pay(ctx, order)
	if err != nil {
		return nil, err
	}
	return f.verify(ctx, res)
}

// RetryPayment re-opens the gateway for the order awaiting payment.
func (f *Flow) RetryPayment(ctx context.Context) (*models.Order, error) {
	release, err := f.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var res GatewayResult
	st := f.recovery.State()
	switch {
	case st.Phase == Interrupted:
		res, err = f.recovery.Retry(ctx, st.Pending.OrderID)
		var paid *AlreadyPaidError
		switch {
		case errors.As(err, &paid):
			f.complete(ctx, paid.Order)
			return paid.Order, nil
		case errors.Is(err, ErrSessionExpired):
			f.startOver()
		}
	case st.Phase == NoPending && f.Order() != nil && f.Order().IsPending():
		// the gateway session was never opened for this order
		res, err = f.recovery.Pay(ctx, f.Order())
	default:
		return nil, ErrNoPendingPayment
	}
	if err != nil {
		return nil, err
	}
	return f.verify(ctx, res)
}

// CancelPayment voids the order awaiting payment and returns to the payment
// step with a fresh order id.
func (f *Flow) CancelPayment(ctx context.Context) error {
	release, err := f.acquire()
	if err != nil {
		return err
	}
	defer release()

	st := f.recovery.State()
	if st.Phase != Interrupted {
		return ErrNoPendingPayment
	}
	if err := f.recovery.Cancel(ctx, st.Pending.OrderID); err != nil {
		return err
	}
	f.draft.RenewOrderID()
	f.set(StepPayment, nil)
	return nil
}

// CheckStatus reconciles the order awaiting payment with the backend.
func (f *Flow) CheckStatus(ctx context.Context) (*models.Order, error) {
	release, err := f.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	st := f.recovery.State()
	if st.Phase != Interrupted {
		return nil, ErrNoPendingPayment
	}
	order, err := f.recovery.Reconcile(ctx, st.Pending.OrderID)
	return f.settle(ctx, order, err)
}

// Reset starts a new checkout after a confirmed order.
func (f *Flow) Reset() error {
	release, err := f.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := f.recovery.Reset(); err != nil {
		return err
	}
	f.draft = NewDraftBuilder()
	f.set(StepDetails, nil)
	return nil
}

func (f *Flow) verify(ctx context.Context, res GatewayResult) (*models.Order, error) {
	order, err := f.verifier.Verify(ctx, res.Callback)
	return f.settle(ctx, order, err)
}

func (f *Flow) settle(ctx context.Context, order *models.Order, err error) (*models.Order, error) {
	switch {
	case err == nil:
		f.complete(ctx, order)
		return order, nil
	case errors.Is(err, ErrSessionExpired):
		f.startOver()
	}
	return nil, err
}

// complete shows the confirmation and clears the records a finished
// checkout leaves behind.
func (f *Flow) complete(ctx context.Context, order *models.Order) {
	if err := f.local.ClearCart(ctx); err != nil {
		log.Printf("Warning: failed to clear cart: %v", err)
	}
	if err := f.local.ClearPendingTransaction(ctx); err != nil {
		log.Printf("Warning: failed to clear pending payment: %v", err)
	}
	f.set(StepConfirmation, order)
}

// startOver follows an expired payment session: the customer places the
// order again under a new id.
func (f *Flow) startOver() {
	if err := f.recovery.Reset(); err != nil {
		log.Printf("Warning: %v", err)
	}
	f.draft.RenewOrderID()
	f.set(StepPayment, nil)
}
