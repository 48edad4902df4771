package checkout

import (
	"fmt"

	"ecostore/internal/models"
)

// Phase is where a prepaid payment stands from the storefront's point of
// view.
type Phase int

const (
	// NoPending means no payment is awaiting completion.
	NoPending Phase = iota
	// AwaitingGateway means a pending transaction is stored and the gateway
	// checkout is open or about to open.
	AwaitingGateway
	// Interrupted means the checkout was dismissed or its outcome is
	// unknown. The customer may retry or cancel.
	Interrupted
	// Reconciling means the order's status is being fetched from the
	// backend.
	Reconciling
	// Resolved means the backend reported a terminal outcome.
	Resolved
)

func (p Phase) String() string {
	switch p {
	case NoPending:
		return "NoPending"
	case AwaitingGateway:
		return "AwaitingGateway"
	case Interrupted:
		return "Interrupted"
	case Reconciling:
		return "Reconciling"
	case Resolved:
		return "Resolved"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Resolution is the outcome of a Resolved payment.
type Resolution int

const (
	Unresolved Resolution = iota
	// Done means the payment succeeded.
	Done
	// Expired means the order is gone or no longer payable.
	Expired
)

func (r Resolution) String() string {
	switch r {
	case Done:
		return "done"
	case Expired:
		return "expired"
	default:
		return "unresolved"
	}
}

// State is the payment state. Pending is set exactly when Phase is
// AwaitingGateway, Interrupted or Reconciling; Resolution only when Phase is
// Resolved.
type State struct {
	Phase      Phase
	Resolution Resolution
	Pending    *models.PendingTransaction
}

// EventKind names a payment state transition.
type EventKind int

const (
	// EventBegin: a pending transaction was stored before opening the gateway.
	EventBegin EventKind = iota
	// EventRestore: a stored pending transaction was found on startup.
	EventRestore
	// EventInterrupt: the gateway was dismissed, failed, or verification was
	// inconclusive.
	EventInterrupt
	// EventRetry: the customer retries an interrupted payment.
	EventRetry
	// EventCheck: a status query was started.
	EventCheck
	// EventStillPending: the backend still awaits payment.
	EventStillPending
	// EventConfirm: the payment was verified or reconciled as successful.
	EventConfirm
	// EventExpire: the backend no longer holds a payable order.
	EventExpire
	// EventCancel: the pending order was voided.
	EventCancel
	// EventReset: a resolved payment is acknowledged and a new checkout may
	// start.
	EventReset
)

var eventNames = map[EventKind]string{
	EventBegin:        "begin",
	EventRestore:      "restore",
	EventInterrupt:    "interrupt",
	EventRetry:        "retry",
	EventCheck:        "check",
	EventStillPending: "still-pending",
	EventConfirm:      "confirm",
	EventExpire:       "expire",
	EventCancel:       "cancel",
	EventReset:        "reset",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event drives Transition. Pending is required for EventBegin, EventRestore
// and EventRetry.
type Event struct {
	Kind    EventKind
	Pending *models.PendingTransaction
}

// Transition is the payment state reducer. It returns ErrIllegalTransition
// for any event the current phase does not accept.
func Transition(s State, ev Event) (State, error) {
	illegal := func() (State, error) {
		return s, fmt.Errorf("%w: %s in %s", ErrIllegalTransition, ev.Kind, s.Phase)
	}
	needPending := func() (State, error) {
		return s, fmt.Errorf("%w: %s without a pending transaction", ErrIllegalTransition, ev.Kind)
	}

	switch s.Phase {
	case NoPending:
		switch ev.Kind {
		case EventBegin:
			if ev.Pending == nil {
				return needPending()
			}
			return State{Phase: AwaitingGateway, Pending: ev.Pending}, nil
		case EventRestore:
			if ev.Pending == nil {
				return needPending()
			}
			return State{Phase: Interrupted, Pending: ev.Pending}, nil
		}
	case AwaitingGateway:
		switch ev.Kind {
		case EventInterrupt:
			return State{Phase: Interrupted, Pending: s.Pending}, nil
		case EventConfirm:
			return State{Phase: Resolved, Resolution: Done}, nil
		}
	case Interrupted:
		switch ev.Kind {
		case EventRetry:
			if ev.Pending == nil {
				return needPending()
			}
			return State{Phase: AwaitingGateway, Pending: ev.Pending}, nil
		case EventCheck:
			return State{Phase: Reconciling, Pending: s.Pending}, nil
		case EventCancel:
			return State{Phase: NoPending}, nil
		}
	case Reconciling:
		switch ev.Kind {
		case EventConfirm:
			return State{Phase: Resolved, Resolution: Done}, nil
		case EventExpire:
			return State{Phase: Resolved, Resolution: Expired}, nil
		case EventStillPending, EventInterrupt:
			return State{Phase: Interrupted, Pending: s.Pending}, nil
		}
	case Resolved:
		if ev.Kind == EventReset {
			return State{Phase: NoPending}, nil
		}
	}
	return illegal()
}
