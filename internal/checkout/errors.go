package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOperationInProgress = errors.New("another checkout operation is in progress")
	ErrDuplicateOrder      = errors.New("this order has already been placed")
	ErrInvalidCoupon       = errors.New("invalid coupon code")
	ErrUnauthorized        = errors.New("your session has expired, please log in again")
	ErrPrepaidUnavailable  = errors.New("online payment is unavailable, please use cash on delivery")
	ErrOrderNotPending     = errors.New("order is no longer awaiting payment")
	ErrSessionExpired      = errors.New("your payment session has expired, please place the order again")
	ErrNoPendingPayment    = errors.New("no payment is awaiting completion")
	ErrIllegalTransition   = errors.New("illegal checkout state transition")
)

// Kind classifies checkout errors by how the storefront should react.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation errors are local and field scoped; fix the input.
	KindValidation
	// KindTransient errors survived every retry; try again later.
	KindTransient
	// KindAuthorization errors cleared the session; log in again.
	KindAuthorization
	// KindBusiness errors are shown verbatim and never retried.
	KindBusiness
	// KindAmbiguous errors mean the payment outcome is unknown until the
	// order is reconciled.
	KindAmbiguous
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindAuthorization:
		return "authorization"
	case KindBusiness:
		return "business"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// KindOf reports the Kind of err.
func KindOf(err error) Kind {
	var (
		verr *ValidationError
		terr *TransientError
		berr *BusinessError
		gerr *GatewayError
		ierr *InterruptedError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.As(err, &ierr):
		return KindAmbiguous
	case errors.As(err, &terr):
		return KindTransient
	case errors.As(err, &berr), errors.As(err, &gerr),
		errors.Is(err, ErrDuplicateOrder), errors.Is(err, ErrInvalidCoupon),
		errors.Is(err, ErrSessionExpired), errors.Is(err, ErrPrepaidUnavailable),
		errors.Is(err, ErrAlreadyPaid):
		return KindBusiness
	default:
		return KindUnknown
	}
}

// FieldError is a single violated draft rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists the violated rules in the order they are checked.
type ValidationError struct {
	Errors []FieldError
}

// First is the message shown to the customer.
func (e *ValidationError) First() FieldError {
	if len(e.Errors) == 0 {
		return FieldError{}
	}
	return e.Errors[0]
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	return e.First().Message
}

// TransientError is a network failure or server error that outlasted the
// retry policy.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: could not reach the store, please try again later: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// BusinessError is a request the backend understood and refused.
type BusinessError struct {
	Status  int
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request rejected with status %d", e.Status)
}

func (e *BusinessError) Unwrap() error { return e.Err }

// GatewayError is a payment the gateway declined. Description is the
// gateway's own human-readable reason.
type GatewayError struct {
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Description
}

// InterruptedError is returned while a payment awaits completion. The
// pending transaction is kept so the customer can retry or cancel.
type InterruptedError struct {
	OrderID string
	Cause   error
}

func (e *InterruptedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "payment for order %s is awaiting completion", e.OrderID)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	b.WriteString(": Retry Payment or Cancel Order")
	return b.String()
}

func (e *InterruptedError) Unwrap() error { return e.Cause }
