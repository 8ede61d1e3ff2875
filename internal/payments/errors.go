package payments

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("payments: payment not found")
	ErrOrderNotFound = errors.New("payments: order not found")
	ErrItemNotFound  = errors.New("payments: item not found on order")
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	ErrInvalidInput  = errors.New("payments: invalid input")
	ErrOverpayment   = errors.New("payments: advance would exceed item value")

	// ErrLedgerStale marks the partial-failure state: the payment row
	// committed but the item/order aggregates did not. The payment is the
	// source of truth; the ledger can be repaired with a recompute.
	ErrLedgerStale = errors.New("payments: payment recorded but ledger not updated")
)

// StaleLedgerError carries the committed payment id so the caller can
// reconcile manually.
type StaleLedgerError struct {
	PaymentID int64
	cause     error
}

func (e *StaleLedgerError) Error() string {
	return fmt.Sprintf("%v (payment %d): %v", ErrLedgerStale, e.PaymentID, e.cause)
}

func (e *StaleLedgerError) Is(target error) bool { return target == ErrLedgerStale }

func (e *StaleLedgerError) Unwrap() error { return e.cause }
