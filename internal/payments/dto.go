package payments

import (
	"fmt"
	"time"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// RecordPaymentRequest records a manual payment against an order and,
// optionally, one of its items.
type RecordPaymentRequest struct {
	OrderID       int64        `json:"order_id" validate:"required,gt=0"`
	ItemID        *int64       `json:"item_id,omitempty" validate:"omitempty,gt=0"`
	Amount        ledger.Money `json:"amount"`
	Purpose       Purpose      `json:"purpose" validate:"required"`
	BankAccount   string       `json:"bank_account" validate:"required"`
	Tally         bool         `json:"tally"`
	ScreenshotRef *string      `json:"screenshot_ref,omitempty"`
	PaymentDate   time.Time    `json:"payment_date"`
}

// UpdatePaymentRequest edits a recorded payment. A changed amount shifts
// the targeted item's advance by the difference and re-aggregates.
type UpdatePaymentRequest struct {
	Amount        *ledger.Money `json:"amount,omitempty"`
	Purpose       *Purpose      `json:"purpose,omitempty"`
	BankAccount   *string       `json:"bank_account,omitempty"`
	Tally         *bool         `json:"tally,omitempty"`
	ScreenshotRef *string       `json:"screenshot_ref,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
}

// ListPaymentsRequest filters the payment listing.
type ListPaymentsRequest struct {
	OrderID    *int64
	CustomerID *int64
	Purpose    *Purpose
	Page       int
	PerPage    int
}

// ValidateRecordRequest rejects bad input before any write.
func ValidateRecordRequest(req RecordPaymentRequest) error {
	if !req.Amount.GreaterThan(ledger.Zero()) {
		return ErrInvalidAmount
	}
	if !req.Purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, req.Purpose)
	}
	return nil
}

// ValidateUpdateRequest applies the same rules to an edit.
func ValidateUpdateRequest(req UpdatePaymentRequest) error {
	if req.Amount != nil && !req.Amount.GreaterThan(ledger.Zero()) {
		return ErrInvalidAmount
	}
	if req.Purpose != nil && !req.Purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, *req.Purpose)
	}
	return nil
}
