package payments

import (
	"time"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// Purpose classifies what a payment settles.
type Purpose string

const (
	PurposeAdvance         Purpose = "advance"
	PurposeFinalRemaining  Purpose = "final_remaining"
	PurposeDeliveryCharges Purpose = "delivery_charges"
	PurposeCOD             Purpose = "cod"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAdvance, PurposeFinalRemaining, PurposeDeliveryCharges, PurposeCOD:
		return true
	}
	return false
}

// Payment is an independent ledger entry. A nil ItemID means the payment
// applies to the order as a whole; a set ItemID means it raised exactly
// that item's advance. IsAutomatic marks the system-generated rows that
// document advances entered on the order creation form.
type Payment struct {
	ID            int64        `json:"id"`
	Number        string       `json:"number"`
	CustomerID    int64        `json:"customer_id"`
	OrderID       int64        `json:"order_id"`
	ItemID        *int64       `json:"item_id,omitempty"`
	Amount        ledger.Money `json:"amount"`
	Purpose       Purpose      `json:"purpose"`
	BankAccount   string       `json:"bank_account"`
	Tally         bool         `json:"tally"`
	ScreenshotRef *string      `json:"screenshot_ref,omitempty"`
	PaymentDate   time.Time    `json:"payment_date"`
	IsAutomatic   bool         `json:"is_automatic"`
	CreatedBy     int64        `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OrderRef is the slice of an order the reconciler needs: identity,
// charges for re-aggregation, and the customer the payment is booked to.
type OrderRef struct {
	ID              int64
	CustomerID      int64
	DeliveryCharges ledger.Money
}

// ItemState is the reconciler's view of one order item.
type ItemState struct {
	ID             int64
	OrderID        int64
	Quantity       int64
	Price          ledger.Money
	AdvancePayment ledger.Money
}

// Value returns price times quantity.
func (i ItemState) Value() ledger.Money {
	return i.Price.MulQty(i.Quantity)
}

func lineAmounts(items []ItemState) []ledger.LineAmounts {
	lines := make([]ledger.LineAmounts, 0, len(items))
	for _, item := range items {
		lines = append(lines, ledger.LineAmounts{
			Price:    item.Price,
			Quantity: item.Quantity,
			Advance:  item.AdvancePayment,
		})
	}
	return lines
}
