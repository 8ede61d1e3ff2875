package payments

import (
	"context"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// RepositoryPort defines data access for the reconciler. The payment
// insert commits on its own so the payment row survives a later ledger
// failure; everything that touches items and order aggregates runs
// through WithTx.
type RepositoryPort interface {
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error)
	GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error)
	GetItem(ctx context.Context, itemID int64) (*ItemState, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the ledger writes that run inside one transaction.
type TxRepository interface {
	// IncrementItemAdvance applies a server-side atomic delta to the
	// item's advance. With guard set the statement refuses to push the
	// advance past the item's value and reports ErrOverpayment.
	IncrementItemAdvance(ctx context.Context, orderID, itemID int64, delta ledger.Money, guard bool) error
	ListItems(ctx context.Context, orderID int64) ([]ItemState, error)
	UpdateOrderTotals(ctx context.Context, orderID int64, totals ledger.Totals, advance ledger.Money) error
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id int64) error
}
