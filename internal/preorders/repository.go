package preorders

import (
	"context"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// RepositoryPort defines data access for pre-orders. Services depend on
// this; the pgx implementation lives in repo.sql.go.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	ListIDs(ctx context.Context) ([]int64, error)
	CountPayments(ctx context.Context, orderID int64) (int, error)
	UpdateTotals(ctx context.Context, id int64, totals ledger.Totals, advance ledger.Money) error
}

// TxRepository exposes the write operations that run inside one
// transaction.
type TxRepository interface {
	CreateOrder(ctx context.Context, o Order) (int64, error)
	UpdateOrder(ctx context.Context, id int64, patch OrderPatch) error
	UpdateTotals(ctx context.Context, id int64, totals ledger.Totals, advance ledger.Money) error
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	UpdateItem(ctx context.Context, item OrderItem) error
	DeleteItem(ctx context.Context, itemID int64) error
	DeletePayments(ctx context.Context, orderID int64) error
	DeleteItems(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, id int64) error
}

// OrderPatch carries the optional non-derived order fields an edit can
// touch. Nil means leave unchanged; ClearFlight detaches the flight.
type OrderPatch struct {
	Status          *OrderStatus
	FlightID        *int64
	ClearFlight     bool
	DeliveryCharges *ledger.Money
	CODAmount       *ledger.Money
	Notes           *string
}

// IsEmpty reports whether the patch changes nothing.
func (p OrderPatch) IsEmpty() bool {
	return p.Status == nil && p.FlightID == nil && !p.ClearFlight &&
		p.DeliveryCharges == nil && p.CODAmount == nil && p.Notes == nil
}
