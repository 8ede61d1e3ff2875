package preorders

import (
	"time"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// OrderStatus enumerates pre-order lifecycle states. The engine persists
// whatever reassignment the UI asks for; no transition is blocked here.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusOrdered    OrderStatus = "ordered"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusOutOfStock OrderStatus = "out_of_stock"
)

// Valid reports whether s is a known status value.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOrdered, StatusShipped, StatusDelivered, StatusCancelled, StatusOutOfStock:
		return true
	}
	return false
}

// Order is the aggregate root. Subtotal, TotalAmount, AdvancePayment and
// RemainingAmount are derived state: recomputed from items and payments,
// never hand-entered.
type Order struct {
	ID         int64       `json:"id"`
	CustomerID int64       `json:"customer_id"`
	FlightID   *int64      `json:"flight_id,omitempty"`
	Status     OrderStatus `json:"status"`

	Subtotal        ledger.Money `json:"subtotal"`
	DeliveryCharges ledger.Money `json:"delivery_charges"`
	CODAmount       ledger.Money `json:"cod_amount"`
	TotalAmount     ledger.Money `json:"total_amount"`
	AdvancePayment  ledger.Money `json:"advance_payment"`
	RemainingAmount ledger.Money `json:"remaining_amount"`

	Notes     *string   `json:"notes,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem belongs to exactly one order. Its id is stable across edits
// so payments recorded against it stay valid.
type OrderItem struct {
	ID             int64        `json:"id"`
	OrderID        int64        `json:"order_id"`
	ProductName    string       `json:"product_name"`
	Shade          string       `json:"shade,omitempty"`
	Size           string       `json:"size,omitempty"`
	Link           string       `json:"link,omitempty"`
	Quantity       int64        `json:"quantity"`
	Price          ledger.Money `json:"price"`
	AdvancePayment ledger.Money `json:"advance_payment"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Value returns the item's full value, price times quantity.
func (i OrderItem) Value() ledger.Money {
	return i.Price.MulQty(i.Quantity)
}

// LineAmounts projects the order's items into the aggregator's view.
func LineAmounts(items []OrderItem) []ledger.LineAmounts {
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

// ItemDraft is a user-edited item row that may or may not reference an
// existing item id.
type ItemDraft struct {
	ID             *int64       `json:"id,omitempty"`
	ProductName    string       `json:"product_name"`
	Shade          string       `json:"shade,omitempty"`
	Size           string       `json:"size,omitempty"`
	Link           string       `json:"link,omitempty"`
	Quantity       int64        `json:"quantity"`
	Price          ledger.Money `json:"price"`
	AdvancePayment ledger.Money `json:"advance_payment"`
}

// IsBlank reports whether the draft carries no content at all. Blank rows
// come from empty form lines and are dropped before diffing.
func (d ItemDraft) IsBlank() bool {
	return d.ProductName == "" && d.Shade == "" && d.Size == "" && d.Link == "" &&
		d.Quantity == 0 && d.Price.IsZero()
}
