package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/preorders"
)

type staticSource struct {
	orders []preorders.Order
}

func (s staticSource) List(_ context.Context, req preorders.ListOrdersRequest) ([]preorders.Order, int, error) {
	if req.Page > 1 {
		return nil, len(s.orders), nil
	}
	return s.orders, len(s.orders), nil
}

func TestWriteOrdersCSV(t *testing.T) {
	flight := int64(3)
	source := staticSource{orders: []preorders.Order{
		{
			ID: 1, CustomerID: 7, FlightID: &flight, Status: preorders.StatusOrdered,
			Subtotal:        ledger.FromInt(2000),
			DeliveryCharges: ledger.FromInt(200),
			TotalAmount:     ledger.FromInt(2200),
			AdvancePayment:  ledger.FromInt(500),
			RemainingAmount: ledger.FromInt(1700),
			CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID: 2, CustomerID: 8, Status: preorders.StatusPending,
			Subtotal:        ledger.FromInt(1000),
			TotalAmount:     ledger.FromInt(1000),
			AdvancePayment:  ledger.FromInt(1200),
			RemainingAmount: ledger.FromInt(-200),
			CreatedAt:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}}

	var sb strings.Builder
	err := WriteOrdersCSV(context.Background(), &sb, source, preorders.ListOrdersRequest{})
	require.NoError(t, err)

	out := sb.String()
	lines := strings.Split(strings.TrimSpace(out), "\r\n")
	require.Len(t, lines, 5) // two comments, header, two rows

	require.True(t, strings.HasPrefix(lines[0], "# Report:"))
	require.Contains(t, lines[2], "Order ID")
	require.Contains(t, lines[3], "1,7,3,ordered,2000,200,0,2200,500,1700,false")
	// Overpaid order: remaining clamps to 0 for display, flag set.
	require.Contains(t, lines[4], "2,8,,pending,1000,0,0,1000,1200,0,true")
}
