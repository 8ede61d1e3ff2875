package preorders

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
)

type memRepo struct {
	orders   map[int64]*Order
	items    map[int64]*OrderItem
	payments map[int64]int

	nextOrderID int64
	nextItemID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:   map[int64]*Order{},
		items:    map[int64]*OrderItem{},
		payments: map[int64]int{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *o
	out.Items = nil
	for _, item := range m.items {
		if item.OrderID == id {
			out.Items = append(out.Items, *item)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return &out, nil
}

func (m *memRepo) List(_ context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if req.CustomerID != nil && o.CustomerID != *req.CustomerID {
			continue
		}
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) ListIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memRepo) CountPayments(_ context.Context, orderID int64) (int, error) {
	return m.payments[orderID], nil
}

func (m *memRepo) UpdateTotals(_ context.Context, id int64, totals ledger.Totals, advance ledger.Money) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Subtotal = totals.Subtotal
	o.TotalAmount = totals.Total
	o.RemainingAmount = totals.Remaining
	o.AdvancePayment = advance
	return nil
}

func (m *memRepo) CreateOrder(_ context.Context, o Order) (int64, error) {
	m.nextOrderID++
	o.ID = m.nextOrderID
	m.orders[o.ID] = &o
	return o.ID, nil
}

func (m *memRepo) UpdateOrder(_ context.Context, id int64, patch OrderPatch) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.ClearFlight {
		o.FlightID = nil
	} else if patch.FlightID != nil {
		o.FlightID = patch.FlightID
	}
	if patch.DeliveryCharges != nil {
		o.DeliveryCharges = *patch.DeliveryCharges
	}
	if patch.CODAmount != nil {
		o.CODAmount = *patch.CODAmount
	}
	if patch.Notes != nil {
		o.Notes = patch.Notes
	}
	return nil
}

func (m *memRepo) InsertItem(_ context.Context, item OrderItem) (int64, error) {
	m.nextItemID++
	item.ID = m.nextItemID
	m.items[item.ID] = &item
	return item.ID, nil
}

func (m *memRepo) UpdateItem(_ context.Context, item OrderItem) error {
	stored, ok := m.items[item.ID]
	if !ok || stored.OrderID != item.OrderID {
		return ErrItemNotFound
	}
	item.AdvancePayment = stored.AdvancePayment
	m.items[item.ID] = &item
	return nil
}

func (m *memRepo) DeleteItem(_ context.Context, itemID int64) error {
	delete(m.items, itemID)
	return nil
}

func (m *memRepo) DeleteItems(_ context.Context, orderID int64) error {
	for id, item := range m.items {
		if item.OrderID == orderID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memRepo) DeletePayments(_ context.Context, orderID int64) error {
	delete(m.payments, orderID)
	return nil
}

func (m *memRepo) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

type checkerFunc func(ctx context.Context, id int64) (bool, error)

func (f checkerFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

func allowAll() checkerFunc {
	return func(context.Context, int64) (bool, error) { return true, nil }
}

type autopayCall struct {
	orderID, itemID int64
	amount          ledger.Money
}

type fakeAutopay struct {
	calls []autopayCall
}

func (f *fakeAutopay) RecordAutomatic(_ context.Context, orderID, itemID, _ int64, amount ledger.Money, _ int64) error {
	f.calls = append(f.calls, autopayCall{orderID: orderID, itemID: itemID, amount: amount})
	return nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, allowAll(), allowAll(), slog.Default())
}

func TestCreateDerivesTotals(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:      7,
		DeliveryCharges: ledger.FromInt(200),
		Items: []ItemDraft{
			{ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1000)},
		},
	}, 1)
	require.NoError(t, err)

	require.Equal(t, "2000", order.Subtotal.String())
	require.Equal(t, "2200", order.TotalAmount.String())
	require.Equal(t, "2200", order.RemainingAmount.String())
	require.True(t, order.AdvancePayment.IsZero())
	require.Equal(t, StatusPending, order.Status)
	require.Len(t, order.Items, 1)
}

func TestCreateRecordsAutomaticAdvancePayments(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	autopay := &fakeAutopay{}
	svc.SetAutoPayments(autopay)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:      7,
		DeliveryCharges: ledger.FromInt(200),
		Items: []ItemDraft{
			{ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1000), AdvancePayment: ledger.FromInt(500)},
			{ProductName: "Toner", Quantity: 1, Price: ledger.FromInt(300)},
		},
	}, 1)
	require.NoError(t, err)

	require.Equal(t, "500", order.AdvancePayment.String())
	require.Equal(t, "2000", order.RemainingAmount.String()) // 2300 + 200 - 500
	require.Len(t, autopay.calls, 1)
	require.Equal(t, order.ID, autopay.calls[0].orderID)
	require.Equal(t, "500", autopay.calls[0].amount.String())
}

func TestCreateSkipsBlankRowsButNeedsOneItem(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []ItemDraft{{}, {}},
	}, 1)
	require.ErrorIs(t, err, ErrNoItems)
}

func TestCreateRejectsUnknownCustomer(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, checkerFunc(func(context.Context, int64) (bool, error) {
		return false, nil
	}), allowAll(), slog.Default())

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []ItemDraft{{ProductName: "Serum", Quantity: 1, Price: ledger.FromInt(100)}},
	}, 1)
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestUpdatePriceEditPreservesItemAdvance(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:      7,
		DeliveryCharges: ledger.FromInt(200),
		Items: []ItemDraft{
			{ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1000), AdvancePayment: ledger.FromInt(500)},
		},
	}, 1)
	require.NoError(t, err)

	itemID := order.Items[0].ID
	updated, err := svc.Update(context.Background(), order.ID, UpdateOrderRequest{
		Items: &[]ItemDraft{
			{ID: &itemID, ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1200)},
		},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	require.Equal(t, itemID, updated.Items[0].ID)
	require.Equal(t, "1200", updated.Items[0].Price.String())
	require.Equal(t, "500", updated.Items[0].AdvancePayment.String())
	require.Equal(t, "2400", updated.Subtotal.String())
	require.Equal(t, "2600", updated.TotalAmount.String())
	require.Equal(t, "2100", updated.RemainingAmount.String())
}

func TestUpdateWithoutItemsLeavesTotalsAlone(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:      7,
		DeliveryCharges: ledger.FromInt(200),
		Items:           []ItemDraft{{ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1000)}},
	}, 1)
	require.NoError(t, err)

	notes := "ships with next consignment"
	updated, err := svc.Update(context.Background(), order.ID, UpdateOrderRequest{Notes: &notes})
	require.NoError(t, err)

	require.Equal(t, order.Subtotal.String(), updated.Subtotal.String())
	require.Equal(t, order.TotalAmount.String(), updated.TotalAmount.String())
	require.Equal(t, order.RemainingAmount.String(), updated.RemainingAmount.String())
	require.Equal(t, &notes, updated.Notes)
}

func TestChangeStatusLeavesMoneyUntouched(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []ItemDraft{{ProductName: "Serum", Quantity: 1, Price: ledger.FromInt(100)}},
	}, 1)
	require.NoError(t, err)

	require.NoError(t, svc.ChangeStatus(context.Background(), order.ID, StatusShipped))

	after, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, after.Status)
	require.Equal(t, order.TotalAmount.String(), after.TotalAmount.String())
	require.Equal(t, order.RemainingAmount.String(), after.RemainingAmount.String())

	require.ErrorIs(t, svc.ChangeStatus(context.Background(), order.ID, OrderStatus("lost")), ErrInvalidStatus)
}

func TestRecomputeIsIdempotentAndFixesDrift(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	metrics := observability.NewMetrics()
	svc.SetMetrics(metrics)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:      7,
		DeliveryCharges: ledger.FromInt(200),
		Items:           []ItemDraft{{ProductName: "Serum", Quantity: 2, Price: ledger.FromInt(1000)}},
	}, 1)
	require.NoError(t, err)

	// Simulate a stale stored aggregate.
	repo.orders[order.ID].TotalAmount = ledger.FromInt(9999)

	first, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "2200", first.Total.String())

	second, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, first.Subtotal.String(), second.Subtotal.String())
	require.Equal(t, first.Total.String(), second.Total.String())
	require.Equal(t, first.Remaining.String(), second.Remaining.String())

	after, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "2200", after.TotalAmount.String())
}

func TestDeleteBlockedByPaymentsUnlessCascade(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []ItemDraft{{ProductName: "Serum", Quantity: 1, Price: ledger.FromInt(100)}},
	}, 1)
	require.NoError(t, err)
	repo.payments[order.ID] = 2

	err = svc.Delete(context.Background(), order.ID, false)
	require.ErrorIs(t, err, ErrPaymentsExist)

	require.NoError(t, svc.Delete(context.Background(), order.ID, true))
	_, err = svc.Get(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.items)
	require.Zero(t, repo.payments[order.ID])
}
