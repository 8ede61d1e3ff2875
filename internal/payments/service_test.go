package payments

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
)

type memRepo struct {
	payments     map[int64]*Payment
	orders       map[int64]*OrderRef
	items        map[int64]*ItemState
	orderTotals  map[int64]ledger.Totals
	orderAdvance map[int64]ledger.Money
	nextID       int64

	failTx bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		payments:     map[int64]*Payment{},
		orders:       map[int64]*OrderRef{},
		items:        map[int64]*ItemState{},
		orderTotals:  map[int64]ledger.Totals{},
		orderAdvance: map[int64]ledger.Money{},
	}
}

func (m *memRepo) InsertPayment(_ context.Context, p Payment) (int64, error) {
	m.nextID++
	p.ID = m.nextID
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *memRepo) GetPayment(_ context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *memRepo) ListPayments(_ context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.payments {
		if req.OrderID != nil && p.OrderID != *req.OrderID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) GetOrderRef(_ context.Context, orderID int64) (*OrderRef, error) {
	ref, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	out := *ref
	return &out, nil
}

func (m *memRepo) GetItem(_ context.Context, itemID int64) (*ItemState, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	out := *item
	return &out, nil
}

func (m *memRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	if m.failTx {
		return errors.New("tx refused")
	}
	return fn(context.Background(), m)
}

func (m *memRepo) IncrementItemAdvance(_ context.Context, orderID, itemID int64, delta ledger.Money, guard bool) error {
	item, ok := m.items[itemID]
	if !ok || item.OrderID != orderID {
		return ErrItemNotFound
	}
	next := item.AdvancePayment.Add(delta)
	if guard && next.GreaterThan(item.Value()) {
		return ErrOverpayment
	}
	item.AdvancePayment = next.ClampNonNegative()
	return nil
}

func (m *memRepo) ListItems(_ context.Context, orderID int64) ([]ItemState, error) {
	var out []ItemState
	for _, item := range m.items {
		if item.OrderID == orderID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) UpdateOrderTotals(_ context.Context, orderID int64, totals ledger.Totals, advance ledger.Money) error {
	if _, ok := m.orders[orderID]; !ok {
		return ErrOrderNotFound
	}
	m.orderTotals[orderID] = totals
	m.orderAdvance[orderID] = advance
	return nil
}

func (m *memRepo) UpdatePayment(_ context.Context, p Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	m.payments[p.ID] = &p
	return nil
}

func (m *memRepo) DeletePayment(_ context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

// seedOrder sets up one item, price 1000, quantity 2, delivery charges 200.
func seedOrder(repo *memRepo) (orderID, itemID int64) {
	repo.orders[1] = &OrderRef{ID: 1, CustomerID: 7, DeliveryCharges: ledger.FromInt(200)}
	repo.items[10] = &ItemState{ID: 10, OrderID: 1, Quantity: 2, Price: ledger.FromInt(1000)}
	return 1, 10
}

func TestRecordAppliesAdvanceAndReaggregates(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())
	metrics := observability.NewMetrics()
	svc.SetMetrics(metrics)

	p, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(500),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.NoError(t, err)

	require.NotEmpty(t, p.Number)
	require.Equal(t, int64(7), p.CustomerID)
	require.Equal(t, int64(3), p.CreatedBy)
	require.False(t, p.IsAutomatic)

	require.Equal(t, "500", repo.items[itemID].AdvancePayment.String())
	totals := repo.orderTotals[orderID]
	require.Equal(t, "2000", totals.Subtotal.String())
	require.Equal(t, "2200", totals.Total.String())
	require.Equal(t, "1700", totals.Remaining.String())
	require.Equal(t, "500", repo.orderAdvance[orderID].String())
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemRepo()
	orderID, _ := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		Amount:      ledger.Zero(),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Empty(t, repo.payments)
}

func TestRecordRejectsUnknownOrderBeforeAnyWrite(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, false, slog.Default())

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     42,
		Amount:      ledger.FromInt(100),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.ErrorIs(t, err, ErrOrderNotFound)
	require.Empty(t, repo.payments)
}

func TestRecordRejectsItemFromAnotherOrder(t *testing.T) {
	repo := newMemRepo()
	orderID, _ := seedOrder(repo)
	repo.orders[2] = &OrderRef{ID: 2, CustomerID: 8}
	repo.items[20] = &ItemState{ID: 20, OrderID: 2, Quantity: 1, Price: ledger.FromInt(100)}
	foreign := int64(20)
	svc := NewService(repo, false, slog.Default())

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &foreign,
		Amount:      ledger.FromInt(100),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.ErrorIs(t, err, ErrItemNotFound)
	require.Empty(t, repo.payments)
}

func TestRecordStrictModeBlocksOverpayment(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, true, slog.Default())

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(2500), // item value is 2000
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.ErrorIs(t, err, ErrOverpayment)
	// Fail fast: nothing was written.
	require.Empty(t, repo.payments)
	require.True(t, repo.items[itemID].AdvancePayment.IsZero())
}

func TestRecordLenientModeAllowsOverpayment(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())
	metrics := observability.NewMetrics()
	svc.SetMetrics(metrics)

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(2500),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.NoError(t, err)

	require.Equal(t, "2500", repo.items[itemID].AdvancePayment.String())
	totals := repo.orderTotals[orderID]
	// Overpaid orders keep their negative remaining in storage.
	require.Equal(t, "-300", totals.Remaining.String())
	require.True(t, totals.Overpaid)
}

func TestRecordSurfacesStaleLedgerAfterPaymentCommit(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	repo.failTx = true
	svc := NewService(repo, false, slog.Default())

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(500),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.ErrorIs(t, err, ErrLedgerStale)

	var stale *StaleLedgerError
	require.ErrorAs(t, err, &stale)
	// The payment row is the source of truth and must survive.
	require.Contains(t, repo.payments, stale.PaymentID)
	require.True(t, repo.items[itemID].AdvancePayment.IsZero())
}

func TestRecordAutomaticWritesPaymentRowOnly(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())

	err := svc.RecordAutomatic(context.Background(), orderID, itemID, 7, ledger.FromInt(500), 3)
	require.NoError(t, err)

	require.Len(t, repo.payments, 1)
	for _, p := range repo.payments {
		require.True(t, p.IsAutomatic)
		require.Equal(t, PurposeAdvance, p.Purpose)
		require.Equal(t, &itemID, p.ItemID)
	}
	// The creation path already wrote the ledger; no double-count here.
	require.True(t, repo.items[itemID].AdvancePayment.IsZero())
	require.Empty(t, repo.orderTotals)
}

func TestUpdateAmountShiftsAdvanceByDelta(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())

	p, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(500),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.NoError(t, err)

	amount := ledger.FromInt(800)
	updated, err := svc.Update(context.Background(), p.ID, UpdatePaymentRequest{Amount: &amount})
	require.NoError(t, err)

	require.Equal(t, "800", updated.Amount.String())
	require.Equal(t, "800", repo.items[itemID].AdvancePayment.String())
	require.Equal(t, "1400", repo.orderTotals[orderID].Remaining.String())
}

func TestDeleteBacksOutAdvance(t *testing.T) {
	repo := newMemRepo()
	orderID, itemID := seedOrder(repo)
	svc := NewService(repo, false, slog.Default())

	p, err := svc.Record(context.Background(), RecordPaymentRequest{
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      ledger.FromInt(500),
		Purpose:     PurposeAdvance,
		BankAccount: "HBL-001",
	}, 3)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), p.ID))

	require.Empty(t, repo.payments)
	require.True(t, repo.items[itemID].AdvancePayment.IsZero())
	require.Equal(t, "2200", repo.orderTotals[orderID].Remaining.String())
}
