package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// Repository provides PostgreSQL backed persistence for payments and the
// ledger writes that follow them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const paymentColumns = `id, number, customer_id, order_id, item_id, amount, purpose, bank_account,
tally, screenshot_ref, payment_date, is_automatic, created_by, created_at, updated_at`

// InsertPayment commits the payment row on its own connection. The row
// must survive even if the ledger writes that follow it fail.
func (r *Repository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO payments
(number, customer_id, order_id, item_id, amount, purpose, bank_account, tally, screenshot_ref, payment_date, is_automatic, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()) RETURNING id`,
		p.Number, p.CustomerID, p.OrderID, p.ItemID, p.Amount, p.Purpose, p.BankAccount,
		p.Tally, p.ScreenshotRef, p.PaymentDate, p.IsAutomatic, p.CreatedBy).Scan(&id)
	return id, err
}

// GetPayment loads one payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPayments returns payments matching the filter, newest first, with
// the total match count.
func (r *Repository) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	where := "WHERE 1=1"
	var args []any
	if req.OrderID != nil {
		args = append(args, *req.OrderID)
		where += fmt.Sprintf(" AND order_id = $%d", len(args))
	}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if req.Purpose != nil {
		args = append(args, *req.Purpose)
		where += fmt.Sprintf(" AND purpose = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf("SELECT "+paymentColumns+" FROM payments %s ORDER BY payment_date DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// GetOrderRef loads the reconciler's view of an order.
func (r *Repository) GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error) {
	var ref OrderRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, delivery_charges FROM preorders WHERE id = $1`, orderID).
		Scan(&ref.ID, &ref.CustomerID, &ref.DeliveryCharges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &ref, nil
}

// GetItem loads the reconciler's view of an item.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (*ItemState, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`SELECT id, order_id, quantity, price, advance_payment FROM preorder_items WHERE id = $1`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("payments: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepo{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	db dbtx
}

// IncrementItemAdvance adds delta to the item's advance server-side so
// concurrent reconciliations cannot lose updates. With guard set the
// statement refuses to push the advance past the item's value; without
// it the advance is floored at zero so a payment delete cannot drive it
// negative.
func (t *txRepo) IncrementItemAdvance(ctx context.Context, orderID, itemID int64, delta ledger.Money, guard bool) error {
	var tag pgconn.CommandTag
	var err error
	if guard {
		tag, err = t.db.Exec(ctx, `UPDATE preorder_items
SET advance_payment = advance_payment + $1, updated_at = NOW()
WHERE id = $2 AND order_id = $3 AND advance_payment + $1 <= price * quantity`,
			delta, itemID, orderID)
	} else {
		tag, err = t.db.Exec(ctx, `UPDATE preorder_items
SET advance_payment = GREATEST(advance_payment + $1, 0), updated_at = NOW()
WHERE id = $2 AND order_id = $3`,
			delta, itemID, orderID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if !guard {
			return ErrItemNotFound
		}
		var exists bool
		if err := t.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM preorder_items WHERE id = $1 AND order_id = $2)`,
			itemID, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrItemNotFound
		}
		return fmt.Errorf("%w: item %d", ErrOverpayment, itemID)
	}
	return nil
}

func (t *txRepo) ListItems(ctx context.Context, orderID int64) ([]ItemState, error) {
	rows, err := t.db.Query(ctx,
		`SELECT id, order_id, quantity, price, advance_payment FROM preorder_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ItemState
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (t *txRepo) UpdateOrderTotals(ctx context.Context, orderID int64, totals ledger.Totals, advance ledger.Money) error {
	tag, err := t.db.Exec(ctx, `UPDATE preorders
SET subtotal = $1, total_amount = $2, remaining_amount = $3, advance_payment = $4, updated_at = NOW()
WHERE id = $5`,
		totals.Subtotal, totals.Total, totals.Remaining, advance, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) UpdatePayment(ctx context.Context, p Payment) error {
	tag, err := t.db.Exec(ctx, `UPDATE payments
SET amount = $1, purpose = $2, bank_account = $3, tally = $4, screenshot_ref = $5, payment_date = $6, updated_at = NOW()
WHERE id = $7`,
		p.Amount, p.Purpose, p.BankAccount, p.Tally, p.ScreenshotRef, p.PaymentDate, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeletePayment(ctx context.Context, id int64) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := row.Scan(&p.ID, &p.Number, &p.CustomerID, &p.OrderID, &p.ItemID, &p.Amount,
		&p.Purpose, &p.BankAccount, &p.Tally, &p.ScreenshotRef, &p.PaymentDate,
		&p.IsAutomatic, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanItem(row pgx.Row) (*ItemState, error) {
	var item ItemState
	if err := row.Scan(&item.ID, &item.OrderID, &item.Quantity, &item.Price, &item.AdvancePayment); err != nil {
		return nil, err
	}
	return &item, nil
}
