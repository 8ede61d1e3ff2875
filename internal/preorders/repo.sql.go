package preorders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// Repository provides PostgreSQL backed persistence for pre-orders.
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

const orderColumns = `id, customer_id, flight_id, status, subtotal, delivery_charges, cod_amount,
total_amount, advance_payment, remaining_amount, notes, created_by, created_at, updated_at`

const itemColumns = `id, order_id, product_name, shade, size, link, quantity, price, advance_payment, created_at, updated_at`

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("preorders: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepo{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM preorders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := listItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// List returns orders matching the filter, most recent first, with the
// total match count.
func (r *Repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	where := "WHERE 1=1"
	var args []any
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if req.FlightID != nil {
		args = append(args, *req.FlightID)
		where += fmt.Sprintf(" AND flight_id = $%d", len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM preorders "+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf("SELECT "+orderColumns+" FROM preorders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListIDs returns every order id; used by the integrity scan job.
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM preorders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPayments returns how many payment rows reference the order.
func (r *Repository) CountPayments(ctx context.Context, orderID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}

// UpdateTotals persists a freshly aggregated ledger outside a wider
// transaction.
func (r *Repository) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals, advance ledger.Money) error {
	return updateTotals(ctx, r.pool, id, totals, advance)
}

type txRepo struct {
	db dbtx
}

func (t *txRepo) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.db.QueryRow(ctx, `INSERT INTO preorders
(customer_id, flight_id, status, subtotal, delivery_charges, cod_amount, total_amount, advance_payment, remaining_amount, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id`,
		o.CustomerID, o.FlightID, o.Status, o.Subtotal, o.DeliveryCharges, o.CODAmount,
		o.TotalAmount, o.AdvancePayment, o.RemainingAmount, o.Notes, o.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateOrder(ctx context.Context, id int64, patch OrderPatch) error {
	query := "UPDATE preorders SET updated_at = NOW()"
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(", %s = $%d", column, len(args))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ClearFlight {
		query += ", flight_id = NULL"
	} else if patch.FlightID != nil {
		add("flight_id", *patch.FlightID)
	}
	if patch.DeliveryCharges != nil {
		add("delivery_charges", *patch.DeliveryCharges)
	}
	if patch.CODAmount != nil {
		add("cod_amount", *patch.CODAmount)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}

	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))

	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals, advance ledger.Money) error {
	return updateTotals(ctx, t.db, id, totals, advance)
}

func (t *txRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := t.db.QueryRow(ctx, `INSERT INTO preorder_items
(order_id, product_name, shade, size, link, quantity, price, advance_payment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id`,
		item.OrderID, item.ProductName, item.Shade, item.Size, item.Link,
		item.Quantity, item.Price, item.AdvancePayment).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item OrderItem) error {
	tag, err := t.db.Exec(ctx, `UPDATE preorder_items
SET product_name = $1, shade = $2, size = $3, link = $4, quantity = $5, price = $6, updated_at = NOW()
WHERE id = $7 AND order_id = $8`,
		item.ProductName, item.Shade, item.Size, item.Link, item.Quantity, item.Price,
		item.ID, item.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := t.db.Exec(ctx, `DELETE FROM preorder_items WHERE id = $1`, itemID)
	return err
}

func (t *txRepo) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := t.db.Exec(ctx, `DELETE FROM preorder_items WHERE order_id = $1`, orderID)
	return err
}

func (t *txRepo) DeletePayments(ctx context.Context, orderID int64) error {
	_, err := t.db.Exec(ctx, `DELETE FROM payments WHERE order_id = $1`, orderID)
	return err
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM preorders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func updateTotals(ctx context.Context, db dbtx, id int64, totals ledger.Totals, advance ledger.Money) error {
	tag, err := db.Exec(ctx, `UPDATE preorders
SET subtotal = $1, total_amount = $2, remaining_amount = $3, advance_payment = $4, updated_at = NOW()
WHERE id = $5`,
		totals.Subtotal, totals.Total, totals.Remaining, advance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func listItems(ctx context.Context, db dbtx, orderID int64) ([]OrderItem, error) {
	rows, err := db.Query(ctx, `SELECT `+itemColumns+` FROM preorder_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Shade, &item.Size,
			&item.Link, &item.Quantity, &item.Price, &item.AdvancePayment,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.CustomerID, &o.FlightID, &o.Status, &o.Subtotal,
		&o.DeliveryCharges, &o.CODAmount, &o.TotalAmount, &o.AdvancePayment,
		&o.RemainingAmount, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
