package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound marks an unresolved reminder id.
var ErrNotFound = errors.New("reminders: reminder not found")

// Repository provides PostgreSQL backed persistence for reminders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reminderColumns = `id, user_id, order_id, customer_id, note, due_at, done, created_at, updated_at`

// Create inserts a reminder and returns its id.
func (r *Repository) Create(ctx context.Context, rem Reminder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO reminders
(user_id, order_id, customer_id, note, due_at, done, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, NOW(), NOW()) RETURNING id`,
		rem.UserID, rem.OrderID, rem.CustomerID, rem.Note, rem.DueAt).Scan(&id)
	return id, err
}

// Get loads one reminder.
func (r *Repository) Get(ctx context.Context, id int64) (*Reminder, error) {
	rem, err := scanReminder(r.pool.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rem, nil
}

// List returns a user's open reminders, optionally only those already
// due, soonest first.
func (r *Repository) List(ctx context.Context, userID int64, dueOnly bool) ([]Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = $1 AND NOT done`
	if dueOnly {
		query += ` AND due_at <= NOW()`
	}
	query += ` ORDER BY due_at, id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListDue returns every open reminder due at or before the cutoff,
// across all users. Used by the worker's due scan.
func (r *Repository) ListDue(ctx context.Context, cutoff time.Time) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE NOT done AND due_at <= $1 ORDER BY due_at, id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// MarkDone completes a reminder.
func (r *Repository) MarkDone(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reminders SET done = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	if err := row.Scan(&rem.ID, &rem.UserID, &rem.OrderID, &rem.CustomerID,
		&rem.Note, &rem.DueAt, &rem.Done, &rem.CreatedAt, &rem.UpdatedAt); err != nil {
		return nil, err
	}
	return &rem, nil
}
