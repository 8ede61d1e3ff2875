package flights

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("flights: flight not found")
	ErrInvalidStatus = errors.New("flights: invalid status")
)

// Repository provides PostgreSQL backed persistence for flights.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const flightColumns = `id, name, status, departure_date, arrival_date, notes, created_at, updated_at`

// Exists reports whether the flight id resolves. Satisfies the
// pre-order service's reference check.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Get loads one flight.
func (r *Repository) Get(ctx context.Context, id int64) (*Flight, error) {
	f, err := scanFlight(r.pool.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns flights, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status *Status) ([]Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

// Create inserts a flight and returns its id.
func (r *Repository) Create(ctx context.Context, f Flight) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO flights
(name, status, departure_date, arrival_date, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		f.Name, f.Status, f.DepartureDate, f.ArrivalDate, f.Notes).Scan(&id)
	return id, err
}

// UpdateStatus persists a status reassignment.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE flights SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFlight(row pgx.Row) (*Flight, error) {
	var f Flight
	if err := row.Scan(&f.ID, &f.Name, &f.Status, &f.DepartureDate, &f.ArrivalDate,
		&f.Notes, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
