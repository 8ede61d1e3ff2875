// Package staging lets a user pile up unsaved status and flight edits
// across many orders and apply them in one go. Applies are independent
// per order: one failure never blocks the rest, and the caller always
// gets a per-order manifest instead of a single verdict.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/caravel-preorders/caravel/internal/observability"
	"github.com/caravel-preorders/caravel/internal/preorders"
)

// Field names the order attribute a staged change targets.
type Field string

const (
	FieldStatus Field = "status"
	FieldFlight Field = "flight"
)

// ErrUnknownField rejects a stage request for an unsupported field.
var ErrUnknownField = errors.New("staging: unknown field")

// Change is one pending edit for one order. Later stages overwrite
// earlier ones field-wise.
type Change struct {
	Status      *preorders.OrderStatus `json:"status,omitempty"`
	FlightID    *int64                 `json:"flight_id,omitempty"`
	ClearFlight bool                   `json:"clear_flight,omitempty"`
}

// ApplyResult is one manifest entry.
type ApplyResult struct {
	OrderID int64  `json:"order_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// OrderUpdater is the persistence collaborator. Implemented by the
// pre-order service.
type OrderUpdater interface {
	ChangeStatus(ctx context.Context, id int64, status preorders.OrderStatus) error
	AssignFlight(ctx context.Context, id int64, flightID *int64) error
}

// Stager holds pending changes per user, in memory only; nothing is
// persisted until Apply.
type Stager struct {
	updater     OrderUpdater
	metrics     *observability.Metrics
	logger      *slog.Logger
	concurrency int

	mu      sync.Mutex
	pending map[int64]map[int64]Change // userID -> orderID -> change
}

// NewStager builds a Stager. concurrency bounds how many orders apply
// in parallel; values below one fall back to sequential.
func NewStager(updater OrderUpdater, concurrency int, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Stager{
		updater:     updater,
		concurrency: concurrency,
		logger:      logger,
		pending:     map[int64]map[int64]Change{},
	}
}

// SetMetrics wires the metrics registry.
func (s *Stager) SetMetrics(m *observability.Metrics) { s.metrics = m }

// Stage records a pending change without touching persisted state.
func (s *Stager) Stage(userID, orderID int64, field Field, change Change) error {
	switch field {
	case FieldStatus:
		if change.Status == nil || !change.Status.Valid() {
			return fmt.Errorf("%w: %v", preorders.ErrInvalidStatus, change.Status)
		}
	case FieldFlight:
		// nil FlightID with ClearFlight unset means "no change"; reject.
		if change.FlightID == nil && !change.ClearFlight {
			return fmt.Errorf("%w: flight change needs a flight id or clear_flight", ErrUnknownField)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byOrder, ok := s.pending[userID]
	if !ok {
		byOrder = map[int64]Change{}
		s.pending[userID] = byOrder
	}
	staged := byOrder[orderID]
	switch field {
	case FieldStatus:
		staged.Status = change.Status
	case FieldFlight:
		staged.FlightID = change.FlightID
		staged.ClearFlight = change.ClearFlight
	}
	byOrder[orderID] = staged
	return nil
}

// HasPending reports whether the user has any staged changes.
func (s *Stager) HasPending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[userID]) > 0
}

// Pending returns a snapshot of the user's staged changes.
func (s *Stager) Pending(userID int64) map[int64]Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Change, len(s.pending[userID]))
	for id, change := range s.pending[userID] {
		out[id] = change
	}
	return out
}

// DiscardAll drops the user's staged changes without persisting.
func (s *Stager) DiscardAll(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}

// ApplyAll persists every staged change for the user as an independent
// update and returns the full manifest. Entries that applied cleanly are
// removed from the staging set; failed entries stay staged so the user
// can retry or discard them.
func (s *Stager) ApplyAll(ctx context.Context, userID int64) []ApplyResult {
	s.mu.Lock()
	staged := s.pending[userID]
	batch := make(map[int64]Change, len(staged))
	for id, change := range staged {
		batch[id] = change
	}
	s.mu.Unlock()

	results := s.applyBatch(ctx, batch)

	s.mu.Lock()
	for _, res := range results {
		if res.OK {
			delete(s.pending[userID], res.OrderID)
		}
	}
	if len(s.pending[userID]) == 0 {
		delete(s.pending, userID)
	}
	s.mu.Unlock()
	return results
}

// ApplyToSet applies one change to an explicit set of orders, same
// per-order contract as ApplyAll. Used by multi-select bulk actions; the
// orders need not be staged first.
func (s *Stager) ApplyToSet(ctx context.Context, orderIDs []int64, field Field, change Change) ([]ApplyResult, error) {
	switch field {
	case FieldStatus:
		if change.Status == nil || !change.Status.Valid() {
			return nil, fmt.Errorf("%w: %v", preorders.ErrInvalidStatus, change.Status)
		}
	case FieldFlight:
		if change.FlightID == nil && !change.ClearFlight {
			return nil, fmt.Errorf("%w: flight change needs a flight id or clear_flight", ErrUnknownField)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	batch := make(map[int64]Change, len(orderIDs))
	for _, id := range orderIDs {
		switch field {
		case FieldStatus:
			batch[id] = Change{Status: change.Status}
		case FieldFlight:
			batch[id] = Change{FlightID: change.FlightID, ClearFlight: change.ClearFlight}
		}
	}
	return s.applyBatch(ctx, batch), nil
}

func (s *Stager) applyBatch(ctx context.Context, batch map[int64]Change) []ApplyResult {
	results := make([]ApplyResult, 0, len(batch))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for orderID, change := range batch {
		orderID, change := orderID, change
		g.Go(func() error {
			err := s.applyOne(ctx, orderID, change)
			res := ApplyResult{OrderID: orderID, OK: err == nil}
			if err != nil {
				res.Error = err.Error()
				s.logger.Warn("staged change failed", slog.Int64("order_id", orderID), slog.Any("error", err))
				if s.metrics != nil {
					s.metrics.StagedApplyFailures.Inc()
				}
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			// Failures are reported per entry, never propagated, so one
			// bad order cannot cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].OrderID < results[j].OrderID })
	return results
}

func (s *Stager) applyOne(ctx context.Context, orderID int64, change Change) error {
	if change.Status != nil {
		if err := s.updater.ChangeStatus(ctx, orderID, *change.Status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}
	if change.ClearFlight {
		if err := s.updater.AssignFlight(ctx, orderID, nil); err != nil {
			return fmt.Errorf("flight: %w", err)
		}
	} else if change.FlightID != nil {
		if err := s.updater.AssignFlight(ctx, orderID, change.FlightID); err != nil {
			return fmt.Errorf("flight: %w", err)
		}
	}
	return nil
}
