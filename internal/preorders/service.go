package preorders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
)

// CustomerChecker verifies customer references. Implemented by the
// customers repository.
type CustomerChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// FlightChecker verifies flight references. Implemented by the flights
// repository.
type FlightChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AutoPaymentRecorder records the system-generated payment that documents
// an item advance entered at order creation. Implemented by the payments
// service and wired in main to avoid a package cycle.
type AutoPaymentRecorder interface {
	RecordAutomatic(ctx context.Context, orderID, itemID, customerID int64, amount ledger.Money, createdBy int64) error
}

// Service owns pre-order business logic. All derived monetary state
// flows through ledger.Aggregate; the formula lives nowhere else.
type Service struct {
	repo      RepositoryPort
	customers CustomerChecker
	flights   FlightChecker
	autopay   AutoPaymentRecorder
	snapshots *ledger.SnapshotCache
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService builds a Service.
func NewService(repo RepositoryPort, customers CustomerChecker, flights FlightChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, customers: customers, flights: flights, logger: logger}
}

// SetAutoPayments wires the payments collaborator.
func (s *Service) SetAutoPayments(r AutoPaymentRecorder) { s.autopay = r }

// SetSnapshotCache wires the ledger snapshot cache.
func (s *Service) SetSnapshotCache(c *ledger.SnapshotCache) { s.snapshots = c }

// SetMetrics wires the metrics registry.
func (s *Service) SetMetrics(m *observability.Metrics) { s.metrics = m }

// Create validates and persists a new order with its items, derives the
// ledger fields, and records automatic payments for any item advances
// entered on the creation form.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, createdBy int64) (*Order, error) {
	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, req.CustomerID, req.FlightID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = StatusPending
	}

	var items []OrderItem
	for _, draft := range req.Items {
		if draft.IsBlank() {
			continue
		}
		items = append(items, OrderItem{
			ProductName:    draft.ProductName,
			Shade:          draft.Shade,
			Size:           draft.Size,
			Link:           draft.Link,
			Quantity:       draft.Quantity,
			Price:          draft.Price,
			AdvancePayment: draft.AdvancePayment,
		})
	}

	totals := ledger.Aggregate(LineAmounts(items), req.DeliveryCharges)
	advance := ledger.AdvanceTotal(LineAmounts(items))

	var orderID int64
	var itemIDs []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, Order{
			CustomerID:      req.CustomerID,
			FlightID:        req.FlightID,
			Status:          status,
			Subtotal:        totals.Subtotal,
			DeliveryCharges: req.DeliveryCharges,
			CODAmount:       req.CODAmount,
			TotalAmount:     totals.Total,
			AdvancePayment:  advance,
			RemainingAmount: totals.Remaining,
			Notes:           req.Notes,
			CreatedBy:       createdBy,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID = id
		for i := range items {
			items[i].OrderID = id
			itemID, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			items[i].ID = itemID
			itemIDs = append(itemIDs, itemID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Advances entered on the creation form become automatic payment
	// rows so the payment ledger stays the source of truth. A failure
	// here is audit noise, not a lost order.
	if s.autopay != nil {
		for i, item := range items {
			if item.AdvancePayment.IsZero() {
				continue
			}
			if err := s.autopay.RecordAutomatic(ctx, orderID, itemIDs[i], req.CustomerID, item.AdvancePayment, createdBy); err != nil {
				s.logger.Error("record automatic advance payment",
					slog.Int64("order_id", orderID), slog.Int64("item_id", itemIDs[i]), slog.Any("error", err))
			}
		}
	}

	if err := s.snapshots.Store(ctx, orderID, totals); err != nil {
		s.logger.Warn("store ledger snapshot", slog.Int64("order_id", orderID), slog.Any("error", err))
	}

	return s.repo.Get(ctx, orderID)
}

// Update edits an order. Item drafts are reconciled against the
// persisted set by stable id so payment history survives the edit; the
// derived totals are then recomputed from the merged item set. Edits
// that touch no items and no charges leave monetary fields alone.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (*Order, error) {
	if err := ValidateUpdateRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if req.FlightID != nil {
		if err := s.checkRefs(ctx, 0, req.FlightID); err != nil {
			return nil, err
		}
	}

	patch := OrderPatch{
		Status:          req.Status,
		FlightID:        req.FlightID,
		DeliveryCharges: req.DeliveryCharges,
		CODAmount:       req.CODAmount,
		Notes:           req.Notes,
	}

	var plan SyncPlan
	itemsTouched := req.Items != nil
	if itemsTouched {
		plan = PlanItemSync(s.logger, id, existing.Items, *req.Items)
	}

	chargesTouched := req.DeliveryCharges != nil
	recompute := itemsTouched || chargesTouched

	var totals ledger.Totals
	var advance ledger.Money
	if recompute {
		merged := existing.Items
		if itemsTouched {
			merged = MergedItems(existing.Items, plan)
		}
		charges := existing.DeliveryCharges
		if chargesTouched {
			charges = *req.DeliveryCharges
		}
		totals = ledger.Aggregate(LineAmounts(merged), charges)
		advance = ledger.AdvanceTotal(LineAmounts(merged))
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !patch.IsEmpty() {
			if err := tx.UpdateOrder(ctx, id, patch); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}
		if itemsTouched {
			for _, item := range plan.Updates {
				if err := tx.UpdateItem(ctx, item); err != nil {
					return fmt.Errorf("update item %d: %w", item.ID, err)
				}
			}
			for _, item := range plan.Inserts {
				if _, err := tx.InsertItem(ctx, item); err != nil {
					return fmt.Errorf("insert item: %w", err)
				}
			}
			for _, itemID := range plan.Deletes {
				if err := tx.DeleteItem(ctx, itemID); err != nil {
					return fmt.Errorf("delete item %d: %w", itemID, err)
				}
			}
		}
		if recompute {
			if err := tx.UpdateTotals(ctx, id, totals, advance); err != nil {
				return fmt.Errorf("update totals: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recompute {
		if err := s.snapshots.Store(ctx, id, totals); err != nil {
			s.logger.Warn("store ledger snapshot", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}

	return s.repo.Get(ctx, id)
}

// ChangeStatus persists a status reassignment and nothing else. Monetary
// fields are untouched by design.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrder(ctx, id, OrderPatch{Status: &status})
	})
}

// AssignFlight moves the order onto a flight, or off any flight when
// flightID is nil.
func (s *Service) AssignFlight(ctx context.Context, id int64, flightID *int64) error {
	if flightID == nil {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpdateOrder(ctx, id, OrderPatch{ClearFlight: true})
		})
	}
	if err := s.checkRefs(ctx, 0, flightID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrder(ctx, id, OrderPatch{FlightID: flightID})
	})
}

// Recompute re-derives the order's ledger from its current items and
// persists the result. Idempotent: with no intervening mutation a second
// call yields identical totals. Divergence from either the stored row or
// the cached snapshot is surfaced as a consistency warning, never
// silently absorbed.
func (s *Service) Recompute(ctx context.Context, id int64) (ledger.Totals, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return ledger.Totals{}, fmt.Errorf("get order: %w", err)
	}

	totals := ledger.Aggregate(LineAmounts(o.Items), o.DeliveryCharges)
	advance := ledger.AdvanceTotal(LineAmounts(o.Items))

	stored := !o.Subtotal.Equal(totals.Subtotal) ||
		!o.TotalAmount.Equal(totals.Total) ||
		!o.RemainingAmount.Equal(totals.Remaining)

	diverged, prev, err := s.snapshots.Compare(ctx, id, totals)
	if err != nil {
		s.logger.Warn("compare ledger snapshot", slog.Int64("order_id", id), slog.Any("error", err))
	}
	if stored || diverged {
		attrs := []any{
			slog.Int64("order_id", id),
			slog.String("subtotal", totals.Subtotal.String()),
			slog.String("total", totals.Total.String()),
			slog.String("remaining", totals.Remaining.String()),
			slog.Bool("stored_diverged", stored),
		}
		if prev != nil {
			attrs = append(attrs, slog.String("cached_remaining", prev.Remaining))
		}
		s.logger.Warn("ledger consistency warning", attrs...)
		if s.metrics != nil {
			s.metrics.ConsistencyWarnings.Inc()
		}
	}

	if err := s.repo.UpdateTotals(ctx, id, totals, advance); err != nil {
		return ledger.Totals{}, fmt.Errorf("persist totals: %w", err)
	}
	if err := s.snapshots.Store(ctx, id, totals); err != nil {
		s.logger.Warn("store ledger snapshot", slog.Int64("order_id", id), slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.LedgerRecomputes.Inc()
	}
	return totals, nil
}

// Delete removes an order and its items. Payments block the delete
// unless cascade is set, in which case they go in the same transaction.
func (s *Service) Delete(ctx context.Context, id int64, cascade bool) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountPayments(ctx, id)
	if err != nil {
		return fmt.Errorf("count payments: %w", err)
	}
	if n > 0 && !cascade {
		return ErrPaymentsExist
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if cascade {
			if err := tx.DeletePayments(ctx, id); err != nil {
				return fmt.Errorf("delete payments: %w", err)
			}
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		return tx.DeleteOrder(ctx, id)
	})
}

// Get returns one order with items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) checkRefs(ctx context.Context, customerID int64, flightID *int64) error {
	if customerID != 0 && s.customers != nil {
		ok, err := s.customers.Exists(ctx, customerID)
		if err != nil {
			return fmt.Errorf("verify customer: %w", err)
		}
		if !ok {
			return ErrCustomerNotFound
		}
	}
	if flightID != nil && s.flights != nil {
		ok, err := s.flights.Exists(ctx, *flightID)
		if err != nil {
			return fmt.Errorf("verify flight: %w", err)
		}
		if !ok {
			return ErrFlightNotFound
		}
	}
	return nil
}
