package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
	"github.com/caravel-preorders/caravel/internal/shared"
)

// Service is the single authorized path from a submitted payment to
// consistent ledger state. Writes are strictly sequenced: the payment
// row commits first and stands as the source of truth, then the item
// advance and order aggregates follow in one transaction. A failure
// after the payment committed surfaces as StaleLedgerError, never as
// silent success or silent loss.
type Service struct {
	repo      RepositoryPort
	snapshots *ledger.SnapshotCache
	metrics   *observability.Metrics
	notifier  shared.Notifier
	logger    *slog.Logger

	// strict rejects any advance that would exceed the item's value;
	// lenient records it and warns.
	strict bool
}

// NewService builds a Service.
func NewService(repo RepositoryPort, strict bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, strict: strict, logger: logger}
}

// SetSnapshotCache wires the ledger snapshot cache.
func (s *Service) SetSnapshotCache(c *ledger.SnapshotCache) { s.snapshots = c }

// SetMetrics wires the metrics registry.
func (s *Service) SetMetrics(m *observability.Metrics) { s.metrics = m }

// SetNotifier wires the user-facing toast sink.
func (s *Service) SetNotifier(n shared.Notifier) { s.notifier = n }

// Record validates and persists a payment, then brings the item advance
// and the order aggregates in line with it.
func (s *Service) Record(ctx context.Context, req RecordPaymentRequest, createdBy int64) (*Payment, error) {
	if err := ValidateRecordRequest(req); err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderRef(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if req.ItemID != nil {
		item, err := s.repo.GetItem(ctx, *req.ItemID)
		if err != nil {
			return nil, err
		}
		if item.OrderID != req.OrderID {
			return nil, ErrItemNotFound
		}
		if item.AdvancePayment.Add(req.Amount).GreaterThan(item.Value()) {
			if s.strict {
				return nil, fmt.Errorf("%w: item %d", ErrOverpayment, item.ID)
			}
			s.logger.Warn("advance exceeds item value, recording anyway",
				slog.Int64("order_id", req.OrderID), slog.Int64("item_id", item.ID),
				slog.String("amount", req.Amount.String()))
			if s.metrics != nil {
				s.metrics.OverpaymentsAllowed.Inc()
			}
			s.notify(ctx, createdBy, levelWarn,
				fmt.Sprintf("payment of %s exceeds the item's value", shared.FormatAmount(req.Amount)))
		}
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	id, err := s.repo.InsertPayment(ctx, Payment{
		Number:        uuid.NewString(),
		CustomerID:    order.CustomerID,
		OrderID:       req.OrderID,
		ItemID:        req.ItemID,
		Amount:        req.Amount,
		Purpose:       req.Purpose,
		BankAccount:   req.BankAccount,
		Tally:         req.Tally,
		ScreenshotRef: req.ScreenshotRef,
		PaymentDate:   paymentDate,
		CreatedBy:     createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := s.applyLedger(ctx, order, req.ItemID, req.Amount, s.strict); err != nil {
		stale := &StaleLedgerError{PaymentID: id, cause: err}
		s.logger.Error("ledger update failed after payment commit",
			slog.Int64("payment_id", id), slog.Int64("order_id", req.OrderID), slog.Any("error", err))
		s.notify(ctx, createdBy, levelError,
			fmt.Sprintf("payment %d recorded but the order ledger is stale; recompute the order", id))
		return nil, stale
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	s.notify(ctx, createdBy, levelSuccess,
		fmt.Sprintf("payment of %s recorded", shared.FormatAmount(req.Amount)))

	return s.repo.GetPayment(ctx, id)
}

// RecordAutomatic documents an item advance entered at order creation as
// a payment row. The creation path already wrote the item advance and
// the order aggregates, so only the payment row is inserted here.
func (s *Service) RecordAutomatic(ctx context.Context, orderID, itemID, customerID int64, amount ledger.Money, createdBy int64) error {
	if !amount.GreaterThan(ledger.Zero()) {
		return ErrInvalidAmount
	}
	_, err := s.repo.InsertPayment(ctx, Payment{
		Number:      uuid.NewString(),
		CustomerID:  customerID,
		OrderID:     orderID,
		ItemID:      &itemID,
		Amount:      amount,
		Purpose:     PurposeAdvance,
		PaymentDate: time.Now().UTC(),
		IsAutomatic: true,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return fmt.Errorf("insert automatic payment: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	return nil
}

// Update edits a payment. An amount change shifts the targeted item's
// advance by the difference and re-aggregates the order in the same
// transaction as the payment edit.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePaymentRequest) (*Payment, error) {
	if err := ValidateUpdateRequest(req); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrderRef(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	delta := ledger.Zero()
	if req.Amount != nil {
		delta = req.Amount.Sub(p.Amount)
		p.Amount = *req.Amount
	}
	if req.Purpose != nil {
		p.Purpose = *req.Purpose
	}
	if req.BankAccount != nil {
		p.BankAccount = *req.BankAccount
	}
	if req.Tally != nil {
		p.Tally = *req.Tally
	}
	if req.ScreenshotRef != nil {
		p.ScreenshotRef = req.ScreenshotRef
	}
	if req.PaymentDate != nil {
		p.PaymentDate = *req.PaymentDate
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePayment(ctx, *p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if !delta.IsZero() && p.ItemID != nil {
			if err := tx.IncrementItemAdvance(ctx, p.OrderID, *p.ItemID, delta, s.strict && delta.GreaterThan(ledger.Zero())); err != nil {
				return err
			}
		}
		if !delta.IsZero() {
			return s.reaggregate(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetPayment(ctx, id)
}

// Delete removes a payment and backs its amount out of the item advance
// and the order aggregates.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	order, err := s.repo.GetOrderRef(ctx, p.OrderID)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeletePayment(ctx, id); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if p.ItemID != nil {
			if err := tx.IncrementItemAdvance(ctx, p.OrderID, *p.ItemID, ledger.Zero().Sub(p.Amount), false); err != nil {
				return err
			}
		}
		return s.reaggregate(ctx, tx, order)
	})
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// List returns payments matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	return s.repo.ListPayments(ctx, req)
}

// applyLedger runs the sequenced post-payment writes: atomic item
// advance increment, then the order aggregates recomputed from the full
// item set, in one transaction.
func (s *Service) applyLedger(ctx context.Context, order *OrderRef, itemID *int64, amount ledger.Money, guard bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if itemID != nil {
			if err := tx.IncrementItemAdvance(ctx, order.ID, *itemID, amount, guard); err != nil {
				return err
			}
		}
		return s.reaggregate(ctx, tx, order)
	})
	return err
}

func (s *Service) reaggregate(ctx context.Context, tx TxRepository, order *OrderRef) error {
	items, err := tx.ListItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	lines := lineAmounts(items)
	totals := ledger.Aggregate(lines, order.DeliveryCharges)
	if err := tx.UpdateOrderTotals(ctx, order.ID, totals, ledger.AdvanceTotal(lines)); err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	if err := s.snapshots.Store(ctx, order.ID, totals); err != nil {
		s.logger.Warn("store ledger snapshot", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
	return nil
}

type notifyLevel int

const (
	levelSuccess notifyLevel = iota
	levelWarn
	levelError
)

func (s *Service) notify(ctx context.Context, userID int64, level notifyLevel, msg string) {
	if s.notifier == nil {
		return
	}
	switch level {
	case levelWarn:
		s.notifier.Warn(ctx, userID, msg)
	case levelError:
		s.notifier.Error(ctx, userID, msg)
	default:
		s.notifier.Success(ctx, userID, msg)
	}
}
