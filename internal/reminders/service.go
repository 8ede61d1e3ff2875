package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caravel-preorders/caravel/internal/shared"
)

// Store is what the service needs from persistence.
type Store interface {
	Create(ctx context.Context, rem Reminder) (int64, error)
	Get(ctx context.Context, id int64) (*Reminder, error)
	List(ctx context.Context, userID int64, dueOnly bool) ([]Reminder, error)
	ListDue(ctx context.Context, cutoff time.Time) ([]Reminder, error)
	MarkDone(ctx context.Context, id int64) error
}

// Service owns reminder logic and pushes due notices to the notifier.
type Service struct {
	store    Store
	notifier shared.Notifier
	logger   *slog.Logger
}

// NewService builds a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// SetNotifier wires the user-facing sink.
func (s *Service) SetNotifier(n shared.Notifier) { s.notifier = n }

// Create stores a reminder for the acting user.
func (s *Service) Create(ctx context.Context, rem Reminder) (*Reminder, error) {
	if rem.Note == "" {
		return nil, fmt.Errorf("reminders: note required")
	}
	if rem.DueAt.IsZero() {
		return nil, fmt.Errorf("reminders: due_at required")
	}
	id, err := s.store.Create(ctx, rem)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// List returns the user's open reminders.
func (s *Service) List(ctx context.Context, userID int64, dueOnly bool) ([]Reminder, error) {
	return s.store.List(ctx, userID, dueOnly)
}

// MarkDone completes a reminder.
func (s *Service) MarkDone(ctx context.Context, id int64) error {
	return s.store.MarkDone(ctx, id)
}

// ScanDue pushes a notice for every open reminder due by now. Called
// periodically from the worker; returns how many were surfaced.
func (s *Service) ScanDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDue(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	for _, rem := range due {
		if s.notifier != nil {
			s.notifier.Warn(ctx, rem.UserID, fmt.Sprintf("reminder due: %s", rem.Note))
		}
		s.logger.Info("reminder due",
			slog.Int64("reminder_id", rem.ID), slog.Int64("user_id", rem.UserID),
			slog.Time("due_at", rem.DueAt))
	}
	return len(due), nil
}
