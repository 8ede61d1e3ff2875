package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// DueScanner surfaces reminders that came due. Implemented by the
// reminders service.
type DueScanner interface {
	ScanDue(ctx context.Context) (int, error)
}

// NewReminderDueScanHandler returns the asynq handler for
// TaskReminderDueScan.
func NewReminderDueScanHandler(scanner DueScanner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := scanner.ScanDue(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("reminder due scan finished", slog.Int("due", n))
		}
		return nil
	}
}
