package shared

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// Notifier is the user-facing toast sink. The real implementation lives
// in the UI layer; services only push outcome messages through it.
type Notifier interface {
	Success(ctx context.Context, userID int64, msg string)
	Warn(ctx context.Context, userID int64, msg string)
	Error(ctx context.Context, userID int64, msg string)
}

// LogNotifier writes notifications to the structured log. Used as the
// default sink and in the worker where no UI is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Success(ctx context.Context, userID int64, msg string) {
	n.log(ctx, slog.LevelInfo, userID, msg)
}

func (n LogNotifier) Warn(ctx context.Context, userID int64, msg string) {
	n.log(ctx, slog.LevelWarn, userID, msg)
}

func (n LogNotifier) Error(ctx context.Context, userID int64, msg string) {
	n.log(ctx, slog.LevelError, userID, msg)
}

func (n LogNotifier) log(ctx context.Context, level slog.Level, userID int64, msg string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, level, msg, slog.String("channel", "notify"), slog.Int64("user_id", userID))
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a ledger amount with thousand separators for
// notification text. Not for storage.
func FormatAmount(m ledger.Money) string {
	f, _ := m.Float64()
	return amountPrinter.Sprintf("%v", number.Decimal(f))
}
