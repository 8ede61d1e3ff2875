package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/caravel-preorders/caravel/internal/app"
	"github.com/caravel-preorders/caravel/internal/customers"
	"github.com/caravel-preorders/caravel/internal/flights"
	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
	"github.com/caravel-preorders/caravel/internal/platform/cache"
	"github.com/caravel-preorders/caravel/internal/platform/db"
	"github.com/caravel-preorders/caravel/internal/preorders"
	"github.com/caravel-preorders/caravel/internal/reminders"
	"github.com/caravel-preorders/caravel/internal/shared"
	"github.com/caravel-preorders/caravel/jobs"
)

// ledgerScanTarget bundles the pre-order repo and service into the
// integrity scan's view.
type ledgerScanTarget struct {
	repo    preorders.RepositoryPort
	service *preorders.Service
}

func (t ledgerScanTarget) ListIDs(ctx context.Context) ([]int64, error) {
	return t.repo.ListIDs(ctx)
}

func (t ledgerScanTarget) Recompute(ctx context.Context, id int64) (ledger.Totals, error) {
	return t.service.Recompute(ctx, id)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	snapshots := ledger.NewSnapshotCache(redisClient, cfg.SnapshotTTL)
	notifier := shared.LogNotifier{Logger: logger}

	preorderRepo := preorders.NewRepository(pool)
	preorderService := preorders.NewService(preorderRepo, customers.NewRepository(pool), flights.NewRepository(pool), logger)
	preorderService.SetSnapshotCache(snapshots)
	preorderService.SetMetrics(metrics)

	reminderService := reminders.NewService(reminders.NewRepository(pool), logger)
	reminderService.SetNotifier(notifier)

	scanTask, err := jobs.NewLedgerIntegrityScanTask(jobs.IntegrityScanPayload{})
	if err != nil {
		logger.Error("build integrity scan task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.IntegrityScanCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec: cfg.IntegrityScanCron, Task: scanTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}
	if cfg.ReminderScanCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec: cfg.ReminderScanCron, Task: jobs.NewReminderDueScanTask(),
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   jobs.NewJobMetrics(metrics.Registerer()),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrityScan, Handler: jobs.NewLedgerIntegrityScanHandler(
				ledgerScanTarget{repo: preorderRepo, service: preorderService}, logger)},
			{Type: jobs.TaskReminderDueScan, Handler: jobs.NewReminderDueScanHandler(reminderService, logger)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
