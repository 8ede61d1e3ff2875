package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/caravel-preorders/caravel/internal/app"
	"github.com/caravel-preorders/caravel/internal/customers"
	"github.com/caravel-preorders/caravel/internal/export"
	"github.com/caravel-preorders/caravel/internal/flights"
	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/observability"
	"github.com/caravel-preorders/caravel/internal/payments"
	"github.com/caravel-preorders/caravel/internal/platform/cache"
	"github.com/caravel-preorders/caravel/internal/platform/db"
	"github.com/caravel-preorders/caravel/internal/preorders"
	"github.com/caravel-preorders/caravel/internal/reminders"
	"github.com/caravel-preorders/caravel/internal/shared"
	"github.com/caravel-preorders/caravel/internal/staging"
	"github.com/caravel-preorders/caravel/jobs"
)

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

	if err := db.Migrate(pool); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

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
	idempotencyStore := shared.NewIdempotencyStore(pool)

	customerRepo := customers.NewRepository(pool)
	flightRepo := flights.NewRepository(pool)

	preorderRepo := preorders.NewRepository(pool)
	preorderService := preorders.NewService(preorderRepo, customerRepo, flightRepo, logger)
	preorderService.SetSnapshotCache(snapshots)
	preorderService.SetMetrics(metrics)

	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(paymentRepo, cfg.LedgerStrictAdvance, logger)
	paymentService.SetSnapshotCache(snapshots)
	paymentService.SetMetrics(metrics)
	paymentService.SetNotifier(notifier)
	preorderService.SetAutoPayments(paymentService)

	stager := staging.NewStager(preorderService, cfg.ApplyConcurrency, logger)
	stager.SetMetrics(metrics)

	reminderRepo := reminders.NewRepository(pool)
	reminderService := reminders.NewService(reminderRepo, logger)
	reminderService.SetNotifier(notifier)

	paymentHandler := payments.NewHandler(logger, paymentService)
	paymentHandler.SetIdempotency(idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		PreorderHandler: preorders.NewHandler(logger, preorderService),
		PaymentHandler:  paymentHandler,
		StagingHandler:  staging.NewHandler(logger, stager),
		FlightHandler:   flights.NewHandler(logger, flightRepo),
		CustomerHandler: customers.NewHandler(logger, customerRepo),
		ReminderHandler: reminders.NewHandler(logger, reminderService),
		ExportHandler:   export.NewHandler(logger, preorderService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
