package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/caravel-preorders/caravel/internal/customers"
	"github.com/caravel-preorders/caravel/internal/export"
	"github.com/caravel-preorders/caravel/internal/flights"
	"github.com/caravel-preorders/caravel/internal/observability"
	"github.com/caravel-preorders/caravel/internal/payments"
	"github.com/caravel-preorders/caravel/internal/preorders"
	"github.com/caravel-preorders/caravel/internal/reminders"
	"github.com/caravel-preorders/caravel/internal/staging"
	"github.com/caravel-preorders/caravel/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	PreorderHandler *preorders.Handler
	PaymentHandler  *payments.Handler
	StagingHandler  *staging.Handler
	FlightHandler   *flights.Handler
	CustomerHandler *customers.Handler
	ReminderHandler *reminders.Handler
	ExportHandler   *export.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Caravel defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/preorders", params.PreorderHandler.MountRoutes)
	r.Route("/payments", params.PaymentHandler.MountRoutes)
	r.Route("/staging", params.StagingHandler.MountRoutes)
	r.Route("/flights", params.FlightHandler.MountRoutes)
	r.Route("/customers", params.CustomerHandler.MountRoutes)
	r.Route("/reminders", params.ReminderHandler.MountRoutes)
	r.Route("/export", params.ExportHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
