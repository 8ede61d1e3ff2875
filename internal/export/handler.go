package export

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caravel-preorders/caravel/internal/preorders"
)

// Handler exposes the CSV export endpoint.
type Handler struct {
	logger *slog.Logger
	source OrderSource
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, source OrderSource) *Handler {
	return &Handler{logger: logger, source: source}
}

// MountRoutes attaches the export endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/preorders.csv", h.OrdersCSV)
}

func (h *Handler) OrdersCSV(w http.ResponseWriter, r *http.Request) {
	req := preorders.ListOrdersRequest{}
	q := r.URL.Query()
	if v := q.Get("customer_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}
	if v := q.Get("flight_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.FlightID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		status := preorders.OrderStatus(v)
		if status.Valid() {
			req.Status = &status
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="preorders.csv"`)
	if err := WriteOrdersCSV(r.Context(), w, h.source, req); err != nil {
		// Headers are gone by now; log and cut the stream short.
		h.logger.Error("export preorders csv", slog.Any("error", err))
	}
}
