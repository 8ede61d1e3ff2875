package flights

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-preorders/caravel/internal/platform/httpx"
)

// Store is what the handler needs from persistence.
type Store interface {
	Get(ctx context.Context, id int64) (*Flight, error)
	List(ctx context.Context, status *Status) ([]Flight, error)
	Create(ctx context.Context, f Flight) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// Handler exposes the flight API.
type Handler struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes attaches the flight endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.UpdateStatus)
}

type createFlightRequest struct {
	Name          string     `json:"name" validate:"required"`
	Status        Status     `json:"status,omitempty"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	ArrivalDate   *time.Time `json:"arrival_date,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var status *Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := Status(v)
		if !s.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+v)
			return
		}
		status = &s
	}
	flights, err := h.store.List(r.Context(), status)
	if err != nil {
		h.respondError(w, "list flights", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"flights": flights})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flightID(w, r)
	if !ok {
		return
	}
	flight, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get flight", err)
		return
	}
	httpx.JSON(w, http.StatusOK, flight)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFlightRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status := req.Status
	if status == "" {
		status = StatusScheduled
	}
	if !status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+string(status))
		return
	}
	id, err := h.store.Create(r.Context(), Flight{
		Name:          req.Name,
		Status:        status,
		DepartureDate: req.DepartureDate,
		ArrivalDate:   req.ArrivalDate,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(w, "create flight", err)
		return
	}
	flight, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get flight", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, flight)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flightID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status Status `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.store.UpdateStatus(r.Context(), id, req.Status); err != nil {
		h.respondError(w, "update flight status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) flightID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid flight id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
