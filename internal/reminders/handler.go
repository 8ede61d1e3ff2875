package reminders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-preorders/caravel/internal/platform/httpx"
	"github.com/caravel-preorders/caravel/internal/shared"
)

// Handler exposes the reminder API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches the reminder endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/done", h.MarkDone)
}

type createReminderRequest struct {
	OrderID    *int64    `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	CustomerID *int64    `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Note       string    `json:"note" validate:"required"`
	DueAt      time.Time `json:"due_at" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rem, err := h.service.Create(r.Context(), Reminder{
		UserID:     shared.ActorFromContext(r.Context()),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Note:       req.Note,
		DueAt:      req.DueAt,
	})
	if err != nil {
		h.respondError(w, "create reminder", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rem)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dueOnly := r.URL.Query().Get("due") == "1"
	reminders, err := h.service.List(r.Context(), shared.ActorFromContext(r.Context()), dueOnly)
	if err != nil {
		h.respondError(w, "list reminders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid reminder id")
		return
	}
	if err := h.service.MarkDone(r.Context(), id); err != nil {
		h.respondError(w, "mark reminder done", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
