package staging

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-preorders/caravel/internal/platform/httpx"
	"github.com/caravel-preorders/caravel/internal/preorders"
)

// Handler exposes the staging API.
type Handler struct {
	logger   *slog.Logger
	stager   *Stager
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, stager *Stager) *Handler {
	return &Handler{
		logger:   logger,
		stager:   stager,
		validate: validator.New(),
	}
}

type stageChangeRequest struct {
	OrderID     int64                  `json:"order_id" validate:"required,gt=0"`
	Field       Field                  `json:"field" validate:"required"`
	Status      *preorders.OrderStatus `json:"status,omitempty"`
	FlightID    *int64                 `json:"flight_id,omitempty"`
	ClearFlight bool                   `json:"clear_flight,omitempty"`
}

type bulkApplyRequest struct {
	OrderIDs    []int64                `json:"order_ids" validate:"required,min=1"`
	Field       Field                  `json:"field" validate:"required"`
	Status      *preorders.OrderStatus `json:"status,omitempty"`
	FlightID    *int64                 `json:"flight_id,omitempty"`
	ClearFlight bool                   `json:"clear_flight,omitempty"`
}

func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req stageChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	change := Change{Status: req.Status, FlightID: req.FlightID, ClearFlight: req.ClearFlight}
	if err := h.stager.Stage(userID, req.OrderID, req.Field, change); err != nil {
		h.respondError(w, "stage change", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	pending := h.stager.Pending(userID)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"has_pending": len(pending) > 0,
		"pending":     pending,
	})
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	manifest := h.stager.ApplyAll(r.Context(), userID)
	httpx.JSON(w, http.StatusOK, map[string]any{"manifest": manifest})
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	h.stager.DiscardAll(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	var req bulkApplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	change := Change{Status: req.Status, FlightID: req.FlightID, ClearFlight: req.ClearFlight}
	manifest, err := h.stager.ApplyToSet(r.Context(), req.OrderIDs, req.Field, change)
	if err != nil {
		h.respondError(w, "bulk apply", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"manifest": manifest})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownField), errors.Is(err, preorders.ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
