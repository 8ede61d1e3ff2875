package preorders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/platform/httpx"
	"github.com/caravel-preorders/caravel/internal/shared"
)

// Handler exposes the pre-order API. Both the admin and the employee
// editors call these endpoints; the arithmetic lives in one place below
// them.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, "create pre-order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get pre-order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListOrdersRequest{}
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
		status := OrderStatus(v)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+v)
			return
		}
		req.Status = &status
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	orders, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, r, "list pre-orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, "update pre-order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	cascade := r.URL.Query().Get("cascade") == "1"
	if err := h.service.Delete(r.Context(), id, cascade); err != nil {
		h.respondError(w, r, "delete pre-order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	totals, err := h.service.Recompute(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "recompute ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totalsResponse(totals))
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status OrderStatus `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.ChangeStatus(r.Context(), id, req.Status); err != nil {
		h.respondError(w, r, "change status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		FlightID *int64 `json:"flight_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.AssignFlight(r.Context(), id, req.FlightID); err != nil {
		h.respondError(w, r, "assign flight", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrFlightNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrNegativeCharge), errors.Is(err, ErrItemInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrPaymentsExist):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func totalsResponse(t ledger.Totals) map[string]any {
	return map[string]any{
		"subtotal":         t.Subtotal,
		"total_amount":     t.Total,
		"remaining_amount": t.Remaining,
		"overpaid":         t.Overpaid,
	}
}
