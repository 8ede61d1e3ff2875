package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caravel-preorders/caravel/internal/platform/httpx"
	"github.com/caravel-preorders/caravel/internal/shared"
)

// IdempotencyChecker guards the record endpoint against duplicate form
// submissions. Implemented by shared.IdempotencyStore.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the payment API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency IdempotencyChecker
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// SetIdempotency wires the duplicate-submission guard.
func (h *Handler) SetIdempotency(c IdempotencyChecker) { h.idempotency = c }

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "payments"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "payment already recorded for this key")
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	payment, err := h.service.Record(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		// A failed validation or ledger write may be retried with the
		// same key; a stale-ledger outcome must not, the payment exists.
		if key != "" && h.idempotency != nil && !errors.Is(err, ErrLedgerStale) {
			if derr := h.idempotency.Delete(r.Context(), key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListPaymentsRequest{}
	q := r.URL.Query()
	if v := q.Get("order_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.OrderID = &id
		}
	}
	if v := q.Get("customer_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}
	if v := q.Get("purpose"); v != "" {
		purpose := Purpose(v)
		if !purpose.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown purpose "+v)
			return
		}
		req.Purpose = &purpose
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	payments, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payments":   payments,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	var req UpdatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	payment, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, "update payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var stale *StaleLedgerError
	switch {
	case errors.As(err, &stale):
		h.logger.Error(op+" left ledger stale", slog.Int64("payment_id", stale.PaymentID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Ledger Stale",
			fmt.Sprintf("payment %d recorded but the order ledger was not updated; recompute the order", stale.PaymentID))
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Overpayment", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
