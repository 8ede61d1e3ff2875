package preorders

import (
	"fmt"

	"github.com/caravel-preorders/caravel/internal/ledger"
)

// CreateOrderRequest creates an order with its initial item drafts. Item
// drafts carrying an advance trigger an automatic payment record.
type CreateOrderRequest struct {
	CustomerID      int64        `json:"customer_id" validate:"required,gt=0"`
	FlightID        *int64       `json:"flight_id,omitempty" validate:"omitempty,gt=0"`
	Status          OrderStatus  `json:"status,omitempty"`
	DeliveryCharges ledger.Money `json:"delivery_charges"`
	CODAmount       ledger.Money `json:"cod_amount"`
	Notes           *string      `json:"notes,omitempty"`
	Items           []ItemDraft  `json:"items" validate:"required"`
}

// UpdateOrderRequest edits an order. A nil Items slice leaves the item
// set (and therefore the derived totals) untouched.
type UpdateOrderRequest struct {
	FlightID        *int64        `json:"flight_id,omitempty"`
	Status          *OrderStatus  `json:"status,omitempty"`
	DeliveryCharges *ledger.Money `json:"delivery_charges,omitempty"`
	CODAmount       *ledger.Money `json:"cod_amount,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	Items           *[]ItemDraft  `json:"items,omitempty"`
}

// ListOrdersRequest filters the order listing.
type ListOrdersRequest struct {
	CustomerID *int64       `json:"customer_id,omitempty"`
	FlightID   *int64       `json:"flight_id,omitempty"`
	Status     *OrderStatus `json:"status,omitempty"`
	Page       int          `json:"page" validate:"gte=0"`
	PerPage    int          `json:"per_page" validate:"gte=0,lte=500"`
}

// ValidateCreateRequest applies the rules validator tags cannot express.
func ValidateCreateRequest(req CreateOrderRequest) error {
	if req.Status != "" && !req.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if !req.DeliveryCharges.IsNonNegative() || !req.CODAmount.IsNonNegative() {
		return ErrNegativeCharge
	}
	nonBlank := 0
	for i, draft := range req.Items {
		if draft.IsBlank() {
			continue
		}
		nonBlank++
		if err := validateDraft(i, draft); err != nil {
			return err
		}
	}
	if nonBlank == 0 {
		return ErrNoItems
	}
	return nil
}

// ValidateUpdateRequest applies the same rules to an edit.
func ValidateUpdateRequest(req UpdateOrderRequest) error {
	if req.Status != nil && !req.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
	}
	if req.DeliveryCharges != nil && !req.DeliveryCharges.IsNonNegative() {
		return ErrNegativeCharge
	}
	if req.CODAmount != nil && !req.CODAmount.IsNonNegative() {
		return ErrNegativeCharge
	}
	if req.Items != nil {
		nonBlank := 0
		for i, draft := range *req.Items {
			if draft.IsBlank() {
				continue
			}
			nonBlank++
			if err := validateDraft(i, draft); err != nil {
				return err
			}
		}
		if nonBlank == 0 {
			return ErrNoItems
		}
	}
	return nil
}

func validateDraft(idx int, draft ItemDraft) error {
	if draft.ProductName == "" || draft.Quantity < 1 || !draft.Price.IsNonNegative() {
		return fmt.Errorf("item %d: %w", idx+1, ErrItemInvalid)
	}
	if !draft.AdvancePayment.IsNonNegative() {
		return fmt.Errorf("item %d: %w", idx+1, ErrItemInvalid)
	}
	if draft.AdvancePayment.GreaterThan(draft.Price.MulQty(draft.Quantity)) {
		return fmt.Errorf("item %d: advance exceeds item value: %w", idx+1, ErrItemInvalid)
	}
	return nil
}
