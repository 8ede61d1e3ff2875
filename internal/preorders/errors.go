package preorders

import "errors"

// Domain errors for pre-orders.
var (
	// ErrNotFound indicates the requested order was not found.
	ErrNotFound = errors.New("pre-order not found")
	// ErrItemNotFound indicates an item id that does not belong to the order.
	ErrItemNotFound = errors.New("order item not found")
	// ErrCustomerNotFound indicates an unresolved customer reference.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrFlightNotFound indicates an unresolved flight reference.
	ErrFlightNotFound = errors.New("flight not found")

	// Validation errors.
	ErrNoItems        = errors.New("at least one non-blank item is required")
	ErrInvalidStatus  = errors.New("unknown order status")
	ErrNegativeCharge = errors.New("charges cannot be negative")
	ErrItemInvalid    = errors.New("item must have a name, quantity >= 1 and price >= 0")

	// ErrPaymentsExist blocks deletion while payment records reference the order.
	ErrPaymentsExist = errors.New("order has recorded payments; delete with cascade to remove them")
)
