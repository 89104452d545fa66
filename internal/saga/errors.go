package saga

import "errors"

// Terminal and unavailability failures of the order-creation pipeline. The
// HTTP layer maps these onto 400 (business-terminal) and 503 (collaborator
// down) responses.
var (
	ErrCustomerUnavailable  = errors.New("customer service unavailable")
	ErrInventoryUnavailable = errors.New("inventory service unavailable")
	ErrPricingUnavailable   = errors.New("cannot calculate price")
	ErrInsufficientStock    = errors.New("product not available in requested quantity")
	ErrReservationFailed    = errors.New("cannot reserve product")
)
