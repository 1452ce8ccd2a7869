package sale

import "errors"

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("sale: invalid configuration")

	// Purchase errors
	ErrInvalidQuantity           = errors.New("sale: quantity must be positive")
	ErrSaleNotActive             = errors.New("sale: sale is not active")
	ErrSupplyExceeded            = errors.New("sale: insufficient remaining supply")
	ErrInsufficientAuthorization = errors.New("sale: buyer authorization too low")
	ErrInsufficientFunds         = errors.New("sale: buyer balance too low")

	// Administrative errors
	ErrUnauthorized      = errors.New("sale: caller is not the owner")
	ErrInvalidTransition = errors.New("sale: invalid status transition")
)
