package order

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrNotDelivered      = errors.New("order is not delivered yet")
	ErrAlreadyRated      = errors.New("order is already rated")
	ErrInvalidRating     = errors.New("stars must be between 1 and 5")
)
