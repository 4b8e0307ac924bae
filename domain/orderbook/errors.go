package orderbook

import "github.com/cockroachdb/errors"

var (
	ErrInvalidPrice    = errors.New("price outside tick window")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidSide     = errors.New("invalid side")
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidConfig   = errors.New("invalid order book config")
)
