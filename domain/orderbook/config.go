package orderbook

import (
	"github.com/cockroachdb/errors"

	"tickbook/domain/symbol"
)

// MaxLevels bounds the tick window so one book cannot take unbounded
// memory. Each level costs two small structs plus two bits.
const MaxLevels = 1 << 16

// Config fixes the tick window of a book at construction. The window is
// never re-centred; a price outside it is rejected.
type Config struct {
	Symbol  symbol.Symbol
	MinTick Tick
	MaxTick Tick
	// Capacity pre-sizes the slot arena. The arena still grows past it.
	Capacity int
}

func (c Config) Validate() error {
	if c.MinTick < 0 {
		return errors.Wrapf(ErrInvalidConfig, "min tick %d is negative", c.MinTick)
	}
	if c.MaxTick < c.MinTick {
		return errors.Wrapf(ErrInvalidConfig, "max tick %d below min tick %d", c.MaxTick, c.MinTick)
	}
	if width := int64(c.MaxTick-c.MinTick) + 1; width > MaxLevels {
		return errors.Wrapf(ErrInvalidConfig, "window of %d ticks exceeds %d", width, MaxLevels)
	}
	if c.Capacity < 0 {
		return errors.Wrapf(ErrInvalidConfig, "capacity %d is negative", c.Capacity)
	}
	return nil
}

func (c Config) levels() int {
	return int(c.MaxTick-c.MinTick) + 1
}
