package outbox

import (
	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

// Report is one execution as delivered downstream. A single incoming
// order produces one report per fill.
type Report struct {
	ID        uint64
	Symbol    symbol.Symbol
	TakerSeq  uint64
	TakerSide orderbook.Side
	MakerSeq  uint64
	Maker     orderbook.Handle
	Price     orderbook.Tick
	Quantity  int64
	MakerDone bool
	// Timestamp is unix nanoseconds at match time.
	Timestamp int64
}
