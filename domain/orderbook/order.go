package orderbook

import "tickbook/domain/symbol"

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	return s ^ 1
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool {
	return s <= Sell
}

// Tick is a price expressed as an integer multiple of the tick size.
type Tick int64

// Handle identifies a resting order. Bits 0-31 hold the slot index,
// bits 32-55 the slot generation at allocation time and bits 56-63 the
// symbol of the issuing book.
type Handle uint64

// NoHandle is never issued.
const NoHandle Handle = 0

const genMask = 1<<24 - 1

func makeHandle(sym symbol.Symbol, slot, gen uint32) Handle {
	return Handle(uint64(sym)<<56 | uint64(gen&genMask)<<32 | uint64(slot))
}

// Slot returns the arena slot the handle points at. Slots are reused.
func (h Handle) Slot() uint32 {
	return uint32(h)
}

// Symbol returns the symbol of the book that issued h.
func (h Handle) Symbol() symbol.Symbol {
	return symbol.Symbol(h >> 56)
}

func (h Handle) generation() uint32 {
	return uint32(h>>32) & genMask
}

const nilSlot = ^uint32(0)

// Order is the arena record of a resting order.
type Order struct {
	Seq       uint64
	Price     Tick
	Quantity  int64
	Remaining int64
	Side      Side
	Symbol    symbol.Symbol

	prev uint32
	next uint32
}

// Filled returns the executed quantity so far.
func (o *Order) Filled() int64 {
	return o.Quantity - o.Remaining
}

// Fill is one execution against a resting order, priced at the resting
// order's tick.
type Fill struct {
	Maker    Handle
	MakerSeq uint64
	Price    Tick
	Quantity int64
	// MakerDone is set when this fill exhausted the resting order.
	MakerDone bool
}

// Result is the outcome of AddOrder.
type Result struct {
	// Seq is the arrival sequence assigned to the incoming order.
	Seq   uint64
	Fills []Fill
	// Filled is the total quantity executed by the incoming order.
	Filled int64
	// Resting is the handle of the remainder, NoHandle if nothing rests.
	Resting Handle
}

// Rested reports whether part of the incoming order joined the book.
func (r Result) Rested() bool {
	return r.Resting != NoHandle
}

// Level is an aggregated view of one price level.
type Level struct {
	Price  Tick
	Volume int64
	Orders int
}

// Top is the best price and aggregate volume on each side.
type Top struct {
	BidPrice  Tick
	BidVolume int64
	HasBid    bool
	AskPrice  Tick
	AskVolume int64
	HasAsk    bool
}
