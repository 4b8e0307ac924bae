package orderbook

import (
	"github.com/cockroachdb/errors"

	"tickbook/domain/symbol"
	"tickbook/infra/sequence"
)

// OrderBook is single-writer and deterministic.
type OrderBook struct {
	cfg   Config
	store *SlotStore
	index *PriceLevelIndex
	seq   *sequence.Sequencer
}

func New(cfg Config) (*OrderBook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store := NewSlotStore(cfg.Symbol, cfg.Capacity)
	return &OrderBook{
		cfg:   cfg,
		store: store,
		index: NewPriceLevelIndex(cfg.MinTick, cfg.MaxTick, store),
		seq:   sequence.New(0),
	}, nil
}

func (b *OrderBook) Symbol() symbol.Symbol {
	return b.cfg.Symbol
}

func (b *OrderBook) Config() Config {
	return b.cfg
}

// AddOrder matches an incoming limit order against the contra side and
// rests whatever is left at its own price.
func (b *OrderBook) AddOrder(side Side, price Tick, qty int64) (Result, error) {
	pos, err := b.validate(side, price, qty)
	if err != nil {
		return Result{}, err
	}

	res := Result{Seq: b.seq.Next()}
	remaining := b.match(side, pos, qty, &res)
	res.Filled = qty - remaining

	if remaining > 0 {
		h := b.store.Allocate(Order{
			Seq:       res.Seq,
			Price:     price,
			Quantity:  qty,
			Remaining: remaining,
			Side:      side,
			Symbol:    b.cfg.Symbol,
		})
		b.index.Enqueue(side, pos, h.Slot())
		res.Resting = h
	}
	return res, nil
}

// CancelOrder removes a resting order and returns its final state.
func (b *OrderBook) CancelOrder(h Handle) (Order, error) {
	o, ok := b.store.Lookup(h)
	if !ok {
		return Order{}, errors.Wrapf(ErrOrderNotFound, "handle %#x", uint64(h))
	}
	pos, _ := b.index.Position(o.Price)
	b.index.Remove(o.Side, pos, h.Slot())
	cancelled := *o
	b.store.Release(h)
	return cancelled, nil
}

// ReplaceOrder cancels h and submits a new order on the same side. The
// replacement loses time priority. It returns the replaced order's final
// state with the new result. Nothing changes if either the handle or the
// new terms are rejected.
func (b *OrderBook) ReplaceOrder(h Handle, price Tick, qty int64) (Result, Order, error) {
	o, ok := b.store.Lookup(h)
	if !ok {
		return Result{}, Order{}, errors.Wrapf(ErrOrderNotFound, "handle %#x", uint64(h))
	}
	if _, err := b.validate(o.Side, price, qty); err != nil {
		return Result{}, Order{}, err
	}
	old, err := b.CancelOrder(h)
	if err != nil {
		return Result{}, Order{}, err
	}
	res, err := b.AddOrder(old.Side, price, qty)
	return res, old, err
}

// Order returns a copy of a live order.
func (b *OrderBook) Order(h Handle) (Order, bool) {
	o, ok := b.store.Lookup(h)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (b *OrderBook) BestBid() (Tick, bool) {
	return b.best(Buy)
}

func (b *OrderBook) BestAsk() (Tick, bool) {
	return b.best(Sell)
}

func (b *OrderBook) Top() Top {
	var t Top
	if pos, ok := b.index.Best(Buy); ok {
		t.BidPrice = b.index.Tick(pos)
		t.BidVolume = b.index.Volume(Buy, pos)
		t.HasBid = true
	}
	if pos, ok := b.index.Best(Sell); ok {
		t.AskPrice = b.index.Tick(pos)
		t.AskVolume = b.index.Volume(Sell, pos)
		t.HasAsk = true
	}
	return t
}

// Depth returns up to n occupied levels on side, best first. n <= 0
// returns every level.
func (b *OrderBook) Depth(side Side, n int) []Level {
	if !side.Valid() {
		return nil
	}
	pos, ok := b.index.Best(side)
	if !ok {
		return nil
	}
	var out []Level
	for ; pos >= 0 && (n <= 0 || len(out) < n); pos = b.index.Next(side, pos) {
		out = append(out, Level{
			Price:  b.index.Tick(pos),
			Volume: b.index.Volume(side, pos),
			Orders: b.index.Count(side, pos),
		})
	}
	return out
}

// Len is the number of resting orders.
func (b *OrderBook) Len() int {
	return b.store.Len()
}

func (b *OrderBook) best(side Side) (Tick, bool) {
	pos, ok := b.index.Best(side)
	if !ok {
		return 0, false
	}
	return b.index.Tick(pos), true
}

func (b *OrderBook) validate(side Side, price Tick, qty int64) (int, error) {
	if !side.Valid() {
		return 0, errors.Wrapf(ErrInvalidSide, "%d", uint8(side))
	}
	if qty <= 0 {
		return 0, errors.Wrapf(ErrInvalidQuantity, "%d", qty)
	}
	pos, ok := b.index.Position(price)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidPrice, "%d not in [%d, %d]", price, b.cfg.MinTick, b.cfg.MaxTick)
	}
	return pos, nil
}

// ---- matching ----

// match consumes contra liquidity while it crosses pos and returns the
// unexecuted quantity.
func (b *OrderBook) match(side Side, pos int, qty int64, res *Result) int64 {
	contra := side.Opposite()
	for qty > 0 {
		best, ok := b.index.Best(contra)
		if !ok || !crosses(side, pos, best) {
			break
		}

		slot, _ := b.index.PeekFront(contra, best)
		maker := b.store.at(slot)
		trade := min(qty, maker.Remaining)

		maker.Remaining -= trade
		qty -= trade
		b.index.reduce(contra, best, trade)

		fill := Fill{
			Maker:     b.store.handle(slot),
			MakerSeq:  maker.Seq,
			Price:     maker.Price,
			Quantity:  trade,
			MakerDone: maker.Remaining == 0,
		}
		res.Fills = append(res.Fills, fill)

		if fill.MakerDone {
			b.index.DequeueFront(contra, best)
			b.store.Release(fill.Maker)
		}
	}
	return qty
}

// crosses reports whether an incoming order at pos trades with the contra
// level at best.
func crosses(side Side, pos, best int) bool {
	if side == Buy {
		return best <= pos
	}
	return best >= pos
}
