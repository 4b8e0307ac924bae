package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/symbol"
)

func newTestIndex(t *testing.T) (*PriceLevelIndex, *SlotStore) {
	t.Helper()
	store := NewSlotStore(symbol.AAPL, 16)
	return NewPriceLevelIndex(100, 110, store), store
}

func rest(x *PriceLevelIndex, s *SlotStore, side Side, price Tick, qty int64) Handle {
	h := s.Allocate(Order{Price: price, Quantity: qty, Remaining: qty, Side: side})
	pos, _ := x.Position(price)
	x.Enqueue(side, pos, h.Slot())
	return h
}

func TestPriceLevelIndexPosition(t *testing.T) {
	x, _ := newTestIndex(t)

	pos, ok := x.Position(100)
	assert.True(t, ok)
	assert.Equal(t, 0, pos)

	pos, ok = x.Position(110)
	assert.True(t, ok)
	assert.Equal(t, 10, pos)
	assert.Equal(t, Tick(110), x.Tick(pos))

	_, ok = x.Position(99)
	assert.False(t, ok)
	_, ok = x.Position(111)
	assert.False(t, ok)
}

func TestPriceLevelIndexFIFO(t *testing.T) {
	x, s := newTestIndex(t)
	a := rest(x, s, Sell, 105, 5)
	b := rest(x, s, Sell, 105, 3)
	c := rest(x, s, Sell, 105, 2)

	pos, _ := x.Position(105)
	assert.Equal(t, 3, x.Count(Sell, pos))
	assert.Equal(t, int64(10), x.Volume(Sell, pos))

	for _, want := range []Handle{a, b, c} {
		slot, ok := x.DequeueFront(Sell, pos)
		require.True(t, ok)
		assert.Equal(t, want.Slot(), slot)
	}
	_, ok := x.PeekFront(Sell, pos)
	assert.False(t, ok)
	_, ok = x.Best(Sell)
	assert.False(t, ok)
}

func TestPriceLevelIndexRemoveMiddle(t *testing.T) {
	x, s := newTestIndex(t)
	a := rest(x, s, Buy, 103, 1)
	b := rest(x, s, Buy, 103, 2)
	c := rest(x, s, Buy, 103, 4)

	pos, _ := x.Position(103)
	x.Remove(Buy, pos, b.Slot())

	assert.Equal(t, 2, x.Count(Buy, pos))
	assert.Equal(t, int64(5), x.Volume(Buy, pos))
	assert.Equal(t, c.Slot(), s.at(a.Slot()).next)
	assert.Equal(t, a.Slot(), s.at(c.Slot()).prev)

	x.Remove(Buy, pos, c.Slot())
	slot, ok := x.PeekFront(Buy, pos)
	require.True(t, ok)
	assert.Equal(t, a.Slot(), slot)
}

func TestPriceLevelIndexBestTracking(t *testing.T) {
	x, s := newTestIndex(t)

	bid101 := rest(x, s, Buy, 101, 1)
	bid104 := rest(x, s, Buy, 104, 1)
	rest(x, s, Buy, 102, 1)
	ask109 := rest(x, s, Sell, 109, 1)
	rest(x, s, Sell, 110, 1)
	ask106 := rest(x, s, Sell, 106, 1)

	best, ok := x.Best(Buy)
	require.True(t, ok)
	assert.Equal(t, Tick(104), x.Tick(best))
	best, ok = x.Best(Sell)
	require.True(t, ok)
	assert.Equal(t, Tick(106), x.Tick(best))

	// emptying the best level moves away from the spread
	pos, _ := x.Position(104)
	x.Remove(Buy, pos, bid104.Slot())
	best, _ = x.Best(Buy)
	assert.Equal(t, Tick(102), x.Tick(best))

	pos, _ = x.Position(106)
	x.Remove(Sell, pos, ask106.Slot())
	best, _ = x.Best(Sell)
	assert.Equal(t, Tick(109), x.Tick(best))

	// removing a non-best level leaves best alone
	pos, _ = x.Position(101)
	x.Remove(Buy, pos, bid101.Slot())
	best, _ = x.Best(Buy)
	assert.Equal(t, Tick(102), x.Tick(best))

	pos, _ = x.Position(109)
	x.Remove(Sell, pos, ask109.Slot())
	best, _ = x.Best(Sell)
	assert.Equal(t, Tick(110), x.Tick(best))
}

func TestPriceLevelIndexNext(t *testing.T) {
	x, s := newTestIndex(t)
	for _, p := range []Tick{100, 103, 107} {
		rest(x, s, Buy, p, 1)
		rest(x, s, Sell, p, 1)
	}

	pos, _ := x.Position(107)
	assert.Equal(t, Tick(103), x.Tick(x.Next(Buy, pos)))
	pos, _ = x.Position(100)
	assert.Equal(t, -1, x.Next(Buy, pos))

	pos, _ = x.Position(100)
	assert.Equal(t, Tick(103), x.Tick(x.Next(Sell, pos)))
	pos, _ = x.Position(107)
	assert.Equal(t, -1, x.Next(Sell, pos))
}
