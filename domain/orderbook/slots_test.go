package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/symbol"
)

func TestSlotStoreAllocateLookup(t *testing.T) {
	s := NewSlotStore(symbol.MSFT, 4)

	h := s.Allocate(Order{Seq: 1, Price: 100, Quantity: 5, Remaining: 5})
	require.NotEqual(t, NoHandle, h)

	o, ok := s.Lookup(h)
	require.True(t, ok)
	assert.Equal(t, uint64(1), o.Seq)
	assert.Equal(t, int64(5), o.Remaining)
	assert.Equal(t, nilSlot, o.prev)
	assert.Equal(t, nilSlot, o.next)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Cap())
}

func TestSlotStoreReleaseReusesSlotLIFO(t *testing.T) {
	s := NewSlotStore(symbol.MSFT, 0)

	a := s.Allocate(Order{Seq: 1})
	b := s.Allocate(Order{Seq: 2})
	s.Release(a)
	s.Release(b)

	c := s.Allocate(Order{Seq: 3})
	d := s.Allocate(Order{Seq: 4})

	assert.Equal(t, b.Slot(), c.Slot(), "last released slot is handed out first")
	assert.Equal(t, a.Slot(), d.Slot())
	assert.Equal(t, 2, s.Cap(), "arena must not grow while free slots exist")
	assert.Equal(t, 2, s.Len())
}

func TestSlotStoreStaleHandle(t *testing.T) {
	s := NewSlotStore(symbol.MSFT, 1)

	old := s.Allocate(Order{Seq: 1})
	s.Release(old)
	fresh := s.Allocate(Order{Seq: 2})

	require.Equal(t, old.Slot(), fresh.Slot())
	require.NotEqual(t, old, fresh)

	_, ok := s.Lookup(old)
	assert.False(t, ok, "stale handle must not resolve to the new occupant")

	o, ok := s.Lookup(fresh)
	require.True(t, ok)
	assert.Equal(t, uint64(2), o.Seq)
}

func TestSlotStoreLookupRejectsUnknown(t *testing.T) {
	s := NewSlotStore(symbol.MSFT, 1)
	s.Allocate(Order{})

	tests := []struct {
		name string
		h    Handle
	}{
		{"no handle", NoHandle},
		{"out of bounds", makeHandle(symbol.MSFT, 7, 1)},
		{"wrong generation", makeHandle(symbol.MSFT, 0, 9)},
		{"other symbol", makeHandle(symbol.TSLA, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Lookup(tt.h)
			assert.False(t, ok)
		})
	}
}

func TestSlotStoreGenerationSkipsZero(t *testing.T) {
	s := NewSlotStore(symbol.MSFT, 1)
	h := s.Allocate(Order{})
	s.slots[h.Slot()].gen = genMask
	s.Release(makeHandle(symbol.MSFT, h.Slot(), genMask))

	next := s.Allocate(Order{})
	assert.Equal(t, uint32(1), next.generation())
	assert.NotEqual(t, NoHandle, next)
}

func TestHandleCarriesOwner(t *testing.T) {
	aapl := NewSlotStore(symbol.AAPL, 1)
	nflx := NewSlotStore(symbol.NFLX, 1)

	a := aapl.Allocate(Order{Seq: 1})
	n := nflx.Allocate(Order{Seq: 2})

	require.Equal(t, a.Slot(), n.Slot())
	assert.NotEqual(t, a, n)
	assert.Equal(t, symbol.AAPL, a.Symbol())
	assert.Equal(t, symbol.NFLX, n.Symbol())

	_, ok := nflx.Lookup(a)
	assert.False(t, ok)
	_, ok = aapl.Lookup(n)
	assert.False(t, ok)
}
