package orderbook

import (
	"math"

	"tickbook/domain/symbol"
)

type slot struct {
	order    Order
	gen      uint32
	nextFree uint32
	live     bool
}

// SlotStore is the arena that owns every resting order. Released slots
// go on a LIFO free list and are handed out again before the arena grows,
// which keeps the hot working set small.
//
// Pointers returned by Get and Lookup are only valid until the next
// Allocate, which may grow the backing slice.
type SlotStore struct {
	owner symbol.Symbol
	slots []slot
	free  uint32
	live  int
}

// NewSlotStore returns an arena whose handles are stamped with owner.
func NewSlotStore(owner symbol.Symbol, capacity int) *SlotStore {
	return &SlotStore{
		owner: owner,
		slots: make([]slot, 0, capacity),
		free:  nilSlot,
	}
}

// Allocate copies o into a free slot and returns its handle.
func (s *SlotStore) Allocate(o Order) Handle {
	var idx uint32
	if s.free != nilSlot {
		idx = s.free
		s.free = s.slots[idx].nextFree
	} else {
		if len(s.slots) >= math.MaxUint32 {
			panic("orderbook: slot arena exhausted")
		}
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot{gen: 1})
	}

	sl := &s.slots[idx]
	sl.order = o
	sl.order.prev = nilSlot
	sl.order.next = nilSlot
	sl.nextFree = nilSlot
	sl.live = true
	s.live++

	return makeHandle(s.owner, idx, sl.gen)
}

// Get dereferences a handle the caller knows to be live.
func (s *SlotStore) Get(h Handle) *Order {
	return &s.slots[h.Slot()].order
}

// Lookup dereferences h only if it still names the order it was issued
// for. Released, recycled, never-issued and foreign handles report false.
func (s *SlotStore) Lookup(h Handle) (*Order, bool) {
	idx := h.Slot()
	if h == NoHandle || h.Symbol() != s.owner || int(idx) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[idx]
	if !sl.live || sl.gen != h.generation() {
		return nil, false
	}
	return &sl.order, true
}

// Release frees the slot. Any copy of h is stale from here on.
func (s *SlotStore) Release(h Handle) {
	idx := h.Slot()
	sl := &s.slots[idx]
	sl.live = false
	sl.gen = (sl.gen + 1) & genMask
	if sl.gen == 0 {
		sl.gen = 1
	}
	sl.nextFree = s.free
	s.free = idx
	s.live--
}

// Len is the number of occupied slots.
func (s *SlotStore) Len() int {
	return s.live
}

// Cap is the number of slots ever created.
func (s *SlotStore) Cap() int {
	return len(s.slots)
}

func (s *SlotStore) at(idx uint32) *Order {
	return &s.slots[idx].order
}

func (s *SlotStore) handle(idx uint32) Handle {
	return makeHandle(s.owner, idx, s.slots[idx].gen)
}
