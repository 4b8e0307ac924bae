package orderbook

// level is the FIFO queue resting at one tick. Links are slot indices
// into the SlotStore.
type level struct {
	head   uint32
	tail   uint32
	count  int
	volume int64
}

type bookSide struct {
	levels   []level
	occupied bitset
	best     int // -1 when the side is empty
}

// PriceLevelIndex maps every tick of a fixed window to a queue, one array
// per side. Position = tick - MinTick. The arrays never grow.
type PriceLevelIndex struct {
	minTick Tick
	maxTick Tick
	store   *SlotStore
	sides   [2]bookSide
}

func NewPriceLevelIndex(minTick, maxTick Tick, store *SlotStore) *PriceLevelIndex {
	n := int(maxTick-minTick) + 1
	x := &PriceLevelIndex{
		minTick: minTick,
		maxTick: maxTick,
		store:   store,
	}
	for i := range x.sides {
		levels := make([]level, n)
		for j := range levels {
			levels[j].head = nilSlot
			levels[j].tail = nilSlot
		}
		x.sides[i] = bookSide{
			levels:   levels,
			occupied: newBitset(n),
			best:     -1,
		}
	}
	return x
}

// Position converts a tick to its array position.
func (x *PriceLevelIndex) Position(t Tick) (int, bool) {
	if t < x.minTick || t > x.maxTick {
		return 0, false
	}
	return int(t - x.minTick), true
}

func (x *PriceLevelIndex) Tick(pos int) Tick {
	return x.minTick + Tick(pos)
}

// Enqueue appends slot to the tail of the level at pos.
func (x *PriceLevelIndex) Enqueue(side Side, pos int, slot uint32) {
	bs := &x.sides[side]
	lv := &bs.levels[pos]
	o := x.store.at(slot)

	o.prev = lv.tail
	o.next = nilSlot
	if lv.tail == nilSlot {
		lv.head = slot
	} else {
		x.store.at(lv.tail).next = slot
	}
	lv.tail = slot
	lv.count++
	lv.volume += o.Remaining

	if lv.count == 1 {
		bs.occupied.set(pos)
	}
	if bs.best < 0 || better(side, pos, bs.best) {
		bs.best = pos
	}
}

// PeekFront returns the oldest order at pos without removing it.
func (x *PriceLevelIndex) PeekFront(side Side, pos int) (uint32, bool) {
	lv := &x.sides[side].levels[pos]
	if lv.count == 0 {
		return nilSlot, false
	}
	return lv.head, true
}

// DequeueFront pops the oldest order at pos.
func (x *PriceLevelIndex) DequeueFront(side Side, pos int) (uint32, bool) {
	slot, ok := x.PeekFront(side, pos)
	if !ok {
		return nilSlot, false
	}
	x.unlink(side, pos, slot)
	return slot, true
}

// Remove unlinks slot from anywhere in the queue at pos.
func (x *PriceLevelIndex) Remove(side Side, pos int, slot uint32) {
	x.unlink(side, pos, slot)
}

// Best returns the position of the best occupied level on side.
func (x *PriceLevelIndex) Best(side Side) (int, bool) {
	best := x.sides[side].best
	return best, best >= 0
}

// Volume is the aggregate remaining quantity resting at pos.
func (x *PriceLevelIndex) Volume(side Side, pos int) int64 {
	return x.sides[side].levels[pos].volume
}

// Count is the number of orders resting at pos.
func (x *PriceLevelIndex) Count(side Side, pos int) int {
	return x.sides[side].levels[pos].count
}

// Next returns the next occupied position after pos, moving away from the
// spread, or -1.
func (x *PriceLevelIndex) Next(side Side, pos int) int {
	if side == Buy {
		return x.sides[side].occupied.prevSet(pos - 1)
	}
	return x.sides[side].occupied.nextSet(pos + 1)
}

// reduce accounts for a partial execution against an order at pos.
func (x *PriceLevelIndex) reduce(side Side, pos int, qty int64) {
	x.sides[side].levels[pos].volume -= qty
}

func (x *PriceLevelIndex) unlink(side Side, pos int, slot uint32) {
	bs := &x.sides[side]
	lv := &bs.levels[pos]
	o := x.store.at(slot)

	if o.prev == nilSlot {
		lv.head = o.next
	} else {
		x.store.at(o.prev).next = o.next
	}
	if o.next == nilSlot {
		lv.tail = o.prev
	} else {
		x.store.at(o.next).prev = o.prev
	}
	o.prev = nilSlot
	o.next = nilSlot

	lv.count--
	lv.volume -= o.Remaining

	if lv.count > 0 {
		return
	}
	bs.occupied.clear(pos)
	if bs.best == pos {
		bs.best = x.Next(side, pos)
	}
}

// better reports whether position a is a more aggressive price than b.
func better(side Side, a, b int) bool {
	if side == Buy {
		return a > b
	}
	return a < b
}
