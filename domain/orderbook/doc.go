// Package orderbook implements a single-symbol limit order book on a
// fixed tick grid.
//
// Orders live in a slot arena addressed by generation-checked handles.
// Price levels are a dense array indexed by tick, one per side, with
// intrusive FIFO queues threaded through the arena. The book is
// single-writer; callers serialize access (see package manager).
package orderbook
