// Package sequence issues strictly increasing sequence numbers.
package sequence

import "sync/atomic"

// Sequencer hands out monotonic ids. Zero is never issued, so callers can
// use it as "unset".
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id, or the start value if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
