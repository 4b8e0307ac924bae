package memory

import "sync"

// Pool is a typed object pool.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

// NewPool builds a pool. reset, if non-nil, runs on every object handed
// back through Put.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// Buffer is a growable byte slice meant to be pooled.
type Buffer struct {
	B []byte
}

// maxPooledBuffer keeps one oversized encode from pinning memory.
const maxPooledBuffer = 64 << 10

// NewBufferPool returns a pool of buffers with at least size bytes of
// capacity. Buffers that grew past 64KiB are dropped instead of pooled.
func NewBufferPool(size int) *Pool[Buffer] {
	return NewPool(
		func() *Buffer { return &Buffer{B: make([]byte, 0, size)} },
		func(b *Buffer) {
			if cap(b.B) > maxPooledBuffer {
				b.B = make([]byte, 0, size)
				return
			}
			b.B = b.B[:0]
		},
	)
}
