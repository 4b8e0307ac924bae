// Package shard provides a fixed-key table of independently locked
// values. The key set is bound at construction and never changes, so
// lookups need no table-wide lock.
package shard

import (
	"sync"

	"github.com/cockroachdb/errors"
)

var ErrKeyOutOfRange = errors.New("shard key out of range")

const cacheLine = 64

// entry is padded so neighbouring shards' lock words do not share a
// cache line.
type entry[V any] struct {
	mu    sync.RWMutex
	val   V
	bound bool
	_pad  [cacheLine]byte
}

// Table holds at most one value per key in [0, size).
type Table[V any] struct {
	entries []entry[V]
	keys    []int
}

// New builds a table of size slots and binds every entry of values.
func New[V any](size int, values map[int]V) (*Table[V], error) {
	if size <= 0 {
		return nil, errors.Newf("shard table size %d must be positive", size)
	}
	t := &Table[V]{entries: make([]entry[V], size)}
	for k := 0; k < size; k++ {
		v, ok := values[k]
		if !ok {
			continue
		}
		t.entries[k].val = v
		t.entries[k].bound = true
		t.keys = append(t.keys, k)
	}
	if len(t.keys) != len(values) {
		for k := range values {
			if k < 0 || k >= size {
				return nil, errors.Wrapf(ErrKeyOutOfRange, "key %d, size %d", k, size)
			}
		}
	}
	return t, nil
}

// Lock takes the exclusive lock on key and returns its value. ok is false,
// and nothing is locked, when key is unbound.
func (t *Table[V]) Lock(key int) (v V, ok bool) {
	e := t.entry(key)
	if e == nil {
		return v, false
	}
	e.mu.Lock()
	return e.val, true
}

func (t *Table[V]) Unlock(key int) {
	t.entries[key].mu.Unlock()
}

// RLock takes the shared lock on key for read-only access.
func (t *Table[V]) RLock(key int) (v V, ok bool) {
	e := t.entry(key)
	if e == nil {
		return v, false
	}
	e.mu.RLock()
	return e.val, true
}

func (t *Table[V]) RUnlock(key int) {
	t.entries[key].mu.RUnlock()
}

// Keys returns the bound keys in ascending order.
func (t *Table[V]) Keys() []int {
	out := make([]int, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len is the number of bound keys.
func (t *Table[V]) Len() int {
	return len(t.keys)
}

func (t *Table[V]) entry(key int) *entry[V] {
	if key < 0 || key >= len(t.entries) {
		return nil
	}
	e := &t.entries[key]
	if !e.bound {
		return nil
	}
	return e
}
