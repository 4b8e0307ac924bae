package orderbook

import "math/bits"

// bitset marks occupied price levels so a best-price rescan can skip
// 64 empty levels per word.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)>>6)
}

func (b bitset) set(i int) {
	b[i>>6] |= 1 << (uint(i) & 63)
}

func (b bitset) clear(i int) {
	b[i>>6] &^= 1 << (uint(i) & 63)
}

func (b bitset) isSet(i int) bool {
	return b[i>>6]&(1<<(uint(i)&63)) != 0
}

// nextSet returns the lowest set index >= i, or -1.
func (b bitset) nextSet(i int) int {
	if i < 0 {
		i = 0
	}
	w := i >> 6
	if w >= len(b) {
		return -1
	}
	if word := b[w] >> (uint(i) & 63); word != 0 {
		return i + bits.TrailingZeros64(word)
	}
	for w++; w < len(b); w++ {
		if b[w] != 0 {
			return w<<6 + bits.TrailingZeros64(b[w])
		}
	}
	return -1
}

// prevSet returns the highest set index <= i, or -1.
func (b bitset) prevSet(i int) int {
	if i < 0 || len(b) == 0 {
		return -1
	}
	w := i >> 6
	if w >= len(b) {
		w = len(b) - 1
		i = w<<6 + 63
	}
	if word := b[w] << (63 - (uint(i) & 63)); word != 0 {
		return i - bits.LeadingZeros64(word)
	}
	for w--; w >= 0; w-- {
		if b[w] != 0 {
			return w<<6 + 63 - bits.LeadingZeros64(b[w])
		}
	}
	return -1
}
