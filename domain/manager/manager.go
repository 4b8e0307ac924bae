// Package manager routes orders to one order book per symbol. Books are
// created eagerly and each sits behind its own lock, so different
// symbols trade in parallel while one symbol is strictly serialized.
package manager

import (
	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/infra/shard"
)

// BookConfig is the construction-time setup of one symbol's book.
type BookConfig = orderbook.Config

type Manager struct {
	books   *shard.Table[*orderbook.OrderBook]
	symbols []symbol.Symbol
}

func New(configs []BookConfig) (*Manager, error) {
	if len(configs) == 0 {
		return nil, errors.Wrap(orderbook.ErrInvalidConfig, "no symbols configured")
	}

	books := make(map[int]*orderbook.OrderBook, len(configs))
	for _, cfg := range configs {
		if !cfg.Symbol.Valid() {
			return nil, errors.Wrapf(symbol.ErrUnknownSymbol, "discriminant %d", uint8(cfg.Symbol))
		}
		if _, dup := books[int(cfg.Symbol)]; dup {
			return nil, errors.Wrapf(orderbook.ErrInvalidConfig, "%s configured twice", cfg.Symbol)
		}
		book, err := orderbook.New(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "book %s", cfg.Symbol)
		}
		books[int(cfg.Symbol)] = book
	}

	tbl, err := shard.New(int(symbol.Count), books)
	if err != nil {
		return nil, err
	}

	m := &Manager{books: tbl}
	for _, k := range tbl.Keys() {
		m.symbols = append(m.symbols, symbol.Symbol(k))
	}
	return m, nil
}

func (m *Manager) AddOrder(sym symbol.Symbol, side orderbook.Side, price orderbook.Tick, qty int64) (orderbook.Result, error) {
	book, ok := m.books.Lock(int(sym))
	if !ok {
		return orderbook.Result{}, unknown(sym)
	}
	defer m.books.Unlock(int(sym))
	return book.AddOrder(side, price, qty)
}

// CancelOrder removes a resting order and returns its final state.
func (m *Manager) CancelOrder(sym symbol.Symbol, h orderbook.Handle) (orderbook.Order, error) {
	book, ok := m.books.Lock(int(sym))
	if !ok {
		return orderbook.Order{}, unknown(sym)
	}
	defer m.books.Unlock(int(sym))
	return book.CancelOrder(h)
}

// ReplaceOrder swaps h for a new order on the same side and returns the
// replaced order alongside the new result.
func (m *Manager) ReplaceOrder(sym symbol.Symbol, h orderbook.Handle, price orderbook.Tick, qty int64) (orderbook.Result, orderbook.Order, error) {
	book, ok := m.books.Lock(int(sym))
	if !ok {
		return orderbook.Result{}, orderbook.Order{}, unknown(sym)
	}
	defer m.books.Unlock(int(sym))
	return book.ReplaceOrder(h, price, qty)
}

// ---- read-only queries, shared lock ----

func (m *Manager) TopOfBook(sym symbol.Symbol) (orderbook.Top, error) {
	book, ok := m.books.RLock(int(sym))
	if !ok {
		return orderbook.Top{}, unknown(sym)
	}
	defer m.books.RUnlock(int(sym))
	return book.Top(), nil
}

func (m *Manager) Depth(sym symbol.Symbol, side orderbook.Side, levels int) ([]orderbook.Level, error) {
	book, ok := m.books.RLock(int(sym))
	if !ok {
		return nil, unknown(sym)
	}
	defer m.books.RUnlock(int(sym))
	return book.Depth(side, levels), nil
}

func (m *Manager) Order(sym symbol.Symbol, h orderbook.Handle) (orderbook.Order, error) {
	book, ok := m.books.RLock(int(sym))
	if !ok {
		return orderbook.Order{}, unknown(sym)
	}
	defer m.books.RUnlock(int(sym))
	o, found := book.Order(h)
	if !found {
		return orderbook.Order{}, errors.Wrapf(orderbook.ErrOrderNotFound, "%s handle %#x", sym, uint64(h))
	}
	return o, nil
}

// Config returns the tick window of sym's book.
func (m *Manager) Config(sym symbol.Symbol) (BookConfig, error) {
	book, ok := m.books.RLock(int(sym))
	if !ok {
		return BookConfig{}, unknown(sym)
	}
	defer m.books.RUnlock(int(sym))
	return book.Config(), nil
}

// Len is the number of orders resting in sym's book.
func (m *Manager) Len(sym symbol.Symbol) (int, error) {
	book, ok := m.books.RLock(int(sym))
	if !ok {
		return 0, unknown(sym)
	}
	defer m.books.RUnlock(int(sym))
	return book.Len(), nil
}

// Symbols lists the configured symbols in roster order.
func (m *Manager) Symbols() []symbol.Symbol {
	out := make([]symbol.Symbol, len(m.symbols))
	copy(out, m.symbols)
	return out
}

func unknown(sym symbol.Symbol) error {
	return errors.Wrapf(symbol.ErrUnknownSymbol, "%s is not configured", sym)
}
