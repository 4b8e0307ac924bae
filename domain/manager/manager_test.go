package manager

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

func newTestManager(t testing.TB, syms ...symbol.Symbol) *Manager {
	t.Helper()
	cfgs := make([]BookConfig, 0, len(syms))
	for _, s := range syms {
		cfgs = append(cfgs, BookConfig{Symbol: s, MinTick: 100, MaxTick: 110, Capacity: 128})
	}
	m, err := New(cfgs)
	require.NoError(t, err)
	return m
}

func TestManagerRoutesBySymbol(t *testing.T) {
	m := newTestManager(t, symbol.AAPL, symbol.MSFT)

	_, err := m.AddOrder(symbol.AAPL, orderbook.Sell, 105, 5)
	require.NoError(t, err)

	res, err := m.AddOrder(symbol.MSFT, orderbook.Buy, 106, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Fills, "orders on different symbols never trade")
	assert.True(t, res.Rested())

	aapl, err := m.TopOfBook(symbol.AAPL)
	require.NoError(t, err)
	assert.True(t, aapl.HasAsk)
	assert.False(t, aapl.HasBid)

	msft, err := m.TopOfBook(symbol.MSFT)
	require.NoError(t, err)
	assert.True(t, msft.HasBid)
	assert.Equal(t, orderbook.Tick(106), msft.BidPrice)
}

func TestManagerUnknownSymbol(t *testing.T) {
	m := newTestManager(t, symbol.AAPL)

	_, err := m.AddOrder(symbol.TSLA, orderbook.Buy, 100, 1)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	_, err = m.AddOrder(symbol.Symbol(200), orderbook.Buy, 100, 1)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	_, err = m.CancelOrder(symbol.TSLA, 1)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	_, err = m.TopOfBook(symbol.NFLX)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	_, err = m.Depth(symbol.NFLX, orderbook.Buy, 5)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	assert.Equal(t, []symbol.Symbol{symbol.AAPL}, m.Symbols(), "lookups never create books")
}

func TestManagerCancelAndReplace(t *testing.T) {
	m := newTestManager(t, symbol.AMD)

	res, err := m.AddOrder(symbol.AMD, orderbook.Buy, 103, 10)
	require.NoError(t, err)

	repl, old, err := m.ReplaceOrder(symbol.AMD, res.Resting, 104, 8)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Buy, old.Side)
	assert.Equal(t, orderbook.Tick(103), old.Price)

	o, err := m.Order(symbol.AMD, repl.Resting)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Tick(104), o.Price)
	assert.Equal(t, symbol.AMD, o.Symbol)

	_, err = m.Order(symbol.AMD, res.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	cancelled, err := m.CancelOrder(symbol.AMD, repl.Resting)
	require.NoError(t, err)
	assert.Equal(t, int64(8), cancelled.Remaining)

	_, err = m.CancelOrder(symbol.AMD, repl.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	n, err := m.Len(symbol.AMD)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManagerHandleFromOtherSymbol(t *testing.T) {
	m := newTestManager(t, symbol.AAPL, symbol.GOOGL)

	aapl, err := m.AddOrder(symbol.AAPL, orderbook.Buy, 101, 1)
	require.NoError(t, err)
	googl, err := m.AddOrder(symbol.GOOGL, orderbook.Sell, 109, 5)
	require.NoError(t, err)
	require.Equal(t, aapl.Resting.Slot(), googl.Resting.Slot(), "both books use their first slot")

	_, err = m.CancelOrder(symbol.GOOGL, aapl.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	_, _, err = m.ReplaceOrder(symbol.GOOGL, aapl.Resting, 108, 1)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	_, err = m.Order(symbol.GOOGL, aapl.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	_, err = m.CancelOrder(symbol.AAPL, googl.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	n, err := m.Len(symbol.GOOGL)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the GOOGL order is untouched")

	o, err := m.Order(symbol.GOOGL, googl.Resting)
	require.NoError(t, err)
	assert.Equal(t, int64(5), o.Remaining)

	top, err := m.TopOfBook(symbol.AAPL)
	require.NoError(t, err)
	assert.True(t, top.HasBid)
}

func TestNewRejectsBadConfigs(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, orderbook.ErrInvalidConfig))

	_, err = New([]BookConfig{
		{Symbol: symbol.AAPL, MinTick: 1, MaxTick: 2},
		{Symbol: symbol.AAPL, MinTick: 1, MaxTick: 2},
	})
	assert.True(t, errors.Is(err, orderbook.ErrInvalidConfig))

	_, err = New([]BookConfig{{Symbol: symbol.Count, MinTick: 1, MaxTick: 2}})
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	_, err = New([]BookConfig{{Symbol: symbol.META, MinTick: 5, MaxTick: 1}})
	assert.True(t, errors.Is(err, orderbook.ErrInvalidConfig))
}

// Each goroutine owns one symbol and crosses its own orders. Any fill
// leaking across books would break the per-symbol volume totals.
func TestManagerConcurrentIsolation(t *testing.T) {
	syms := symbol.All()
	m := newTestManager(t, syms...)

	const rounds = 500
	var wg sync.WaitGroup
	filled := make([]int64, len(syms))
	errs := make(chan error, len(syms))

	for i, sym := range syms {
		wg.Add(1)
		go func(i int, sym symbol.Symbol) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if _, err := m.AddOrder(sym, orderbook.Sell, 105, 2); err != nil {
					errs <- err
					return
				}
				res, err := m.AddOrder(sym, orderbook.Buy, 105, 2)
				if err != nil {
					errs <- err
					return
				}
				for _, f := range res.Fills {
					filled[i] += f.Quantity
				}
			}
		}(i, sym)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for i, sym := range syms {
		assert.Equal(t, int64(2*rounds), filled[i], "%s", sym)
		n, err := m.Len(sym)
		require.NoError(t, err)
		assert.Zero(t, n, "%s", sym)
	}
}

func BenchmarkManagerParallel(b *testing.B) {
	m := newTestManager(b, symbol.All()...)
	syms := m.Symbols()
	var next uint32
	var mu sync.Mutex

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		mu.Lock()
		sym := syms[int(next)%len(syms)]
		next++
		mu.Unlock()

		for pb.Next() {
			m.AddOrder(sym, orderbook.Sell, 105, 1)
			m.AddOrder(sym, orderbook.Buy, 105, 1)
		}
	})
}
