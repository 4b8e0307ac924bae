package service

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tickbook/domain/manager"
	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
)

type memorySink struct {
	reports []outbox.Report
	err     error
}

func (s *memorySink) Append(r []outbox.Report) error {
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r...)
	return nil
}

func newTestService(t testing.TB, sink ReportSink) (*OrderService, *metrics.Metrics) {
	t.Helper()
	books, err := manager.New([]manager.BookConfig{
		{Symbol: symbol.AAPL, MinTick: 100, MaxTick: 110},
		{Symbol: symbol.INTC, MinTick: 100, MaxTick: 110},
	})
	require.NoError(t, err)
	m := metrics.New()
	return NewOrderService(books, sink, m, zap.NewNop()), m
}

func TestPlaceOrderEmitsReports(t *testing.T) {
	sink := &memorySink{}
	svc, m := newTestService(t, sink)

	s1, err := svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 105, 5)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 105, 3)
	require.NoError(t, err)

	res, err := svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 106, 6)
	require.NoError(t, err)
	require.Len(t, res.Fills, 2)

	require.Len(t, sink.reports, 2)
	first, second := sink.reports[0], sink.reports[1]
	assert.Equal(t, s1.Resting, first.Maker)
	assert.Equal(t, int64(5), first.Quantity)
	assert.True(t, first.MakerDone)
	assert.Equal(t, orderbook.Buy, first.TakerSide)
	assert.Equal(t, res.Seq, first.TakerSeq)
	assert.Equal(t, int64(1), second.Quantity)
	assert.Less(t, first.ID, second.ID)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fills.WithLabelValues("AAPL")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.FilledVolume.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("AAPL", metrics.OutcomeFilled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Orders.WithLabelValues("AAPL", metrics.OutcomeRested)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestingOrders.WithLabelValues("AAPL")))
}

func TestPlaceOrderRejects(t *testing.T) {
	sink := &memorySink{}
	svc, m := newTestService(t, sink)

	_, err := svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 99, 1)
	assert.True(t, errors.Is(err, orderbook.ErrInvalidPrice))

	_, err = svc.PlaceOrder(symbol.TSLA, orderbook.Buy, 100, 1)
	assert.True(t, errors.Is(err, symbol.ErrUnknownSymbol))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("AAPL", metrics.OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("TSLA", metrics.OutcomeRejected)))
	assert.Empty(t, sink.reports)
}

func TestCancelAndReplace(t *testing.T) {
	svc, m := newTestService(t, nil)

	res, err := svc.PlaceOrder(symbol.INTC, orderbook.Buy, 102, 4)
	require.NoError(t, err)

	repl, err := svc.ReplaceOrder(symbol.INTC, res.Resting, 103, 2)
	require.NoError(t, err)
	require.True(t, repl.Rested())

	top, err := svc.TopOfBook(symbol.INTC)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Tick(103), top.BidPrice)
	assert.Equal(t, int64(2), top.BidVolume)

	_, err = svc.ReplaceOrder(symbol.INTC, res.Resting, 103, 2)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	o, err := svc.CancelOrder(symbol.INTC, repl.Resting)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.Remaining)

	_, err = svc.CancelOrder(symbol.INTC, repl.Resting)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancels.WithLabelValues("INTC", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancels.WithLabelValues("INTC", metrics.OutcomeNotFound)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RestingOrders.WithLabelValues("INTC")))
}

func TestSinkFailureDoesNotFailOrder(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	svc, _ := newTestService(t, sink)

	_, err := svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 104, 1)
	require.NoError(t, err)
	res, err := svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 104, 1)
	require.NoError(t, err)
	assert.Len(t, res.Fills, 1)
}

func TestServiceWithOutbox(t *testing.T) {
	ob, err := outbox.Open(outbox.Config{Dir: "outbox", InMemory: true})
	require.NoError(t, err)
	defer ob.Close()

	svc, _ := newTestService(t, ob)
	_, err = svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 101, 2)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 101, 2)
	require.NoError(t, err)

	var got []outbox.Report
	require.NoError(t, ob.ScanByState(outbox.StateNew, 0, func(_ uint64, rec outbox.Record) error {
		r, err := ob.Report(rec)
		got = append(got, r)
		return err
	}))
	require.Len(t, got, 1)
	assert.Equal(t, symbol.AAPL, got[0].Symbol)
	assert.Equal(t, orderbook.Tick(101), got[0].Price)
}

func BenchmarkPlaceOrder_Core(b *testing.B) {
	svc, _ := newTestService(b, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 105, 1)
		svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 105, 1)
	}
}

func TestCrossingReplaceReportsOriginalSide(t *testing.T) {
	sink := &memorySink{}
	svc, m := newTestService(t, sink)

	_, err := svc.PlaceOrder(symbol.AAPL, orderbook.Buy, 103, 2)
	require.NoError(t, err)
	ask, err := svc.PlaceOrder(symbol.AAPL, orderbook.Sell, 108, 2)
	require.NoError(t, err)

	res, err := svc.ReplaceOrder(symbol.AAPL, ask.Resting, 103, 2)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.False(t, res.Rested())

	require.Len(t, sink.reports, 1)
	assert.Equal(t, orderbook.Sell, sink.reports[0].TakerSide)
	assert.Equal(t, orderbook.Tick(103), sink.reports[0].Price)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RestingOrders.WithLabelValues("AAPL")))

	_, err = svc.ReplaceOrder(symbol.AAPL, ask.Resting, 104, 1)
	assert.True(t, errors.Is(err, orderbook.ErrOrderNotFound))
}
