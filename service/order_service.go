package service

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tickbook/domain/manager"
	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
	"tickbook/infra/sequence"
)

// ReportSink receives the execution reports of every command that
// traded. *outbox.Outbox satisfies it.
type ReportSink interface {
	Append(reports []outbox.Report) error
}

/*
OrderService is the ONLY write entry point into the system.

All coordination between:
- domain (manager, orderbook)
- infra (outbox, metrics)
happens here.
*/
type OrderService struct {
	books   *manager.Manager
	sink    ReportSink
	reports *sequence.Sequencer
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewOrderService wires all dependencies. sink may be nil, in which case
// fills are only returned to the caller.
func NewOrderService(books *manager.Manager, sink ReportSink, m *metrics.Metrics, log *zap.Logger) *OrderService {
	return &OrderService{
		books:   books,
		sink:    sink,
		reports: sequence.New(uint64(time.Now().UnixNano())),
		metrics: m,
		log:     log.Named("service"),
		now:     time.Now,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceOrder submits a limit order.
func (s *OrderService) PlaceOrder(sym symbol.Symbol, side orderbook.Side, price orderbook.Tick, qty int64) (orderbook.Result, error) {
	start := s.now()
	res, err := s.books.AddOrder(sym, side, price, qty)
	s.metrics.ObserveLatency(sym.String(), "add", start)
	if err != nil {
		s.reject(sym, "add", err)
		return res, err
	}

	s.metrics.Orders.WithLabelValues(sym.String(), outcome(qty, res)).Inc()
	s.afterTrade(sym, side, res, start)
	return res, nil
}

// CancelOrder removes a resting order and returns its final state.
func (s *OrderService) CancelOrder(sym symbol.Symbol, h orderbook.Handle) (orderbook.Order, error) {
	start := s.now()
	o, err := s.books.CancelOrder(sym, h)
	s.metrics.ObserveLatency(sym.String(), "cancel", start)
	if err != nil {
		if errors.Is(err, orderbook.ErrOrderNotFound) {
			s.metrics.Cancels.WithLabelValues(sym.String(), metrics.OutcomeNotFound).Inc()
		}
		s.log.Debug("cancel rejected", zap.Stringer("symbol", sym), zap.Uint64("handle", uint64(h)), zap.Error(err))
		return o, err
	}
	s.metrics.Cancels.WithLabelValues(sym.String(), metrics.OutcomeOK).Inc()
	s.metrics.RestingOrders.WithLabelValues(sym.String()).Dec()
	return o, nil
}

// ReplaceOrder swaps a resting order for a new one on the same side.
func (s *OrderService) ReplaceOrder(sym symbol.Symbol, h orderbook.Handle, price orderbook.Tick, qty int64) (orderbook.Result, error) {
	start := s.now()
	res, old, err := s.books.ReplaceOrder(sym, h, price, qty)
	s.metrics.ObserveLatency(sym.String(), "replace", start)
	if err != nil {
		s.reject(sym, "replace", err)
		return res, err
	}

	s.metrics.RestingOrders.WithLabelValues(sym.String()).Dec()
	s.metrics.Orders.WithLabelValues(sym.String(), outcome(qty, res)).Inc()
	s.afterTrade(sym, old.Side, res, start)
	return res, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) TopOfBook(sym symbol.Symbol) (orderbook.Top, error) {
	return s.books.TopOfBook(sym)
}

func (s *OrderService) Depth(sym symbol.Symbol, side orderbook.Side, levels int) ([]orderbook.Level, error) {
	return s.books.Depth(sym, side, levels)
}

func (s *OrderService) Order(sym symbol.Symbol, h orderbook.Handle) (orderbook.Order, error) {
	return s.books.Order(sym, h)
}

func (s *OrderService) Symbols() []symbol.Symbol {
	return s.books.Symbols()
}

// Resting is the number of orders resting in sym's book.
func (s *OrderService) Resting(sym symbol.Symbol) (int, error) {
	return s.books.Len(sym)
}

func (s *OrderService) BookConfig(sym symbol.Symbol) (manager.BookConfig, error) {
	return s.books.Config(sym)
}

//
// ──────────────────────────────────────────────────────────
// Reports
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) afterTrade(sym symbol.Symbol, side orderbook.Side, res orderbook.Result, at time.Time) {
	label := sym.String()
	if res.Rested() {
		s.metrics.RestingOrders.WithLabelValues(label).Inc()
	}
	if len(res.Fills) == 0 {
		return
	}

	reports := make([]outbox.Report, 0, len(res.Fills))
	for _, f := range res.Fills {
		s.metrics.Fills.WithLabelValues(label).Inc()
		s.metrics.FilledVolume.WithLabelValues(label).Add(float64(f.Quantity))
		if f.MakerDone {
			s.metrics.RestingOrders.WithLabelValues(label).Dec()
		}
		reports = append(reports, outbox.Report{
			ID:        s.reports.Next(),
			Symbol:    sym,
			TakerSeq:  res.Seq,
			TakerSide: side,
			MakerSeq:  f.MakerSeq,
			Maker:     f.Maker,
			Price:     f.Price,
			Quantity:  f.Quantity,
			MakerDone: f.MakerDone,
			Timestamp: at.UnixNano(),
		})
	}

	if s.sink == nil {
		return
	}
	// The book has already traded; a sink failure loses delivery, not
	// the execution.
	if err := s.sink.Append(reports); err != nil {
		s.log.Error("execution reports not stored",
			zap.Stringer("symbol", sym),
			zap.Uint64("taker_seq", res.Seq),
			zap.Int("fills", len(reports)),
			zap.Error(err),
		)
	}
}

func (s *OrderService) reject(sym symbol.Symbol, op string, err error) {
	label := sym.String()
	if !sym.Valid() {
		label = "UNKNOWN"
	}
	s.metrics.Orders.WithLabelValues(label, metrics.OutcomeRejected).Inc()
	s.log.Debug("order rejected", zap.Stringer("symbol", sym), zap.String("op", op), zap.Error(err))
}

func outcome(qty int64, res orderbook.Result) string {
	switch {
	case res.Filled == qty:
		return metrics.OutcomeFilled
	case res.Filled > 0:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeRested
	}
}
