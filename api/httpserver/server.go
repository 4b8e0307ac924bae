// Package httpserver exposes read-only book queries, health and metrics
// over HTTP.
package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/service"
)

const defaultDepth = 10

type Server struct {
	svc       *service.OrderService
	tickSizes map[symbol.Symbol]decimal.Decimal
	metrics   http.Handler
	log       *zap.Logger
}

// New builds the query API. tickSizes converts ticks to display prices;
// a symbol missing from it is shown in raw ticks.
func New(svc *service.OrderService, tickSizes map[symbol.Symbol]decimal.Decimal, metrics http.Handler, log *zap.Logger) *Server {
	return &Server{
		svc:       svc,
		tickSizes: tickSizes,
		metrics:   metrics,
		log:       log.Named("http"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Hygiene stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1/books", func(r chi.Router) {
		r.Get("/", s.listBooks)
		r.Get("/{symbol}/top", s.top)
		r.Get("/{symbol}/depth", s.depth)
	})
	return r
}

// -------------------- Handlers --------------------

type bookInfo struct {
	Symbol   string `json:"symbol"`
	MinTick  int64  `json:"min_tick"`
	MaxTick  int64  `json:"max_tick"`
	TickSize string `json:"tick_size"`
	Resting  int    `json:"resting"`
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	syms := s.svc.Symbols()
	out := make([]bookInfo, 0, len(syms))
	for _, sym := range syms {
		cfg, err := s.svc.BookConfig(sym)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resting, err := s.svc.Resting(sym)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, bookInfo{
			Symbol:   sym.String(),
			MinTick:  int64(cfg.MinTick),
			MaxTick:  int64(cfg.MaxTick),
			TickSize: s.tickSize(sym).String(),
			Resting:  resting,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type levelView struct {
	Tick   int64  `json:"tick"`
	Price  string `json:"price"`
	Volume int64  `json:"volume"`
	Orders int    `json:"orders,omitempty"`
}

type topView struct {
	Symbol string     `json:"symbol"`
	Bid    *levelView `json:"bid"`
	Ask    *levelView `json:"ask"`
	Spread *string    `json:"spread,omitempty"`
}

func (s *Server) top(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Parse(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := s.svc.TopOfBook(sym)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view := topView{Symbol: sym.String()}
	if top.HasBid {
		view.Bid = s.level(sym, orderbook.Level{Price: top.BidPrice, Volume: top.BidVolume})
	}
	if top.HasAsk {
		view.Ask = s.level(sym, orderbook.Level{Price: top.AskPrice, Volume: top.AskVolume})
	}
	if top.HasBid && top.HasAsk {
		spread := s.price(sym, top.AskPrice-top.BidPrice)
		view.Spread = &spread
	}
	writeJSON(w, r, http.StatusOK, view)
}

type depthView struct {
	Symbol string      `json:"symbol"`
	Side   string      `json:"side"`
	Levels []levelView `json:"levels"`
}

func (s *Server) depth(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Parse(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	var side orderbook.Side
	switch q.Get("side") {
	case "", "buy", "bid":
		side = orderbook.Buy
	case "sell", "ask":
		side = orderbook.Sell
	default:
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "side must be buy or sell")
		return
	}
	n := defaultDepth
	if v := q.Get("levels"); v != "" {
		if n, err = strconv.Atoi(v); err != nil || n < 0 {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "levels must be a non-negative integer")
			return
		}
	}

	levels, err := s.svc.Depth(sym, side, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := depthView{Symbol: sym.String(), Side: side.String(), Levels: make([]levelView, 0, len(levels))}
	for _, l := range levels {
		view.Levels = append(view.Levels, *s.level(sym, l))
	}
	writeJSON(w, r, http.StatusOK, view)
}

// -------------------- Helpers --------------------

func (s *Server) tickSize(sym symbol.Symbol) decimal.Decimal {
	if ts, ok := s.tickSizes[sym]; ok && ts.IsPositive() {
		return ts
	}
	return decimal.NewFromInt(1)
}

func (s *Server) price(sym symbol.Symbol, t orderbook.Tick) string {
	return decimal.NewFromInt(int64(t)).Mul(s.tickSize(sym)).String()
}

func (s *Server) level(sym symbol.Symbol, l orderbook.Level) *levelView {
	return &levelView{
		Tick:   int64(l.Price),
		Price:  s.price(sym, l.Price),
		Volume: l.Volume,
		Orders: l.Orders,
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, symbol.ErrUnknownSymbol):
		writeProblem(w, r, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, orderbook.ErrOrderNotFound):
		writeProblem(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orderbook.ErrInvalidPrice),
		errors.Is(err, orderbook.ErrInvalidQuantity),
		errors.Is(err, orderbook.ErrInvalidSide):
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
