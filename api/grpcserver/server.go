package grpcserver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/service"
)

const requestIDHeader = "x-request-id"

// Server adapts OrderService to gRPC.
type Server struct {
	svc *service.OrderService
	log *zap.Logger
}

func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	return &Server{svc: svc, log: log.Named("grpc")}
}

// NewGRPCServer returns a grpc.Server with the order service registered
// and request logging installed.
func NewGRPCServer(svc *service.OrderService, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	s := NewServer(svc, log)
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	g := grpc.NewServer(opts...)
	RegisterOrderServiceServer(g, s)
	return g
}

// -------------------- Commands --------------------

func (s *Server) PlaceOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	sym := req.symbol()
	side := req.side()
	price := req.integer("price")
	qty := req.integer("quantity")
	if req.err != nil {
		return nil, toStatus(req.err)
	}

	res, err := s.svc.PlaceOrder(sym, side, orderbook.Tick(price), qty)
	if err != nil {
		return nil, toStatus(err)
	}
	return resultStruct(requestID(ctx), res), nil
}

func (s *Server) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	sym := req.symbol()
	h := req.handle()
	if req.err != nil {
		return nil, toStatus(req.err)
	}

	o, err := s.svc.CancelOrder(sym, h)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"request_id": structpb.NewStringValue(requestID(ctx)),
		"cancelled":  num(o.Remaining),
		"filled":     num(o.Filled()),
	}}, nil
}

func (s *Server) ReplaceOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	sym := req.symbol()
	h := req.handle()
	price := req.integer("price")
	qty := req.integer("quantity")
	if req.err != nil {
		return nil, toStatus(req.err)
	}

	res, err := s.svc.ReplaceOrder(sym, h, orderbook.Tick(price), qty)
	if err != nil {
		return nil, toStatus(err)
	}
	return resultStruct(requestID(ctx), res), nil
}

// -------------------- Queries --------------------

func (s *Server) TopOfBook(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	sym := req.symbol()
	if req.err != nil {
		return nil, toStatus(req.err)
	}

	top, err := s.svc.TopOfBook(sym)
	if err != nil {
		return nil, toStatus(err)
	}
	return topStruct(requestID(ctx), sym, top), nil
}

// -------------------- Plumbing --------------------

type requestIDKey struct{}

// logUnary tags each call with a request id, taken from the
// x-request-id header when the client sent one.
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDHeader); len(v) > 0 {
			id = v[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	if err := grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id)); err != nil {
		s.log.Debug("request id header not sent",
			zap.String("method", info.FullMethod),
			zap.String("request_id", id),
			zap.Error(err),
		)
	}

	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("request_id", id),
		zap.Duration("took", time.Since(start)),
		zap.Stringer("code", status.Code(err)),
	}
	if err != nil {
		s.log.Info("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("rpc", fields...)
	}
	return resp, err
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, orderbook.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orderbook.ErrInvalidPrice),
		errors.Is(err, orderbook.ErrInvalidQuantity),
		errors.Is(err, orderbook.ErrInvalidSide),
		errors.Is(err, symbol.ErrUnknownSymbol),
		errors.Is(err, errBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
