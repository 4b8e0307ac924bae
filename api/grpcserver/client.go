package grpcserver

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

// Client calls tickbook.v1.OrderService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, sym symbol.Symbol, side orderbook.Side, price orderbook.Tick, qty int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlaceOrder", &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":   structpb.NewStringValue(sym.String()),
		"side":     structpb.NewStringValue(side.String()),
		"price":    num(int64(price)),
		"quantity": num(qty),
	}}, opts...)
}

func (c *Client) CancelOrder(ctx context.Context, sym symbol.Symbol, h orderbook.Handle, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CancelOrder", &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(sym.String()),
		"handle": u64(uint64(h)),
	}}, opts...)
}

func (c *Client) ReplaceOrder(ctx context.Context, sym symbol.Symbol, h orderbook.Handle, price orderbook.Tick, qty int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ReplaceOrder", &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":   structpb.NewStringValue(sym.String()),
		"handle":   u64(uint64(h)),
		"price":    num(int64(price)),
		"quantity": num(qty),
	}}, opts...)
}

func (c *Client) TopOfBook(ctx context.Context, sym symbol.Symbol, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TopOfBook", &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(sym.String()),
	}}, opts...)
}

// HandleOf extracts the resting handle from a PlaceOrder or ReplaceOrder
// response. ok is false when nothing rested.
func HandleOf(resp *structpb.Struct) (orderbook.Handle, bool) {
	v, ok := resp.GetFields()["handle"]
	if !ok {
		return orderbook.NoHandle, false
	}
	n, err := strconv.ParseUint(v.GetStringValue(), 10, 64)
	if err != nil {
		return orderbook.NoHandle, false
	}
	return orderbook.Handle(n), true
}
