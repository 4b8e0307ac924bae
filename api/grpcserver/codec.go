package grpcserver

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

var errBadRequest = errors.New("malformed request")

// request reads typed fields out of a Struct and keeps the first error.
type request struct {
	fields map[string]*structpb.Value
	err    error
}

func newRequest(in *structpb.Struct) *request {
	return &request{fields: in.GetFields()}
}

func (r *request) fail(format string, args ...any) {
	if r.err == nil {
		r.err = errors.Wrapf(errBadRequest, format, args...)
	}
}

func (r *request) value(key string) *structpb.Value {
	v, ok := r.fields[key]
	if !ok {
		r.fail("missing field %q", key)
		return nil
	}
	return v
}

func (r *request) symbol() symbol.Symbol {
	v := r.value("symbol")
	if v == nil {
		return 0
	}
	sym, err := symbol.Parse(v.GetStringValue())
	if err != nil && r.err == nil {
		r.err = err
	}
	return sym
}

func (r *request) side() orderbook.Side {
	v := r.value("side")
	if v == nil {
		return 0
	}
	switch v.GetStringValue() {
	case "buy", "BUY":
		return orderbook.Buy
	case "sell", "SELL":
		return orderbook.Sell
	}
	r.fail("side %q", v.GetStringValue())
	return 0
}

// integer accepts a whole JSON number or a decimal string.
func (r *request) integer(key string) int64 {
	v := r.value(key)
	if v == nil {
		return 0
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			r.fail("%s %v is not an integer", key, f)
			return 0
		}
		return int64(f)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			r.fail("%s %q", key, k.StringValue)
		}
		return n
	}
	r.fail("%s has wrong type", key)
	return 0
}

// handle is carried as a decimal string; it does not fit a double.
func (r *request) handle() orderbook.Handle {
	v := r.value("handle")
	if v == nil {
		return orderbook.NoHandle
	}
	n, err := strconv.ParseUint(v.GetStringValue(), 10, 64)
	if err != nil {
		r.fail("handle %q", v.GetStringValue())
	}
	return orderbook.Handle(n)
}

func u64(v uint64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(v, 10))
}

func num(v int64) *structpb.Value {
	return structpb.NewNumberValue(float64(v))
}

func resultStruct(requestID string, res orderbook.Result) *structpb.Struct {
	fills := make([]*structpb.Value, 0, len(res.Fills))
	for _, f := range res.Fills {
		fills = append(fills, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"maker":      u64(uint64(f.Maker)),
			"maker_seq":  u64(f.MakerSeq),
			"price":      num(int64(f.Price)),
			"quantity":   num(f.Quantity),
			"maker_done": structpb.NewBoolValue(f.MakerDone),
		}}))
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"request_id": structpb.NewStringValue(requestID),
		"seq":        u64(res.Seq),
		"filled":     num(res.Filled),
		"fills":      structpb.NewListValue(&structpb.ListValue{Values: fills}),
		"resting":    structpb.NewBoolValue(res.Rested()),
	}}
	if res.Rested() {
		out.Fields["handle"] = u64(uint64(res.Resting))
	}
	return out
}

func topStruct(requestID string, sym symbol.Symbol, top orderbook.Top) *structpb.Struct {
	level := func(ok bool, price orderbook.Tick, vol int64) *structpb.Value {
		if !ok {
			return structpb.NewNullValue()
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"price":  num(int64(price)),
			"volume": num(vol),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"request_id": structpb.NewStringValue(requestID),
		"symbol":     structpb.NewStringValue(sym.String()),
		"bid":        level(top.HasBid, top.BidPrice, top.BidVolume),
		"ask":        level(top.HasAsk, top.AskPrice, top.AskVolume),
	}}
}
