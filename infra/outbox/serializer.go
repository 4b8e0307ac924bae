package outbox

import (
	"encoding/binary"
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
)

// Serializer turns a report into the bytes stored and published.
type Serializer interface {
	// Encode appends the encoding of r to dst.
	Encode(dst []byte, r Report) ([]byte, error)
	Decode(b []byte) (Report, error)
	Name() string
}

var ErrCorruptPayload = errors.New("corrupt report payload")

// NewSerializer picks an encoding by name: binary or proto.
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "binary", "":
		return BinarySerializer{}, nil
	case "proto":
		return ProtoSerializer{}, nil
	default:
		return nil, errors.Newf("unknown report encoding %q", name)
	}
}

// ---------- Binary ----------

// BinarySerializer writes a fixed big-endian layout:
// [id:8][symbol:1][takerSeq:8][side:1][makerSeq:8][maker:8][price:8][qty:8][done:1][ts:8]
type BinarySerializer struct{}

const binaryReportSize = 8 + 1 + 8 + 1 + 8 + 8 + 8 + 8 + 1 + 8

func (BinarySerializer) Name() string { return "binary" }

func (BinarySerializer) Encode(dst []byte, r Report) ([]byte, error) {
	dst = binary.BigEndian.AppendUint64(dst, r.ID)
	dst = append(dst, byte(r.Symbol))
	dst = binary.BigEndian.AppendUint64(dst, r.TakerSeq)
	dst = append(dst, byte(r.TakerSide))
	dst = binary.BigEndian.AppendUint64(dst, r.MakerSeq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(r.Maker))
	dst = binary.BigEndian.AppendUint64(dst, uint64(r.Price))
	dst = binary.BigEndian.AppendUint64(dst, uint64(r.Quantity))
	var done byte
	if r.MakerDone {
		done = 1
	}
	dst = append(dst, done)
	dst = binary.BigEndian.AppendUint64(dst, uint64(r.Timestamp))
	return dst, nil
}

func (BinarySerializer) Decode(b []byte) (Report, error) {
	if len(b) != binaryReportSize {
		return Report{}, errors.Wrapf(ErrCorruptPayload, "length %d, want %d", len(b), binaryReportSize)
	}
	var r Report
	r.ID = binary.BigEndian.Uint64(b[0:8])
	r.Symbol = symbol.Symbol(b[8])
	r.TakerSeq = binary.BigEndian.Uint64(b[9:17])
	r.TakerSide = orderbook.Side(b[17])
	r.MakerSeq = binary.BigEndian.Uint64(b[18:26])
	r.Maker = orderbook.Handle(binary.BigEndian.Uint64(b[26:34]))
	r.Price = orderbook.Tick(binary.BigEndian.Uint64(b[34:42]))
	r.Quantity = int64(binary.BigEndian.Uint64(b[42:50]))
	r.MakerDone = b[50] == 1
	r.Timestamp = int64(binary.BigEndian.Uint64(b[51:59]))
	if !r.Symbol.Valid() || !r.TakerSide.Valid() {
		return Report{}, errors.Wrapf(ErrCorruptPayload, "symbol %d side %d", b[8], b[17])
	}
	return r, nil
}

// ---------- Protobuf ----------

// ProtoSerializer encodes reports as a google.protobuf.Struct so
// consumers can read them without generated code. 64-bit integers travel
// as decimal strings since Struct numbers are doubles.
type ProtoSerializer struct{}

func (ProtoSerializer) Name() string { return "proto" }

func (ProtoSerializer) Encode(dst []byte, r Report) ([]byte, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         u64(r.ID),
		"symbol":     structpb.NewStringValue(r.Symbol.String()),
		"taker_seq":  u64(r.TakerSeq),
		"taker_side": structpb.NewStringValue(r.TakerSide.String()),
		"maker_seq":  u64(r.MakerSeq),
		"maker":      u64(uint64(r.Maker)),
		"price":      i64(int64(r.Price)),
		"quantity":   i64(r.Quantity),
		"maker_done": structpb.NewBoolValue(r.MakerDone),
		"ts":         i64(r.Timestamp),
	}}
	return proto.MarshalOptions{Deterministic: true}.MarshalAppend(dst, msg)
}

func (ProtoSerializer) Decode(b []byte) (Report, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(b, &msg); err != nil {
		return Report{}, errors.Wrap(ErrCorruptPayload, err.Error())
	}
	f := fields{m: msg.GetFields()}

	sym, err := symbol.Parse(f.str("symbol"))
	if err != nil {
		f.fail(err)
	}
	side := orderbook.Buy
	switch f.str("taker_side") {
	case "buy":
	case "sell":
		side = orderbook.Sell
	default:
		f.fail(errors.New("taker_side"))
	}

	r := Report{
		ID:        f.u64("id"),
		Symbol:    sym,
		TakerSeq:  f.u64("taker_seq"),
		TakerSide: side,
		MakerSeq:  f.u64("maker_seq"),
		Maker:     orderbook.Handle(f.u64("maker")),
		Price:     orderbook.Tick(f.i64("price")),
		Quantity:  f.i64("quantity"),
		MakerDone: msg.GetFields()["maker_done"].GetBoolValue(),
		Timestamp: f.i64("ts"),
	}
	if f.err != nil {
		return Report{}, errors.Wrap(ErrCorruptPayload, f.err.Error())
	}
	return r, nil
}

func u64(v uint64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(v, 10))
}

func i64(v int64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(v, 10))
}

// fields reads string-encoded numbers and keeps the first error.
type fields struct {
	m   map[string]*structpb.Value
	err error
}

func (f *fields) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fields) str(key string) string {
	v, ok := f.m[key]
	if !ok {
		f.fail(errors.Newf("missing %s", key))
		return ""
	}
	return v.GetStringValue()
}

func (f *fields) u64(key string) uint64 {
	n, err := strconv.ParseUint(f.str(key), 10, 64)
	if err != nil {
		f.fail(errors.Wrap(err, key))
	}
	return n
}

func (f *fields) i64(key string) int64 {
	n, err := strconv.ParseInt(f.str(key), 10, 64)
	if err != nil {
		f.fail(errors.Wrap(err, key))
	}
	return n
}
