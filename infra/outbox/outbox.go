// Package outbox buffers execution reports in pebble until a publisher
// has delivered them. It is a delivery queue, not a journal: nothing
// reads it back into the order book.
package outbox

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"tickbook/infra/memory"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var ErrNotFound = errors.New("report not found")

// -------------------- Record --------------------

type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
func appendRecord(dst []byte, r Record) []byte {
	dst = append(dst, byte(r.State))
	dst = binary.BigEndian.AppendUint32(dst, r.Retries)
	dst = binary.BigEndian.AppendUint64(dst, uint64(r.LastAttempt))
	return append(dst, r.Payload...)
}

// decodeRecord copies the payload out of b, which pebble may reuse.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeader {
		return Record{}, errors.Newf("outbox record length %d", len(b))
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[recordHeader:]),
	}, nil
}

// -------------------- Outbox --------------------

type Config struct {
	Dir string
	// InMemory keeps everything in a pebble memory filesystem.
	InMemory   bool
	Serializer Serializer
}

type Outbox struct {
	db   *pebble.DB
	ser  Serializer
	bufs *memory.Pool[memory.Buffer]
	now  func() time.Time
}

func Open(cfg Config) (*Outbox, error) {
	opts := &pebble.Options{}
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(cfg.Dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", cfg.Dir)
	}
	ser := cfg.Serializer
	if ser == nil {
		ser = BinarySerializer{}
	}
	return &Outbox{
		db:   db,
		ser:  ser,
		bufs: memory.NewBufferPool(recordHeader + binaryReportSize),
		now:  time.Now,
	}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

func (o *Outbox) Serializer() Serializer {
	return o.ser
}

// Append stores reports as NEW in one synced batch.
func (o *Outbox) Append(reports []Report) error {
	if len(reports) == 0 {
		return nil
	}
	batch := o.db.NewBatch()
	defer batch.Close()

	buf := o.bufs.Get()
	defer o.bufs.Put(buf)

	for _, r := range reports {
		buf.B = buf.B[:0]
		buf.B = appendRecord(buf.B, Record{State: StateNew})
		var err error
		if buf.B, err = o.ser.Encode(buf.B, r); err != nil {
			return errors.Wrapf(err, "encode report %d", r.ID)
		}
		// Set copies key and value into the batch.
		if err := batch.Set(keyFor(r.ID), buf.B, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// Get returns the current record for a report.
func (o *Outbox) Get(id uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, errors.Wrapf(ErrNotFound, "report %d", id)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// Report decodes the payload of a record.
func (o *Outbox) Report(rec Record) (Report, error) {
	return o.ser.Decode(rec.Payload)
}

// UpdateState moves a report to state, keeping its payload.
func (o *Outbox) UpdateState(id uint64, state State, retries uint32) error {
	rec, err := o.Get(id)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = o.now().UnixNano()

	buf := o.bufs.Get()
	defer o.bufs.Put(buf)
	buf.B = appendRecord(buf.B[:0], rec)
	return o.db.Set(keyFor(id), buf.B, pebble.Sync)
}

func (o *Outbox) MarkSent(id uint64, retries uint32) error {
	return o.UpdateState(id, StateSent, retries)
}

func (o *Outbox) MarkAcked(id uint64, retries uint32) error {
	return o.UpdateState(id, StateAcked, retries)
}

// Delete removes a report, normally once ACKED.
func (o *Outbox) Delete(id uint64) error {
	return o.db.Delete(keyFor(id), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanByState calls fn for up to limit records in state, in id order.
// limit <= 0 scans everything.
func (o *Outbox) ScanByState(state State, limit int, fn func(id uint64, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	seen := 0
	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}
		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(id, rec); err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			break
		}
	}
	return iter.Error()
}

// Requeue moves every record in state back to NEW. Run at startup to
// resend reports whose delivery was interrupted.
func (o *Outbox) Requeue(state State) (int, error) {
	var ids []uint64
	var retries []uint32
	err := o.ScanByState(state, 0, func(id uint64, rec Record) error {
		ids = append(ids, id)
		retries = append(retries, rec.Retries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := o.UpdateState(id, StateNew, retries[i]); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// PurgeAcked deletes every ACKED record in one batch.
func (o *Outbox) PurgeAcked() (int, error) {
	batch := o.db.NewBatch()
	defer batch.Close()

	n := 0
	err := o.ScanByState(StateAcked, 0, func(id uint64, _ Record) error {
		n++
		return batch.Delete(keyFor(id), nil)
	})
	if err != nil || n == 0 {
		return 0, err
	}
	return n, batch.Commit(pebble.Sync)
}

// -------------------- Helpers --------------------

const keyPrefix = "report/"

func keyFor(id uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", id))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &id)
	return id, err
}
