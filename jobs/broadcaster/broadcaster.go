// Package broadcaster drains the execution report outbox to a message
// broker.
package broadcaster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
)

// MaxRetries is how many failed sends a report gets before it is parked
// as FAILED.
const MaxRetries = 10

type Config struct {
	Interval time.Duration
	Batch    int
}

type Broadcaster struct {
	outbox  *outbox.Outbox
	pub     Publisher
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(ob *outbox.Outbox, pub Publisher, cfg Config, log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox:  ob,
		pub:     pub,
		cfg:     cfg,
		log:     log.Named("broadcaster"),
		metrics: m,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains the outbox every interval until ctx is done. Reports left
// SENT by an earlier process are requeued first, so delivery is at least
// once.
func (b *Broadcaster) Run(ctx context.Context) error {
	n, err := b.outbox.Requeue(outbox.StateSent)
	if err != nil {
		return err
	}
	if n > 0 {
		b.log.Info("requeued interrupted reports", zap.Int("count", n))
	}
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return nil
		case <-ticker.C:
			if _, err := b.DrainOnce(ctx); err != nil {
				b.log.Error("drain failed", zap.Error(err))
			}
		}
	}
}

// ------------------------------------------------
// DRAIN
// ------------------------------------------------

type pending struct {
	id  uint64
	rec outbox.Record
}

// DrainOnce publishes up to one batch of NEW reports and returns how many
// were acknowledged. A failed send puts the report back to NEW.
func (b *Broadcaster) DrainOnce(ctx context.Context) (int, error) {
	var batch []pending
	err := b.outbox.ScanByState(outbox.StateNew, b.cfg.Batch, func(id uint64, rec outbox.Record) error {
		batch = append(batch, pending{id: id, rec: rec})
		return nil
	})
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, p := range batch {
		if ctx.Err() != nil {
			break
		}
		ok, err := b.send(ctx, p)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}

	if acked > 0 {
		if _, err := b.outbox.PurgeAcked(); err != nil {
			return acked, err
		}
	}
	return acked, nil
}

func (b *Broadcaster) send(ctx context.Context, p pending) (bool, error) {
	retries := p.rec.Retries + 1
	if err := b.outbox.MarkSent(p.id, retries); err != nil {
		return false, err
	}

	key := b.key(p.rec)
	if err := b.pub.Publish(ctx, key, p.rec.Payload); err != nil {
		b.metrics.Published.WithLabelValues("error").Inc()
		state := outbox.StateNew
		if retries >= MaxRetries {
			state = outbox.StateFailed
		}
		b.log.Warn("publish failed",
			zap.Uint64("report", p.id),
			zap.Uint32("retries", retries),
			zap.Stringer("next_state", state),
			zap.Error(err),
		)
		return false, b.outbox.UpdateState(p.id, state, retries)
	}

	b.metrics.Published.WithLabelValues("ok").Inc()
	return true, b.outbox.MarkAcked(p.id, retries)
}

// key partitions by symbol so one symbol's reports stay ordered.
func (b *Broadcaster) key(rec outbox.Record) []byte {
	r, err := b.outbox.Report(rec)
	if err != nil {
		return nil
	}
	return []byte(r.Symbol.String())
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
