// Package poller drives the collect, format, write and sleep cycle.
package poller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"ceilometer/collector"
	"ceilometer/format"
	"ceilometer/stats"
)

// Poller owns one collector, one formatter and one output for the lifetime
// of the process. Cycles never overlap.
type Poller struct {
	collector *collector.Collector
	format    format.Func
	out       io.Writer
	log       *zap.Logger
	stats     *stats.Stats
	prefix    string
	interval  time.Duration
}

// Option customises a Poller.
type Option func(*Poller)

// WithPrefix is prepended to every line.
func WithPrefix(prefix string) Option {
	return func(p *Poller) { p.prefix = prefix }
}

// WithInterval sets the sleep between cycles (default 30s).
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithStats records every finished cycle on s.
func WithStats(s *stats.Stats) Option {
	return func(p *Poller) { p.stats = s }
}

// New returns a poller writing readings of c, rendered by f, to out.
func New(c *collector.Collector, f format.Func, out io.Writer, log *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		collector: c,
		format:    f,
		out:       out,
		log:       log,
		interval:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run loops until ctx is cancelled. Cancellation is only observed between
// cycles: a cycle in flight is collected and written in full first, so the
// output never ends in a partial line. Run returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started", zap.Duration("interval", p.interval))
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			p.log.Info("polling stopped")
			return nil
		}

		if _, err := p.Cycle(context.WithoutCancel(ctx)); err != nil {
			p.log.Error("cycle not written", zap.Error(err))
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Cycle collects once and writes every reading, in collection order, with a
// single write. It returns the number of readings written.
func (p *Poller) Cycle(ctx context.Context) (int, error) {
	start := time.Now()
	snap := p.collector.CollectAll(ctx)

	var buf bytes.Buffer
	for _, r := range snap.Readings {
		buf.WriteString(p.format(r, p.prefix))
	}
	if buf.Len() > 0 {
		if _, err := p.out.Write(buf.Bytes()); err != nil {
			return 0, fmt.Errorf("write %d readings: %w", len(snap.Readings), err)
		}
	}

	took := time.Since(start)
	p.stats.CycleDone(len(snap.Readings), took)
	p.log.Debug("cycle complete",
		zap.Time("collected_at", snap.CollectedAt),
		zap.Int("readings", len(snap.Readings)),
		zap.Duration("took", took),
	)
	return len(snap.Readings), nil
}
