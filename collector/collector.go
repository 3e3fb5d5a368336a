package collector

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"ceilometer/stats"
)

// Collector fans in the readings of every configured source. It holds no
// state between cycles.
type Collector struct {
	sources []Source
	log     *zap.Logger
	stats   *stats.Stats
	now     func() time.Time
}

// Option customises a Collector.
type Option func(*Collector)

// WithStats records query failures on s.
func WithStats(s *stats.Stats) Option {
	return func(c *Collector) { c.stats = s }
}

// WithNow replaces time.Now as the cycle clock.
func WithNow(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New returns a collector over sources, queried in the given order.
func New(sources []Source, log *zap.Logger, opts ...Option) *Collector {
	c := &Collector{
		sources: sources,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs one cycle lazily. The cycle instant is taken when iteration
// starts and stamped on every reading. A failing query is logged and skipped
// and never stops the other queries or sources.
func (c *Collector) Collect(ctx context.Context) iter.Seq[Reading] {
	return func(yield func(Reading) bool) {
		c.collectAt(ctx, c.now())(yield)
	}
}

// CollectAll runs one cycle and materialises it as a snapshot.
func (c *Collector) CollectAll(ctx context.Context) *Snapshot {
	snap := NewSnapshot(c.now())
	for r := range c.collectAt(ctx, snap.CollectedAt) {
		snap.Readings = append(snap.Readings, r)
	}
	return snap
}

func (c *Collector) collectAt(ctx context.Context, now time.Time) iter.Seq[Reading] {
	return func(yield func(Reading) bool) {
		for _, src := range c.sources {
			for s, err := range src.FetchMetrics(ctx) {
				if err != nil {
					c.report(src.Name(), err)
					continue
				}
				if !yield(Reading{Sample: s, Timestamp: now}) {
					return
				}
			}
		}
	}
}

func (c *Collector) report(source string, err error) {
	metric := ""
	var qe *QueryError
	if errors.As(err, &qe) {
		source, metric = qe.Source, qe.Metric
	}
	c.log.Error("metric query failed",
		zap.String("source", source),
		zap.String("metric", metric),
		zap.Bool("malformed", errors.Is(err, ErrMalformedResponse)),
		zap.Error(err),
	)
	c.stats.QueryFailed(source, metric)
}
