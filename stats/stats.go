// Package stats instruments the collector itself: how many cycles ran, how
// many readings they emitted and which queries failed.
package stats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ceilometer"

// Stats holds the collector's own counters. A nil *Stats is valid and
// records nothing.
type Stats struct {
	cycles        prometheus.Counter
	readings      prometheus.Counter
	queryErrors   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Stats {
	f := promauto.With(reg)
	return &Stats{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed collection cycles.",
		}),
		readings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings written to the output sink.",
		}),
		queryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Metric queries that failed and were skipped.",
		}, []string{"source", "metric"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent collecting and writing one cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// QueryFailed counts one skipped query.
func (s *Stats) QueryFailed(source, metric string) {
	if s == nil {
		return
	}
	s.queryErrors.WithLabelValues(source, metric).Inc()
}

// CycleDone records a finished cycle.
func (s *Stats) CycleDone(readings int, took time.Duration) {
	if s == nil {
		return
	}
	s.cycles.Inc()
	s.readings.Add(float64(readings))
	s.cycleDuration.Observe(took.Seconds())
}

// Serve exposes g on /metrics until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, g prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	log.Info("serving collector metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
