package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ceilometer/backend"
	"ceilometer/collector"
	"ceilometer/config"
	"ceilometer/format"
	"ceilometer/logger"
	"ceilometer/poller"
	"ceilometer/sink"
	"ceilometer/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		return 1
	}
	cfg, err := env.Settings()
	if err != nil {
		var missing *config.MissingKeyError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "Error loading config: %s is not set\n", missing.Key)
		} else {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
		}
		return 1
	}

	log, err := logger.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logger:", err)
		return 1
	}
	defer logger.Flush(log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log.Logger); err != nil {
		log.Logger.Error("ceilometer stopped", zap.Error(err))
		return 1
	}
	return 0
}

// serve is the INIT state: everything is resolved and bound once, then the
// poller takes over until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Settings, log *zap.Logger) error {
	render, err := format.Lookup(cfg.Format)
	if err != nil {
		return err
	}

	out, err := sink.Open(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	st := stats.New(reg)
	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen for metrics: %w", err)
		}
		go func() {
			if err := stats.Serve(ctx, ln, reg, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	api, err := backend.Connect(ctx, cfg.Region)
	if err != nil {
		return err
	}
	ses, err := collector.NewSES(api,
		collector.WithService(cfg.SESService),
		collector.WithWindow(cfg.StatsWindow),
	)
	if err != nil {
		return err
	}

	log.Info("ceilometer starting",
		zap.String("region", cfg.Region),
		zap.String("format", cfg.Format),
		zap.String("output", cfg.Output),
		zap.Duration("interval", cfg.Interval),
	)

	c := collector.New([]collector.Source{ses}, log, collector.WithStats(st))
	p := poller.New(c, render, out, log,
		poller.WithPrefix(cfg.Prefix),
		poller.WithInterval(cfg.Interval),
		poller.WithStats(st),
	)
	return p.Run(ctx)
}
