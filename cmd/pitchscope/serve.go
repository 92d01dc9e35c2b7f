package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/armorclaw/pitchscope/internal/metrics"
	"github.com/armorclaw/pitchscope/internal/retention"
	"github.com/armorclaw/pitchscope/pkg/config"
	"github.com/armorclaw/pitchscope/pkg/errors"
	pshttp "github.com/armorclaw/pitchscope/pkg/http"
	"github.com/armorclaw/pitchscope/pkg/logger"
)

// runServeCommand starts the HTTP server and the retention scheduler and
// blocks until SIGINT or SIGTERM.
func runServeCommand(cliCfg cliConfig) error {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)

	log.Printf("pitchscope v%s starting", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve wires every component from cfg and runs them until ctx is done
func serve(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var store *errors.ErrorStore
	if cfg.Errors.Store.Enabled {
		var err error
		store, err = errors.NewErrorStore(cfg.ToStoreConfig())
		if err != nil {
			return fmt.Errorf("failed to open error store: %w", err)
		}
		defer store.Close()
		log.Printf("✓ Error store opened: %s", store.Path())
	}

	aggCfg := errors.AggregatorConfig{
		MaxRecords: cfg.Errors.MaxRecords,
		Logger:     logger.Global().WithComponent("errors"),
		Metrics:    m,
		SinkBuffer: cfg.Errors.SinkBuffer,
	}
	if store != nil {
		aggCfg.Sink = store
	}
	agg := errors.NewAggregator(aggCfg)
	defer agg.Close()
	guard := errors.NewGuard(agg)

	var manager *retention.Manager
	if store != nil {
		var err error
		manager, err = retention.NewManager(store, retention.Config{
			Schedule: cfg.Errors.Store.CleanupSchedule,
			Logger:   logger.Global(),
			Metrics:  m,
		})
		if err != nil {
			return err
		}
		// one pass at startup so records that aged out while stopped go now
		guard.Go(func() {
			if _, err := manager.RunOnce(ctx); err != nil {
				logger.Warn("startup retention cleanup failed", "error", err)
			}
		})
	}

	serverCfg := pshttp.ServerConfig{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		ReadTimeout:    cfg.GetReadTimeout(),
		ToneSampleRate: cfg.Tone.SampleRate,
		ToneDuration:   cfg.GetToneDuration(),
	}
	if cfg.Metrics.Enabled {
		serverCfg.MetricsPath = cfg.Metrics.Path
	}
	deps := pshttp.Deps{
		Aggregator: agg,
		Store:      store,
		Metrics:    m,
		Gatherer:   reg,
		Logger:     logger.Global(),
	}
	if manager != nil {
		deps.Retention = manager
	}
	server := pshttp.NewServer(serverCfg, deps)
	log.Printf("✓ Error aggregator installed (bound %d)", agg.MaxRecords())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(guarded(guard, "http server", server.Start))

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if manager != nil {
		g.Go(guarded(guard, "retention", func() error { return manager.Run(gctx) }))
	}

	log.Printf("✓ Listening on %s", cfg.Server.Addr)

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("pitchscope stopped")
	return nil
}

// guarded runs fn under the guard so a panic is captured as an uncaught
// fault and surfaces as an error that stops the group.
func guarded(guard *errors.Guard, name string, fn func() error) func() error {
	return func() error {
		var err error
		if !guard.Run(func() { err = fn() }) {
			return fmt.Errorf("%s panicked", name)
		}
		return err
	}
}
