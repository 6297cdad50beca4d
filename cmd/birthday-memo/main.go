package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"birthdaymemo/internal/backend"
	"birthdaymemo/internal/cache"
	"birthdaymemo/internal/cli"
	"birthdaymemo/internal/config"
	"birthdaymemo/internal/core"
	apphttp "birthdaymemo/internal/http"
	applog "birthdaymemo/internal/log"
	"birthdaymemo/internal/metrics"
	"birthdaymemo/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger.Logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []services.Option{services.WithMetrics(m)}
	var janitor *cache.Janitor
	if cfg.RecordCacheTTL > 0 {
		records := cache.NewLRUCache[core.Record](cfg.RecordCacheSize, cfg.RecordCacheTTL)
		opts = append(opts, services.WithCache(records))
		janitor = cache.NewJanitor(records)
		janitor.Start(cfg.RecordCacheTTL)
		defer janitor.Stop()
	}
	if result.Publisher != nil {
		opts = append(opts, services.WithPublisher(result.Publisher))
	}
	memos := services.NewMemoService(result.Store, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, memos, apphttp.Options{
		Registry:           reg,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Ready:              memos,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting birthday memo server",
			"port", cfg.Port, "backend", cfg.DataBackend, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
