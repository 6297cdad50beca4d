package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"birthdaymemo/internal/amqp"
	"birthdaymemo/internal/backend"
	"birthdaymemo/internal/cli"
	"birthdaymemo/internal/config"
	applog "birthdaymemo/internal/log"
	"birthdaymemo/internal/records"
	gsheet "birthdaymemo/internal/sheets/google"
	"birthdaymemo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting memo-worker")

	cfg := cli.LoadAndValidateConfig(logger.Logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker only reads records; it never publishes.
	backendCfg.AMQPURL = ""
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

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(result.Store, sheetsClient, cfg.ExportConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	if lister, ok := result.Store.(records.UserLister); ok {
		g.Go(func() error {
			logger.Info("Performing startup export")
			if err := exporter.ExportAll(gctx, lister); err != nil {
				// Saves made while the worker was down will be exported on their next message.
				logger.Error("Startup export failed", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return amqpClient.ConsumeMemoSaved(gctx, exporter.HandleMemoSaved)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("memo-worker stopped")
}
