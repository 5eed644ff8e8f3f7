package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/sms"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting sms-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process; expenses will not be visible to the API")
	}

	store, err := cli.InitStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, []string{cfg.AMQPSMSQueue, cfg.AMQPSyncQueue}, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Expenses saved here are announced on the sync queue like API writes.
	expenses := services.NewExpenseService(store.Store, amqpClient.Queue(cfg.AMQPSyncQueue), logger)
	parser := sms.New(expenses,
		sms.WithLocation(cfg.Location()),
		sms.WithFallbackCategory(cfg.FallbackCategory),
		sms.WithLogger(logger))
	smsWorker := worker.NewSMSWorker(parser, logger)

	var syncWorker *worker.SyncWorker
	if cfg.SheetsEnabled() {
		sheets, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		syncWorker = worker.NewSyncWorker(store.Store, sheets, logger)
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeSMS(gctx, cfg.AMQPSMSQueue, smsWorker.HandleSMS)
	})
	if syncWorker != nil {
		g.Go(func() error {
			return amqpClient.ConsumeExpenseSync(gctx, cfg.AMQPSyncQueue, syncWorker.HandleSyncMessage)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
