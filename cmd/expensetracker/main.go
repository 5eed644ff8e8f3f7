package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/sms"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	store, err := cli.InitStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	var (
		syncPublisher services.SyncPublisher
		smsQueue      apphttp.SMSPublisher
		amqpClient    *amqp.Client
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, []string{cfg.AMQPSMSQueue, cfg.AMQPSyncQueue}, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
		syncPublisher = amqpClient.Queue(cfg.AMQPSyncQueue)
		smsQueue = amqpClient.Queue(cfg.AMQPSMSQueue)
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	summaries := services.NewSummaryService(store.Store, logger)
	expenses := services.NewExpenseService(store.Store, syncPublisher, logger, summaries)
	parser := sms.New(expenses,
		sms.WithLocation(cfg.Location()),
		sms.WithFallbackCategory(cfg.FallbackCategory),
		sms.WithLogger(logger))

	caches := cache.NewManager(logger)
	caches.Register(summaries.Cache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:              store.Store,
		Expenses:           expenses,
		Summaries:          summaries,
		Parser:             parser,
		SMSQueue:           smsQueue,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting expense tracker",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"fallback_category", parser.FallbackCategory())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
