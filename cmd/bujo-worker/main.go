package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bujo/internal/amqp"
	"bujo/internal/cli"
	"bujo/internal/log"
	gsheet "bujo/internal/sheets/google"
	"bujo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting bujo-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The ledger client is optional; without it the worker only drains
	// delete messages into no-ops.
	var sheetsClient *gsheet.Client
	if cfg.SheetsEnabled() {
		var err error
		sheetsClient, err = gsheet.NewFromConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncWorker *worker.SyncWorker
	if sheetsClient != nil {
		syncWorker = worker.NewSyncWorker(repo, sheetsClient, sheetsClient, cfg.SyncBatchSize)

		// Drain anything that piled up while the worker was down.
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
		}
	} else {
		logger.Info("Skipping ledger sync operations - no client available")
	}

	if syncWorker != nil {
		go func() {
			if err := amqpClient.ConsumeMessages(ctx, syncWorker.HandleSyncMessage, syncWorker.HandleDeleteMessage); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := syncWorker.ProcessPendingRecords(ctx); err != nil {
						logger.Error("Periodic sync failed", "error", err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no sync worker available")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
