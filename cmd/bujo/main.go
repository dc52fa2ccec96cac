package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"bujo/internal/amqp"
	"bujo/internal/cli"
	apphttp "bujo/internal/http"
	"bujo/internal/log"
	"bujo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// AMQP is optional: without it records stay local and the periodic
	// worker scan picks them up when the queue comes back.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without sync publishing", "error", err)
			amqpClient = nil
		}
	}

	records := services.NewRecordService(repo, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, repo, records)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := records.Close(); err != nil {
			logger.Error("Record service close error", "error", err)
		}
	})

	logger.Info("Starting bujo server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
