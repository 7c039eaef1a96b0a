package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/netvend-ledger/internal/config"
	"github.com/netvend-ledger/internal/data/mongo"
	"github.com/netvend-ledger/internal/data/postgres"
	"github.com/netvend-ledger/internal/logger"
	"github.com/netvend-ledger/internal/platform/messaging/producers"
	"github.com/netvend-ledger/internal/platform/metrics"
	"github.com/netvend-ledger/internal/platform/persistence"
	"github.com/netvend-ledger/internal/reconciler"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event producer", "error", err)
		os.Exit(1)
	}

	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	markerRepo := postgres.NewRefundMarkerRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())

	rec, err := reconciler.NewReconciler(&cfg.Reconciler, log, accountRepo, ledgerRepo, markerRepo, eventProducer)
	if err != nil {
		log.Error("Failed to initialize reconciler", "error", err)
		os.Exit(1)
	}

	// Metrics sidecar; health follows the Postgres pool
	metricsServer := metrics.StartServer(cfg.Metrics.Port, func(ctx context.Context) error {
		return postgresDB.Pool().Ping(ctx)
	})
	log.Info("Metrics sidecar started", "port", cfg.Metrics.Port)

	go rec.Start(appCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	rec.Shutdown()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during metrics server shutdown", "error", err)
	}

	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing ledger event producer", "error", err)
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Reconciler shutdown completed")
}
