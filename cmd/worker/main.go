package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukasoko/checkout-gateway/internal/adapter/secondary/database"
	"github.com/dukasoko/checkout-gateway/internal/adapter/secondary/messaging"
	"github.com/dukasoko/checkout-gateway/internal/config"
	"github.com/dukasoko/checkout-gateway/internal/constant/model/db"
	"github.com/dukasoko/checkout-gateway/internal/core/service"
	"github.com/dukasoko/checkout-gateway/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	// Initialize secondary adapter: Repository (implements output port)
	orderRepo := database.NewGormOrderRepository(dbConn.DB)

	// Initialize core service: Fulfillment processor
	processor := service.NewFulfillmentProcessor(orderRepo, logg)

	// Initialize secondary adapter: Messaging (concrete type for worker)
	msgClient, err := messaging.NewRabbitMQClientConcrete(cfg.RabbitMQ.URL, logg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer msgClient.Close()

	// Start consuming payment results
	if err := msgClient.ConsumePaymentResults(processor.ProcessPaymentResult); err != nil {
		log.Fatalf("Failed to start consuming events: %v", err)
	}

	logg.Info("fulfillment worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down worker")
}
