package main

import (
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpadapter "github.com/dukasoko/checkout-gateway/internal/adapter/primary/http"
	"github.com/dukasoko/checkout-gateway/internal/adapter/secondary/database"
	"github.com/dukasoko/checkout-gateway/internal/adapter/secondary/messaging"
	"github.com/dukasoko/checkout-gateway/internal/adapter/secondary/mpesa"
	"github.com/dukasoko/checkout-gateway/internal/config"
	"github.com/dukasoko/checkout-gateway/internal/constant/model/db"
	"github.com/dukasoko/checkout-gateway/internal/core/service"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/metrics"
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

	// Initialize secondary adapters: Repository, Messaging, Provider
	orderRepo := database.NewGormOrderRepository(dbConn.DB)

	msgClient, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL, logg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer msgClient.Close()

	mpesaCfg := mpesa.Config{
		BaseURL:         cfg.Mpesa.BaseURL,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		Passkey:         cfg.Mpesa.Passkey,
		Shortcode:       cfg.Mpesa.Shortcode,
		CallbackBaseURL: cfg.Mpesa.CallbackBaseURL,
		CallbackSecret:  cfg.Mpesa.CallbackSecret,
		Timeout:         cfg.Mpesa.Timeout,
	}
	if err := mpesaCfg.Validate(); err != nil {
		log.Fatalf("Invalid M-Pesa configuration: %v", err)
	}
	provider := mpesa.NewClient(mpesaCfg, logg)

	// Initialize core service (implements input port)
	checkoutService := service.NewCheckoutService(orderRepo, provider, msgClient, logg)

	// Initialize primary adapters: HTTP handlers (use input port)
	m := metrics.New(prometheus.DefaultRegisterer)
	orderHandler := httpadapter.NewOrderHandler(checkoutService)
	checkoutHandler := httpadapter.NewCheckoutHandler(checkoutService, m)
	callbackHandler := httpadapter.NewCallbackHandler(checkoutService, cfg.Mpesa.CallbackSecret, m, logg)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(m.Middleware())
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// Routes
	api := e.Group("/api/v1")
	api.POST("/orders", orderHandler.CreateOrder)
	api.GET("/orders/:id", orderHandler.GetOrder)
	api.POST("/payments/initiate", checkoutHandler.InitiatePayment)
	api.POST("/payments/status", checkoutHandler.QueryStatus)
	api.POST("/payments/callback", callbackHandler.HandleCallback)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	logg.Info("starting API server", "address", cfg.Server.Address)
	if err := e.Start(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
