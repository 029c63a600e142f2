package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rayimanoj-oliva/wb-crm/internal/clients"
	"github.com/rayimanoj-oliva/wb-crm/internal/config"
	"github.com/rayimanoj-oliva/wb-crm/internal/dispatch"
	"github.com/rayimanoj-oliva/wb-crm/internal/engine"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/loaders"
	"github.com/rayimanoj-oliva/wb-crm/internal/payments"
	"github.com/rayimanoj-oliva/wb-crm/internal/routes"
	"github.com/rayimanoj-oliva/wb-crm/internal/session"
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
	"github.com/rayimanoj-oliva/wb-crm/internal/ws"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: Error loading .env file", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	cleanup := utils.InitLogger(cfg)
	defer cleanup()

	utils.Zlog.Info("Starting application",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.ServerPort))

	db, err := loaders.NewPostgresClient(cfg.DatabaseURL, cfg.WorkerCount)
	if err != nil {
		utils.Zlog.Error("Failed to create database client", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			utils.Zlog.Error("Error closing database connection", zap.Error(err))
		}
	}()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(schemaCtx); err != nil {
		schemaCancel()
		utils.Zlog.Error("Failed to ensure database schema", zap.Error(err))
		os.Exit(1)
	}
	schemaCancel()

	resolver := tenant.NewResolver(db, cfg)
	store := session.NewStore(cfg.SessionTTL)
	hub := ws.NewHub()

	waClient := clients.NewWhatsAppClient()
	zohoClient := clients.NewZohoClient(clients.ZohoConfig{
		ClientID:     cfg.ZohoClientID,
		ClientSecret: cfg.ZohoClientSecret,
		RefreshToken: cfg.ZohoRefreshToken,
		AccountsURL:  cfg.ZohoAccountsURL,
		APIBaseURL:   cfg.ZohoAPIBaseURL,
	})
	rzpClient := clients.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	shopifyClient := clients.NewShopifyClient(cfg.ShopifyStoreDomain, cfg.ShopifyAccessToken)

	dispatcher := dispatch.New(waClient, zohoClient, rzpClient, db, store, hub)

	router := flows.NewRouter(
		flows.Treatment{},
		flows.LeadAppointment{},
		flows.CartCheckout{},
		flows.AddressCollection{},
	)
	eng := engine.New(router, store, dispatcher, db, resolver)

	webhookController := webhook.NewController(cfg, resolver, eng)
	paymentsController := payments.NewController(cfg, db, store, resolver, dispatcher, shopifyClient)

	// Session TTL sweep drives the drop-off lead path.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() {
		if swept := store.ExpireSweep(time.Now()); swept > 0 {
			utils.Zlog.Info("Session sweep completed", zap.Int("swept", swept))
		}
	}); err != nil {
		utils.Zlog.Error("Invalid sweep schedule", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginRouter := gin.New()

	routes.SetupRoutes(ginRouter, db, cfg, routes.Deps{
		Webhook:  webhookController,
		Payments: paymentsController,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      ginRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Zlog.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Zlog.Error("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		utils.Zlog.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	utils.Zlog.Info("Server exited")
}
