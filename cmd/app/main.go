package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/audit"
	"github.com/xSkywa1ker/dance-bot/internal/auth"
	"github.com/xSkywa1ker/dance-bot/internal/booking"
	"github.com/xSkywa1ker/dance-bot/internal/clock"
	"github.com/xSkywa1ker/dance-bot/internal/config"
	"github.com/xSkywa1ker/dance-bot/internal/db"
	"github.com/xSkywa1ker/dance-bot/internal/direction"
	"github.com/xSkywa1ker/dance-bot/internal/janitor"
	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/notify"
	"github.com/xSkywa1ker/dance-bot/internal/payment"
	"github.com/xSkywa1ker/dance-bot/internal/payment/gateway"
	"github.com/xSkywa1ker/dance-bot/internal/product"
	"github.com/xSkywa1ker/dance-bot/internal/schedule"
	"github.com/xSkywa1ker/dance-bot/internal/server"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"
	"github.com/xSkywa1ker/dance-bot/internal/user"
)

func main() {
	logger.Init()
	logger.Info("Starting dance studio booking service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auth.NewRepository(database).EnsureAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		logger.Fatalf("Failed to seed admin account: %v", err)
	}

	gw, err := gateway.New(cfg.PaymentProvider, cfg.PaymentReturnURL)
	if err != nil {
		logger.Fatalf("Failed to initialize payment gateway: %v", err)
	}
	logger.Info("Payment gateway initialized", "provider", gw.Name())

	clk := clock.New()

	userRepo := user.NewRepository(database)
	directionRepo := direction.NewRepository(database)
	scheduleRepo := schedule.NewRepository(database)
	productRepo := product.NewRepository(database)
	subscriptionRepo := subscription.NewRepository(database)
	paymentRepo := payment.NewRepository(database)
	bookingRepo := booking.NewRepository(database)
	auditRepo := audit.NewRepository(database)

	arbiter := subscription.NewArbiter(subscriptionRepo, productRepo, cfg.CompensationValidityDays)
	paymentService := payment.NewService(database, paymentRepo, gw, bookingRepo, arbiter, clk)

	notifyService := notify.New(cfg.RedisAddr, cfg.TelegramBotToken, cfg.Timezone)
	defer notifyService.Close()
	go notifyService.Start(ctx)

	bookingService := booking.NewService(
		database,
		bookingRepo,
		scheduleRepo,
		userRepo,
		arbiter,
		paymentService,
		paymentRepo,
		directionRepo,
		auditRepo,
		notifyService,
		clk,
		cfg.CancellationWindow,
		cfg.ReservationPaymentTimeout,
	)

	jan := janitor.New(bookingService, bookingService, cfg.JanitorInterval)
	if err := jan.Start(); err != nil {
		logger.Fatalf("Failed to start janitor: %v", err)
	}

	srv := server.New(database, cfg, server.Deps{
		Bookings: bookingService,
		Payments: paymentService,
		Arbiter:  arbiter,
		Gateway:  gw,
		Notify:   notifyService,
		Clock:    clk,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	jan.Stop()
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
