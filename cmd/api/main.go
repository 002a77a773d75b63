package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sefazor/subscription-checkout/internal/config"
	"github.com/sefazor/subscription-checkout/internal/controller"
	"github.com/sefazor/subscription-checkout/internal/handler"
	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/server"
	"github.com/sefazor/subscription-checkout/internal/service"
	"github.com/sefazor/subscription-checkout/pkg/logging"
	"github.com/sefazor/subscription-checkout/pkg/payment"
	"github.com/sefazor/subscription-checkout/pkg/utils"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	validator := utils.NewValidator()
	if err := validator.Struct(cfg); err != nil {
		logger.Fatalw("invalid configuration", "error", err, "fields", utils.FieldNames(err))
	}

	// Services
	subscriptionService := service.NewSubscriptionService(
		cfg.Checkout.BackendURL,
		validator,
		logger.Named("subscription"),
		service.SubscriptionOptions{InsecureTLS: cfg.Checkout.InsecureTLS},
	)
	stripeService := payment.NewStripeService(cfg.Stripe.PublishableKey, payment.Options{
		APIURL: cfg.Stripe.APIURL,
		Logger: logger.Named("stripe"),
	})
	paymentService := service.NewPaymentService(stripeService, logger.Named("payment"))

	// Page sessions
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := page.NewRegistry[*handler.CheckoutSession](cfg.Checkout.SessionTTL)
	go sessions.Run(ctx, time.Minute)

	// Handlers
	checkoutHandler := handler.NewCheckoutHandler(
		controller.NewSubscriptionController(subscriptionService),
		controller.NewPaymentController(paymentService),
		sessions,
		handler.CheckoutConfig{
			PricingMode:    models.PricingMode(cfg.Checkout.PricingMode),
			ProductID:      cfg.Checkout.ProductID,
			PublishableKey: cfg.Stripe.PublishableKey,
			PublicURL:      cfg.Checkout.PublicURL,
		},
		logger.Named("checkout"),
	)

	srv := server.NewServer(checkoutHandler, logger, server.Options{
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		RateLimitMax:     cfg.HTTP.RateLimitMax,
	})

	logger.Infow("starting HTTP server", "addr", cfg.Addr(), "pricing_mode", cfg.Checkout.PricingMode)
	go func() {
		if err := srv.Start(cfg.Addr()); err != nil {
			logger.Fatalw("HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")
	cancel()

	if err := srv.Shutdown(); err != nil {
		logger.Errorw("HTTP server shutdown error", "error", err)
	}
}
