package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/guard"
	"storefront-checkout/internal/logger"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/server"
	"storefront-checkout/internal/service"
)

const verifyGuardTTL = 30 * time.Second

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Log, "storefront-checkout")

	ctx := context.Background()

	db, err := client.InitDBClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init database")
	}

	productRepo := repository.NewProductRepository(db)
	if !cfg.IsProduction() {
		if err := productRepo.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	gatewayClient := client.NewBreakingGatewayClient(
		client.NewGatewayClient(&cfg.Gateway),
		client.BreakerSettings{
			MaxFailures: cfg.Gateway.BreakerMaxFailures,
			OpenTimeout: cfg.Gateway.BreakerOpenTimeout,
		},
	)

	verifyGuard := guard.NewLocalGuard()
	if cfg.RedisURL != "" {
		rdb, err := client.InitRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis")
		}
		defer rdb.Close()
		verifyGuard = guard.NewRedisGuard(rdb, "storefront:verify:", verifyGuardTTL)
	}

	dispatcher := notify.NewDispatcher(newNotifier(cfg.Notify, cfg.Gateway.Timeout), cfg.Notify.QueueSize)
	dispatcher.Start()

	orderRepo := repository.NewOrderRepository(db)
	attemptRepo := repository.NewPaymentAttemptRepository(db)

	cartService := service.NewCartService(productRepo, repository.NewCartRepository(db), dispatcher,
		cfg.Checkout.TaxRate, cfg.Gateway.Currency)
	orderService := service.NewOrderService(db, orderRepo, attemptRepo, dispatcher,
		cfg.Checkout.TaxRate, cfg.Gateway.Currency)
	paymentService := service.NewPaymentService(
		db, gatewayClient, &cfg.Gateway,
		orderRepo,
		attemptRepo,
		repository.NewWebhookEventRepository(db),
		verifyGuard,
		dispatcher,
	)

	srv := server.NewServer(server.Services{
		Catalog:  service.NewCatalogService(productRepo),
		Cart:     cartService,
		Order:    orderService,
		Checkout: service.NewCheckoutService(cartService, orderService, paymentService),
		Payment:  paymentService,
	}, cfg.Auth.JWTSecret)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Info().Str("addr", serverAddr).Str("environment", cfg.Environment.Name).Msg("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info().Msg("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification dispatcher did not drain")
	}
}

func newNotifier(cfg config.Notify, timeout time.Duration) notify.Notifier {
	switch cfg.Driver {
	case "webhook":
		return notify.NewWebhookNotifier(cfg.WebhookURL, timeout)
	case "kafka":
		return notify.NewKafkaNotifier(cfg.KafkaTopic, cfg.KafkaBrokers...)
	default:
		return notify.NewNoopNotifier()
	}
}
