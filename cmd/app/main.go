package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrifit-payments/internal/config"
	"nutrifit-payments/internal/domain/ports/adapter"
	pg "nutrifit-payments/internal/infra/db/postgres"
	"nutrifit-payments/internal/infra/gateway"
	"nutrifit-payments/internal/infra/logging"
	"nutrifit-payments/internal/infra/metrics"
	"nutrifit-payments/internal/infra/notify"
	red "nutrifit-payments/internal/infra/redis"
	"nutrifit-payments/internal/infra/sched"
	"nutrifit-payments/internal/infra/security"
	"nutrifit-payments/internal/infra/web"
	"nutrifit-payments/internal/usecase"
)

// shutdownGrace bounds how long in-flight requests get on SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Encryption (stored gateway credentials) ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("security.encryption_key must be 32 bytes")
		}
		logger.Warn().Msg("security.encryption_key not set; using dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption service init failed")
	}

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	profileRepo := pg.NewProfileRepo(pool)
	settingsRepo := pg.NewSettingsRepo(pool, encSvc)

	// ---- Gateways ----
	registry := gateway.NewRegistry(
		gateway.NewAsaas(cfg.Gateways.Asaas.BaseURL, cfg.Gateways.Timeout),
		gateway.NewMercadoPago(cfg.Gateways.MercadoPago.BaseURL, cfg.Gateways.Timeout),
		gateway.NewPagarme(cfg.Gateways.Pagarme.BaseURL, cfg.Gateways.Timeout),
		gateway.NewEfi(cfg.Gateways.Efi.BaseURL, cfg.Gateways.Timeout),
	)

	// ---- Notifier ----
	var notifier adapter.Notifier
	if cfg.Mailer.URL != "" {
		notifier = notify.NewMailer(cfg.Mailer.URL, cfg.Mailer.APIKey, cfg.Mailer.Timeout, logger)
	} else {
		notifier = notify.NewNoop(logger)
	}

	// ---- Use cases ----
	provisionUC := usecase.NewProvisionUseCase(txManager, profileRepo, planRepo, paymentRepo, notifier, logger)
	reconcileUC := usecase.NewReconcileUseCase(paymentRepo, settingsRepo, registry, provisionUC, locker, logger)
	checkoutUC := usecase.NewCheckoutUseCase(paymentRepo, planRepo, settingsRepo, registry, reconcileUC, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, logger)

	metrics.MustRegister()

	// ---- Background workers ----
	reconciler := sched.NewPaymentReconciler(reconcileUC, paymentRepo, cfg.Workers.ReconcileInterval, cfg.Workers.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	expiry := sched.NewExpiryNotifier(profileRepo, notifier, redisClient, cfg.Workers.ExpiryInterval, cfg.Workers.ExpiringWithinDays, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, !cfg.Runtime.Dev, "", cfg.Auth.TTL)
	server := web.NewServer(checkoutUC, reconcileUC, provisionUC, planUC, settingsUC, auth, cfg.Auth.AdminAPIKey, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
