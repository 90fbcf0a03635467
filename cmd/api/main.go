package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"point-ledger/config"
	httpHandler "point-ledger/internal/adapter/http/handler"
	natsPub "point-ledger/internal/adapter/messaging/nats"
	pgStorage "point-ledger/internal/adapter/storage/postgres"
	redisStorage "point-ledger/internal/adapter/storage/redis"
	"point-ledger/internal/core/ports"
	"point-ledger/internal/service"
	"point-ledger/pkg/idgen"
	"point-ledger/pkg/logger"
	"point-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const sweepLockKey = "ledger:sweep:payment-tokens"

func main() {
	cfg, err := config.Load(os.Getenv("PLG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Int64("node_id", cfg.Server.NodeID).
		Msg("Starting point ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	nc, err := natsPub.Connect(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	var publisher ports.EventPublisher = natsPub.NopPublisher{}
	if nc != nil {
		publisher = natsPub.NewPublisher(nc, cfg.NATS.Subject, logger.Component(log, "publisher"))
	} else {
		log.Info().Msg("NATS url empty, ledger events disabled")
	}

	loc, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Ledger.Timezone).Msg("Unknown timezone, daily stats use UTC")
		loc = time.UTC
	}

	ids, err := idgen.NewSnowflake(cfg.Server.NodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize id generator")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	// Repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	tokenRepo := pgStorage.NewPaymentTokenRepo(pool)
	productRepo := pgStorage.NewProductRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout)

	// Services
	auditRecorder := service.NewAuditRecorder(auditRepo, transactor, logger.Component(log, "audit"))
	tokenSvc := service.NewPaymentTokenService(
		tokenRepo,
		walletRepo,
		service.NewHMACSignatureService(),
		ledgerMetrics,
		service.TokenPolicy{
			DefaultTTL: cfg.Token.DefaultTTL,
			MaxTTL:     cfg.Token.MaxTTL,
			SigningKey: cfg.Token.SigningKey,
		},
		logger.Component(log, "payment_tokens"),
	)
	coordinator := service.NewCoordinator(service.CoordinatorDeps{
		Wallets:     walletRepo,
		Ledger:      ledgerRepo,
		Idempotency: idempotencyRepo,
		Cache:       redisStorage.NewIdempotencyCache(rdb),
		Products:    productRepo,
		Tokens:      tokenSvc,
		Audit:       auditRecorder,
		Transactor:  transactor,
		IDs:         ids,
		Publisher:   publisher,
		Metrics:     ledgerMetrics,
	}, service.RetryPolicy{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		Base:        cfg.Ledger.RetryBase,
	}, logger.Component(log, "coordinator"))
	reportingSvc := service.NewReportingService(walletRepo, ledgerRepo, loc, logger.Component(log, "reporting"))
	productSvc := service.NewProductService(productRepo, walletRepo, auditRecorder, transactor, logger.Component(log, "products"))

	sweepLock, err := redisStorage.NewSweepLock(rdb, sweepLockKey, cfg.Token.SweepInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sweep lock")
	}
	sweeper := service.NewTokenSweeper(tokenSvc, sweepLock, ledgerMetrics, cfg.Token.SweepInterval, logger.Component(log, "sweeper"))
	sweepDone := make(chan error, 1)
	go func() { sweepDone <- sweeper.Run(ctx) }()

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Coordinator:    coordinator,
		TokenSvc:       tokenSvc,
		ReportingSvc:   reportingSvc,
		ProductSvc:     productSvc,
		AuditRecorder:  auditRecorder,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		Gatherer:       registry,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-sweepDone; err != nil && !errors.Is(err, context.Canceled) {
		shutdownErr = multierr.Append(shutdownErr, err)
	}
	if nc != nil {
		shutdownErr = multierr.Append(shutdownErr, nc.Drain())
	}
	shutdownErr = multierr.Append(shutdownErr, rdb.Close())

	if shutdownErr != nil {
		for _, e := range multierr.Errors(shutdownErr) {
			log.Error().Err(e).Msg("Shutdown error")
		}
	}
	log.Info().Msg("Server exited")
}
