package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"wallet-service/config"
	httpHandler "wallet-service/internal/adapter/http/handler"
	pgStorage "wallet-service/internal/adapter/storage/postgres"
	redisStorage "wallet-service/internal/adapter/storage/redis"
	kafkaStream "wallet-service/internal/adapter/stream/kafka"
	sqsStream "wallet-service/internal/adapter/stream/sqs"
	"wallet-service/internal/consumer"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/service"
	"wallet-service/internal/telemetry"
	"wallet-service/pkg/logger"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// A local .env is optional; real deployments set WLT_* directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("env", cfg.Env).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, logger.Component(log, "telemetry"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	ledgerCache := redisStorage.NewLedgerCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Kafka producers
	walletWriter := kafkaStream.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.WalletTopic)
	defer walletWriter.Close()
	publisher := kafkaStream.NewPublisher(walletWriter)

	deadLetters, closeDeadLetters, err := newDeadLetterSink(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dead-letter sink")
	}
	defer closeDeadLetters()

	// Initialize business services
	codes := service.NewCodeGenerator(walletRepo, service.CodeGeneratorConfig{
		Length:       cfg.Wallet.CodeLength,
		MaxAttempts:  cfg.Wallet.CodeMaxAttempts,
		WidenBy:      cfg.Wallet.CodeWidenBy,
		MaxWidenings: cfg.Wallet.CodeMaxWidenings,
	}, logger.Component(log, "codes"))
	walletSvc := service.NewWalletService(walletRepo, codes, cfg.Wallet.Currency, cfg.Wallet.SearchLimit, log)
	balanceSvc := service.NewBalanceService(walletRepo, ledgerRepo, ledgerCache, publisher, transactor, cfg.Ledger.CacheTTL, logger.Component(log, "balance"))
	contactSvc := service.NewContactService(walletRepo, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	var tokenSvc ports.TokenService
	if cfg.JWT.Secret != "" {
		tokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	} else {
		log.Warn().Msg("jwt.secret not set, /api routes are unauthenticated")
	}

	// Event consumers
	consumerCtx, cancelConsumers := context.WithCancel(ctx)
	var workers sync.WaitGroup

	connector := kafkaStream.NewConnector(cfg.Kafka, cfg.IsProduction(), logger.Component(log, "kafka"))
	reconciler := consumer.NewReconciler(connector, balanceSvc, deadLetters, cfg.Consumer, cfg.Wallet.Currency, logger.Component(log, "reconciler"))
	sweeper := consumer.NewSweeper(ledgerRepo, cfg.Ledger.Retention, cfg.Ledger.SweepInterval, logger.Component(log, "sweeper"))

	workers.Add(2)
	go func() {
		defer workers.Done()
		reconciler.Run(consumerCtx, cfg.Kafka.Workers)
	}()
	go func() {
		defer workers.Done()
		sweeper.Run(consumerCtx)
	}()

	// Setup Gin router with all routes
	serviceName := ""
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		BalanceSvc:     balanceSvc,
		ContactSvc:     contactSvc,
		Currency:       cfg.Wallet.Currency,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		ServiceName:    serviceName,
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	cancelConsumers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	waitOrTimeout(shutdownCtx, &workers, log)

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	log.Info().Msg("Server exited")
}

// newDeadLetterSink builds the configured dead-letter destination and its cleanup.
func newDeadLetterSink(ctx context.Context, cfg *config.Config) (ports.DeadLetterSink, func(), error) {
	switch cfg.DeadLetter.Driver {
	case "sqs":
		if cfg.DeadLetter.SQSQueueURL == "" {
			return nil, nil, errors.New("dead_letter.sqs_queue_url is required for the sqs driver")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DeadLetter.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("loading aws config: %w", err)
		}
		return sqsStream.NewDeadLetterQueue(sqs.NewFromConfig(awsCfg), cfg.DeadLetter.SQSQueueURL), func() {}, nil
	case "kafka", "":
		w := kafkaStream.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		return kafkaStream.NewDeadLetterTopic(w), func() { _ = w.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown dead_letter.driver %q", cfg.DeadLetter.Driver)
	}
}

func waitOrTimeout(ctx context.Context, wg *sync.WaitGroup, log zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("consumers did not stop before shutdown deadline")
	}
}
