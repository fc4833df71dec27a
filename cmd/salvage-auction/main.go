package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"salvage-auction-service/internal/adapters/broadcaster"
	"salvage-auction-service/internal/adapters/cache"
	"salvage-auction-service/internal/adapters/db"
	"salvage-auction-service/internal/adapters/httpapi"
	"salvage-auction-service/internal/adapters/notifier"
	"salvage-auction-service/internal/adapters/provider"
	"salvage-auction-service/internal/adapters/redis"
	"salvage-auction-service/internal/adapters/scheduler"
	"salvage-auction-service/internal/adapters/ws"
	"salvage-auction-service/internal/app"
	"salvage-auction-service/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Salvage Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	vendorRepo := repoFactory.GetVendorRepository()
	caseRepo := repoFactory.GetCaseRepository()
	walletRepo := repoFactory.GetWalletRepository()
	fundingRepo := repoFactory.GetFundingRepository()
	paymentRepo := repoFactory.GetPaymentRepository()
	auditLog := repoFactory.GetAuditLog()

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	// Redis-backed support adapters
	balanceCache := cache.NewBalanceCache(cache.BalanceCacheParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	otpStore := cache.NewOTPStore(cache.OTPStoreParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	rateLimiter := cache.NewRateLimiter(cache.RateLimiterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	// Outbound providers
	smsClient := notifier.NewSMSClient(notifier.SMSClientParams{
		BaseURL:  cfg.SMS.BaseURL,
		APIKey:   cfg.SMS.APIKey,
		SenderID: cfg.SMS.SenderID,
		Logger:   log.Logger,
	})
	emailClient := notifier.NewEmailClient(notifier.EmailClientParams{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Logger:   log.Logger,
	})
	notify := notifier.New(smsClient, emailClient)

	transferClient := provider.NewTransferClient(provider.TransferClientParams{
		BaseURL:   cfg.Provider.BaseURL,
		SecretKey: cfg.Provider.SecretKey,
		Recipient: cfg.Provider.Recipient,
		Logger:    log.Logger,
	})

	// Shared worker pool for post-commit side effects
	effects := app.NewEffectRunner(log.Logger)

	// Create business services
	walletService := app.NewWalletService(app.WalletServiceParams{
		WalletRepo:  walletRepo,
		FundingRepo: fundingRepo,
		VendorRepo:  vendorRepo,
		Cache:       balanceCache,
		Limiter:     rateLimiter,
		Transfer:    transferClient,
		Audit:       auditLog,
		Effects:     effects,
		Logger:      log.Logger,
		CheckoutURL: cfg.Provider.CheckoutURL,
	})

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		CaseRepo:    caseRepo,
		VendorRepo:  vendorRepo,
		PaymentRepo: paymentRepo,
		Wallets:     walletService,
		WalletRepo:  walletRepo,
		Broadcaster: redisBroadcaster,
		Notifier:    notify,
		Audit:       auditLog,
		Effects:     effects,
		Logger:      log.Logger,
		PaymentURL:  cfg.Provider.PaymentURL,
	})

	bidService := app.NewBidService(app.BidServiceParams{
		BidRepo:     bidRepo,
		AuctionRepo: auctionRepo,
		VendorRepo:  vendorRepo,
		Broadcaster: redisBroadcaster,
		Notifier:    notify,
		OTPStore:    otpStore,
		Audit:       auditLog,
		Auctions:    auctionService,
		Effects:     effects,
		Logger:      log.Logger,
	})

	paymentService := app.NewPaymentService(app.PaymentServiceParams{
		PaymentRepo:   paymentRepo,
		FundingRepo:   fundingRepo,
		VendorRepo:    vendorRepo,
		WalletRepo:    walletRepo,
		Wallets:       walletService,
		Notifier:      notify,
		Audit:         auditLog,
		Effects:       effects,
		Logger:        log.Logger,
		WebhookSecret: cfg.Provider.WebhookSecret,
	})

	log.Info().Msg("Business services initialized")

	// Create and start background schedulers
	closureScheduler := scheduler.NewClosureScheduler(scheduler.ClosureSchedulerParams{
		RedisClient:    redisClient,
		AuctionService: auctionService,
		AuctionRepo:    auctionRepo,
		Logger:         log.Logger,
	})
	closureScheduler.Start()
	auctionService.SetScheduler(closureScheduler)
	log.Info().Msg("Closure scheduler started")

	deadlineSweeper := scheduler.NewDeadlineSweeper(scheduler.DeadlineSweeperParams{
		PaymentService: paymentService,
		Interval:       time.Minute,
		Logger:         log.Logger,
	})
	deadlineSweeper.Start()
	log.Info().Msg("Payment deadline sweeper started")

	// REST API server
	apiServer := httpapi.NewServer(httpapi.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		BidService:     bidService,
		WalletService:  walletService,
		PaymentService: paymentService,
		WalletRepo:     walletRepo,
		OTPStore:       otpStore,
		VendorRepo:     vendorRepo,
		Notifier:       notify,
		Logger:         log.Logger,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start REST API server")
			cancel()
		}
	}()

	// Live feed server
	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		AuctionRepo:    auctionRepo,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start live feed server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	closureScheduler.Stop()
	log.Info().Msg("Closure scheduler stopped")

	deadlineSweeper.Stop()
	log.Info().Msg("Payment deadline sweeper stopped")

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping REST API server")
	}
	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping live feed server")
	}

	// Drain queued side effects before dropping connections
	effects.Stop()

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis client")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
