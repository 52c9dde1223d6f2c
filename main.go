package main

import (
	"context"
	"log"

	"solSniperBot/config"
	"solSniperBot/internal/adapters/eventbus"
	"solSniperBot/internal/adapters/filestore"
	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/scheduling"
	"solSniperBot/internal/adapters/solanaledger"
	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/app"
	"solSniperBot/internal/pool"
	"solSniperBot/internal/price"
	"solSniperBot/internal/risk"
	"solSniperBot/internal/swap"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Position Store (live-position persistence)
	positionStore, err := filestore.NewPositionStore(filestore.Config{
		Path:   cfg.PositionsFile,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position store")
		log.Fatalf("FATAL: Failed to initialize position store: %v", err)
	}

	// 4. Initialize Trade History (Database Adapter)
	historyRepo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.HistoryDBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade history repository")
		log.Fatalf("FATAL: Failed to initialize trade history repository: %v", err)
	}
	defer func() {
		if err := historyRepo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade history repository")
		}
	}()
	appLogger.Info(context.Background(), "Trade history repository initialized")

	// 5. Initialize Ledger Client (Solana RPC Adapter) and Wallet
	ledgerClient, err := solanaledger.New(solanaledger.Config{
		Endpoint: cfg.RPCEndpoint,
		Timeout:  cfg.RPCTimeout,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger client")
		log.Fatalf("FATAL: Failed to initialize ledger client: %v", err)
	}
	wallet, err := solanaledger.NewWallet(cfg.WalletPrivateKey)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to load wallet key")
		log.Fatalf("FATAL: Failed to load wallet key: %v", err)
	}
	appLogger.Info(context.Background(), "Ledger client initialized", map[string]interface{}{
		"endpoint": cfg.RPCEndpoint, "wallet": wallet.PublicKey().String(),
	})

	// 6. Initialize Pool Resolver and Price Oracle
	poolResolver, err := pool.NewResolver(pool.Config{
		Ledger:      ledgerClient,
		Logger:      appLogger,
		MaxAttempts: cfg.PoolResolveMaxAttempts,
		RetryDelay:  cfg.PoolResolveRetryDelay,
		CacheTTL:    cfg.PoolCacheTTL,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize pool resolver")
		log.Fatalf("FATAL: Failed to initialize pool resolver: %v", err)
	}
	priceOracle, err := price.NewOracle(price.Config{
		Ledger:   ledgerClient,
		Resolver: poolResolver,
		Logger:   appLogger,
		CacheTTL: cfg.PriceCacheTTL,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price oracle")
		log.Fatalf("FATAL: Failed to initialize price oracle: %v", err)
	}

	// 7. Initialize Swap Executor
	swapExecutor, err := swap.NewExecutor(swap.Config{
		Ledger:          ledgerClient,
		Signer:          wallet,
		Logger:          appLogger,
		SlippagePercent: cfg.SlippagePercent,
		PriorityFee:     cfg.PriorityFeeMicroLam,
		ComputeLimit:    cfg.ComputeUnitLimit,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize swap executor")
		log.Fatalf("FATAL: Failed to initialize swap executor: %v", err)
	}
	appLogger.Info(context.Background(), "Swap executor initialized")

	// 8. Initialize Risk Engine
	levels := make([]risk.LevelConfig, 0, len(cfg.TakeProfitLevels))
	for _, lvl := range cfg.TakeProfitLevels {
		levels = append(levels, risk.LevelConfig{TargetMultiple: lvl.TargetMultiple, SellPercent: lvl.SellPercent})
	}
	riskEngine, err := risk.NewEngine(risk.Config{
		StopLossPercent: cfg.StopLossPercent,
		Levels:          levels,
		RatchetL2Mult:   cfg.StopRatchetL2Mult,
		RatchetL3Mult:   cfg.StopRatchetL3Mult,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk engine")
		log.Fatalf("FATAL: Failed to initialize risk engine: %v", err)
	}

	// 9. Initialize Event Bus and Scheduler
	bus := eventbus.New(appLogger)
	defer bus.Close()
	scheduler := scheduling.New()
	defer scheduler.Shutdown()

	// 10. Initialize Application Service
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		poolResolver,
		priceOracle,
		swapExecutor,
		riskEngine,
		positionStore,
		historyRepo,
		bus,
		scheduler,
		wallet.PublicKey(),
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// 11. Start the Service

	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Shutdown complete")
}
