package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"divergenceBot/config"
	"divergenceBot/internal/adapters/binanceclient"
	"divergenceBot/internal/adapters/logger"
	"divergenceBot/internal/adapters/metrics"
	"divergenceBot/internal/adapters/sqlite"
	"divergenceBot/internal/app"
	"divergenceBot/internal/ports"
	"divergenceBot/internal/risk"
	"divergenceBot/internal/strategy"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With(map[string]interface{}{"symbol": cfg.Symbol})
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Journal (Database Adapter)
	var journal ports.TradeJournal
	if cfg.JournalPath != "" {
		j, err := sqlite.NewJournal(sqlite.Config{
			DBPath: cfg.JournalPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize trade journal")
			log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing trade journal")
			}
		}()
		journal = j
		appLogger.Info(ctx, "Trade journal initialized", map[string]interface{}{"path": cfg.JournalPath})
	}

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized", map[string]interface{}{"testnet": cfg.IsTestnet})

	// 5. Initialize Detector and Sizer
	detector, err := strategy.New(strategy.Config{
		FastPeriod:   cfg.PPOFast,
		SlowPeriod:   cfg.PPOSlow,
		SmoothPeriod: cfg.PPOSmooth,
		PeakDistance: cfg.PeakDistance,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize divergence detector")
		log.Fatalf("FATAL: Failed to initialize divergence detector: %v", err)
	}

	sizer, err := risk.NewSizer(risk.SizerConfig{
		RiskRewardRatio: cfg.RiskRewardRatio,
		CapitalPerTrade: cfg.CapitalPerTrade,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize order sizer")
		log.Fatalf("FATAL: Failed to initialize order sizer: %v", err)
	}

	// 6. Initialize Application Service
	recorder := metrics.New(cfg.Symbol)
	tradingService, err := app.NewTradingService(cfg, appLogger, binanceClient, detector, sizer, journal, recorder)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 7. Run the service and the status server until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tradingService.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(metrics.ServerConfig{
			Addr:   cfg.MetricsAddr,
			Logger: appLogger,
		}, recorder, tradingService.StatusReport)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		appLogger.Error(context.Background(), err, "Application exited with error")
		exitCode = 1
		return
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
