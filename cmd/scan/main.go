package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"divergenceBot/config"
	"divergenceBot/internal/adapters/binanceclient"
	"divergenceBot/internal/adapters/logger"
	"divergenceBot/internal/domain"
	"divergenceBot/internal/strategy"
	"divergenceBot/internal/utils"
)

var (
	csvIn  = flag.String("in", "", "analyze klines from this CSV file instead of the exchange")
	csvOut = flag.String("out", "", "write the analyzed klines to this CSV file")
)

// scan runs the divergence pipeline once against the current series and
// prints the result. It never places orders.
func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	// 3. Initialize Detector
	detector, err := strategy.New(strategy.Config{
		FastPeriod:   cfg.PPOFast,
		SlowPeriod:   cfg.PPOSlow,
		SmoothPeriod: cfg.PPOSmooth,
		PeakDistance: cfg.PeakDistance,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize divergence detector: %v", err)
	}

	// 4. Load klines
	var klines []*domain.Kline
	if *csvIn != "" {
		klines, err = utils.ReadKlinesFromCSV(*csvIn)
		if err != nil {
			log.Fatalf("Error reading CSV: %v", err)
		}
	} else {
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		fmt.Printf("Fetching %d klines for %s %s...\n", cfg.CandleLimit, cfg.Symbol, cfg.Interval)
		klines, err = binanceClient.GetKlines(ctx, cfg.Symbol, cfg.Interval, cfg.CandleLimit)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching klines")
			log.Fatalf("Error fetching klines: %v", err)
		}
	}
	if len(klines) == 0 {
		log.Fatalf("No klines to analyze")
	}

	// 5. Analyze
	analysis := detector.Analyze(ctx, klines)
	last := klines[len(klines)-1]

	fmt.Printf("Candles:        %d (latest open %s, close %.2f)\n", len(klines), last.OpenTime.Format(time.RFC3339), last.Close)
	fmt.Printf("Required:       %d\n", detector.RequiredDataPoints())
	if !analysis.Sufficient {
		fmt.Printf("Result:         insufficient data (window %d)\n", analysis.WindowSize)
	} else {
		fmt.Printf("Window:         %d\n", analysis.WindowSize)
		fmt.Printf("PPO:            %.4f\n", analysis.LastOscillator)
		fmt.Printf("Price extrema:  %d highs, %d lows\n", analysis.PriceHighs, analysis.PriceLows)
		fmt.Printf("PPO extrema:    %d peaks, %d troughs\n", analysis.OscPeaks, analysis.OscTroughs)
		if analysis.Signal != nil {
			fmt.Printf("Result:         SIGNAL %s (stop %.2f)\n", analysis.Signal.Side.Label(), analysis.Signal.TriggerPrice)
		} else {
			fmt.Println("Result:         no signal")
		}
	}

	// 6. Optional CSV dump
	if *csvOut != "" {
		if err := utils.WriteKlinesToCSV(klines, *csvOut); err != nil {
			log.Fatalf("Error writing CSV: %v", err)
		}
		fmt.Printf("Saved to %s\n", *csvOut)
	}
}
