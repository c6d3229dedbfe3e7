package strategy

import (
	"context"
	"fmt"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
	"divergenceBot/internal/strategy/indicators"
)

// Config holds parameters for the divergence strategy.
type Config struct {
	FastPeriod   int // e.g., 12
	SlowPeriod   int // e.g., 26
	SmoothPeriod int // e.g., 2
	PeakDistance int // minimum candles between two extrema, e.g., 5
}

// Detector detects price/oscillator divergences. It implements ports.SignalDetector.
type Detector struct {
	cfg        Config
	oscillator *indicators.Oscillator
	logger     ports.Logger
}

// New creates a new Detector.
func New(cfg Config, logger ports.Logger) (*Detector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.PeakDistance < 1 {
		return nil, fmt.Errorf("peak distance must be at least 1, got %d", cfg.PeakDistance)
	}
	osc, err := indicators.NewOscillator(indicators.OscillatorConfig{
		FastPeriod:   cfg.FastPeriod,
		SlowPeriod:   cfg.SlowPeriod,
		SmoothPeriod: cfg.SmoothPeriod,
	})
	if err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, oscillator: osc, logger: logger}, nil
}

// RequiredDataPoints returns the minimum number of klines for a sufficient analysis:
// the oscillator warm-up plus two peak spacings of usable candles.
func (s *Detector) RequiredDataPoints() int {
	return s.oscillator.WarmUp() + 2*s.cfg.PeakDistance
}

// Analyze runs oscillator, peak detection and classification over klines.
// The last kline is treated as still forming.
func (s *Detector) Analyze(ctx context.Context, klines []*domain.Kline) domain.Analysis {
	samples := s.oscillator.Compute(klines)
	analysis := domain.Analysis{WindowSize: len(samples)}
	if len(samples) == 0 {
		s.logger.Debug(ctx, "Not enough klines for the oscillator warm-up",
			map[string]interface{}{"available": len(klines), "warmUp": s.oscillator.WarmUp()})
		return analysis
	}

	window, err := NewAnalysisWindow(klines, samples)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to align oscillator samples with klines")
		return domain.Analysis{}
	}
	analysis.LastOscillator = window.LastSmoothed()

	if window.Len() < 2*s.cfg.PeakDistance {
		s.logger.Debug(ctx, "Analysis window too short for peak detection",
			map[string]interface{}{"window": window.Len(), "required": 2 * s.cfg.PeakDistance})
		return analysis
	}
	analysis.Sufficient = true

	ex := FindExtrema(window, s.cfg.PeakDistance)
	analysis.PriceHighs = len(ex.PriceHighs)
	analysis.PriceLows = len(ex.PriceLows)
	analysis.OscPeaks = len(ex.OscPeaks)
	analysis.OscTroughs = len(ex.OscTroughs)
	analysis.Signal = Classify(window, ex)

	fields := map[string]interface{}{
		"indicator":  s.oscillator.Name(),
		"window":     window.Len(),
		"oscillator": analysis.LastOscillator,
		"oscPeaks":   analysis.OscPeaks,
		"oscTroughs": analysis.OscTroughs,
	}
	if analysis.Signal != nil {
		fields["side"] = analysis.Signal.Side
		fields["triggerPrice"] = analysis.Signal.TriggerPrice
		s.logger.Info(ctx, "Divergence detected", fields)
	} else {
		s.logger.Debug(ctx, "No divergence on the last closed candle", fields)
	}
	return analysis
}
