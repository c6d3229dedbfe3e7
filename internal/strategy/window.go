package strategy

import (
	"fmt"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
)

// AnalysisWindow pairs the candles that carry an oscillator sample with those
// samples, so that index i means the same candle in every derived series.
type AnalysisWindow struct {
	candles []*domain.Kline
	samples []domain.OscillatorSample
}

// NewAnalysisWindow drops the warm-up prefix of klines so that it lines up with
// samples. The samples must belong to the most recent candles of klines.
func NewAnalysisWindow(klines []*domain.Kline, samples []domain.OscillatorSample) (AnalysisWindow, error) {
	if len(samples) > len(klines) {
		return AnalysisWindow{}, fmt.Errorf("%w: %d oscillator samples for %d candles",
			ports.ErrConfigurationError, len(samples), len(klines))
	}
	candles := klines[len(klines)-len(samples):]
	if len(samples) > 0 && !candles[0].OpenTime.Equal(samples[0].Timestamp) {
		return AnalysisWindow{}, fmt.Errorf("%w: first sample at %s does not match candle at %s",
			ports.ErrConfigurationError, samples[0].Timestamp, candles[0].OpenTime)
	}
	return AnalysisWindow{candles: candles, samples: samples}, nil
}

// Len returns the number of aligned candles.
func (w AnalysisWindow) Len() int {
	return len(w.samples)
}

// LastClosedIndex is the index of the most recent confirmed candle. The final
// element is still forming and is never treated as an extremum.
func (w AnalysisWindow) LastClosedIndex() int {
	return w.Len() - 2
}

// Candle returns the candle at window index i.
func (w AnalysisWindow) Candle(i int) *domain.Kline {
	return w.candles[i]
}

// Highs returns the candle highs of the window.
func (w AnalysisWindow) Highs() []float64 {
	out := make([]float64, len(w.candles))
	for i, c := range w.candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the candle lows of the window.
func (w AnalysisWindow) Lows() []float64 {
	out := make([]float64, len(w.candles))
	for i, c := range w.candles {
		out[i] = c.Low
	}
	return out
}

// Smoothed returns the smoothed oscillator series of the window.
func (w AnalysisWindow) Smoothed() []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Smoothed
	}
	return out
}

// LastSmoothed returns the latest smoothed oscillator value, or 0 for an empty window.
func (w AnalysisWindow) LastSmoothed() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	return w.samples[len(w.samples)-1].Smoothed
}
