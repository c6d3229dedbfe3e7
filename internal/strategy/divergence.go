package strategy

import (
	"divergenceBot/internal/domain"
	"divergenceBot/internal/strategy/indicators"
)

// Extrema holds the extremum indices of one window, each list ascending.
type Extrema struct {
	PriceHighs []int
	PriceLows  []int
	OscPeaks   []int
	OscTroughs []int
}

// FindExtrema scans price highs, price lows and the smoothed oscillator of the
// window with the given minimum spacing.
func FindExtrema(w AnalysisWindow, distance int) Extrema {
	osc := w.Smoothed()
	return Extrema{
		PriceHighs: indicators.FindPeaks(w.Highs(), distance),
		PriceLows:  indicators.FindTroughs(w.Lows(), distance),
		OscPeaks:   indicators.FindPeaks(osc, distance),
		OscTroughs: indicators.FindTroughs(osc, distance),
	}
}

// Classify looks for a divergence confirmed on the last closed candle.
//
// Bearish: the latest oscillator peak sits on the last closed candle, is lower
// than the previous oscillator peak, while the high at that candle is above the
// high at the previous peak. Bullish is the mirror image on troughs and lows.
// The bearish case is checked first and wins when both hold.
func Classify(w AnalysisWindow, ex Extrema) *domain.Signal {
	last := w.LastClosedIndex()
	if last < 0 {
		return nil
	}
	osc := w.Smoothed()

	if n := len(ex.OscPeaks); n > 1 && ex.OscPeaks[n-1] == last {
		prev := ex.OscPeaks[n-2]
		if osc[last] < osc[prev] && w.Candle(last).High > w.Candle(prev).High {
			return &domain.Signal{Side: domain.Sell, TriggerPrice: w.Candle(last).High}
		}
	}

	if n := len(ex.OscTroughs); n > 1 && ex.OscTroughs[n-1] == last {
		prev := ex.OscTroughs[n-2]
		if osc[last] > osc[prev] && w.Candle(last).Low < w.Candle(prev).Low {
			return &domain.Signal{Side: domain.Buy, TriggerPrice: w.Candle(last).Low}
		}
	}

	return nil
}
