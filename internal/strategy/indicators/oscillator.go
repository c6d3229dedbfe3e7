package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"divergenceBot/internal/domain"
)

// OscillatorConfig holds the periods of the percentage price oscillator.
type OscillatorConfig struct {
	FastPeriod   int // fast EMA of the close, e.g. 12
	SlowPeriod   int // slow EMA of the close, e.g. 26
	SmoothPeriod int // SMA applied to the oscillator, e.g. 2
}

// Oscillator computes a smoothed percentage price oscillator (PPO):
// 100 * (EMA_fast - EMA_slow) / EMA_slow, followed by an SMA.
type Oscillator struct {
	config OscillatorConfig
}

// NewOscillator validates the periods and creates an oscillator.
func NewOscillator(config OscillatorConfig) (*Oscillator, error) {
	if config.FastPeriod <= 0 || config.SlowPeriod <= 0 || config.SmoothPeriod <= 0 {
		return nil, fmt.Errorf("oscillator periods must be positive: fast=%d slow=%d smooth=%d",
			config.FastPeriod, config.SlowPeriod, config.SmoothPeriod)
	}
	if config.FastPeriod >= config.SlowPeriod {
		return nil, fmt.Errorf("oscillator fast period (%d) must be less than slow period (%d)",
			config.FastPeriod, config.SlowPeriod)
	}
	return &Oscillator{config: config}, nil
}

// Name returns the name of the indicator
func (o *Oscillator) Name() string {
	return fmt.Sprintf("PPO_%d_%d_SMA%d", o.config.FastPeriod, o.config.SlowPeriod, o.config.SmoothPeriod)
}

// WarmUp is the number of leading candles that cannot carry a sample.
func (o *Oscillator) WarmUp() int {
	return (o.config.SlowPeriod - 1) + (o.config.SmoothPeriod - 1)
}

// RequiredDataPoints returns the minimum number of klines that yields one sample.
func (o *Oscillator) RequiredDataPoints() int {
	return o.WarmUp() + 1
}

// Compute returns one sample per kline at index >= WarmUp(), so samples[i]
// belongs to klines[WarmUp()+i]. A series that is too short yields no samples.
func (o *Oscillator) Compute(klines []*domain.Kline) []domain.OscillatorSample {
	if len(klines) < o.RequiredDataPoints() {
		return nil
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	fast := talib.Ema(closes, o.config.FastPeriod)
	slow := talib.Ema(closes, o.config.SlowPeriod)

	// Raw PPO is defined from the first index where the slow EMA exists.
	first := o.config.SlowPeriod - 1
	raw := make([]float64, len(closes)-first)
	for i := range raw {
		s := slow[first+i]
		if s == 0 {
			continue
		}
		raw[i] = 100 * (fast[first+i] - s) / s
	}

	smoothed := talib.Sma(raw, o.config.SmoothPeriod)
	lag := o.config.SmoothPeriod - 1

	samples := make([]domain.OscillatorSample, 0, len(raw)-lag)
	for i := lag; i < len(raw); i++ {
		samples = append(samples, domain.OscillatorSample{
			Timestamp: klines[first+i].OpenTime,
			Raw:       raw[i],
			Smoothed:  smoothed[i],
		})
	}
	return samples
}
