package domain

import "time"

// Kline represents a single candlestick. OpenTime is the candle timestamp used
// to detect that a new candle has closed.
type Kline struct {
	OpenTime  time.Time
	CloseTime time.Time
	Symbol    string
	Interval  string // e.g. "1m"
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OscillatorSample is the oscillator reading for one candle that has a full
// warm-up window behind it.
type OscillatorSample struct {
	Timestamp time.Time
	Raw       float64 // percentage price oscillator
	Smoothed  float64 // simple moving average of Raw
}
