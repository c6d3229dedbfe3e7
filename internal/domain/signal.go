package domain

// Signal is a detected divergence. TriggerPrice is the price extremum of the
// last closed candle and becomes the stop-loss of the resulting order.
type Signal struct {
	Side         OrderSide
	TriggerPrice float64
}

// Analysis is the outcome of one run of the signal pipeline.
type Analysis struct {
	// Sufficient is false when the series was too short to look for extrema.
	Sufficient bool
	// WindowSize is the number of candles left after the oscillator warm-up.
	WindowSize int
	// LastOscillator is the latest smoothed oscillator value; valid when WindowSize > 0.
	LastOscillator float64

	PriceHighs int
	PriceLows  int
	OscPeaks   int
	OscTroughs int

	Signal *Signal
}
