package domain

// Position is the venue's view of the bot's exposure on its instrument.
// The bot only observes it; order execution on the exchange mutates it.
type Position struct {
	Symbol        string
	Side          OrderSide // meaningless when Size is zero
	Size          float64   // absolute size, 0 means flat
	EntryPrice    float64   // average entry price
	UnrealizedPnL float64
}

// IsOpen reports whether the position holds any size.
func (p *Position) IsOpen() bool {
	return p != nil && p.Size > 0
}
