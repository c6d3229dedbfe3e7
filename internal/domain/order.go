package domain

// Order is a market entry carrying a flat stop-loss/take-profit pair.
type Order struct {
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Quantity      float64
	EntryPrice    float64 // reference price used for sizing
	StopLoss      float64
	TakeProfit    float64
}

// Risk returns the distance between entry and stop in the adverse direction.
func (o *Order) Risk() float64 {
	if o.Side == Buy {
		return o.EntryPrice - o.StopLoss
	}
	return o.StopLoss - o.EntryPrice
}

// Instrument carries the trading filters of the symbol, fetched once at startup.
type Instrument struct {
	Symbol       string
	QuantityStep float64
	PriceTick    float64
}
