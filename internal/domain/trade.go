package domain

import (
	"fmt"
	"time"
)

// ClosedTrade is the realized outcome of a position that went back to flat.
type ClosedTrade struct {
	Symbol      string
	Side        OrderSide // side of the position that was closed
	RealizedPnL float64
	ExitPrice   float64
	CloseTime   time.Time
}

// IsWin reports whether the trade closed with a profit.
func (t ClosedTrade) IsWin() bool {
	return t.RealizedPnL > 0
}

// String renders the trade as a one-line history entry.
func (t ClosedTrade) String() string {
	result := "LOSS"
	if t.IsWin() {
		result = "WIN "
	}
	return fmt.Sprintf("%s %s | %-4s | PNL: %6.2f$ @ %.2f",
		result, t.CloseTime.Local().Format("15:04:05"), t.Side.Label(), t.RealizedPnL, t.ExitPrice)
}
