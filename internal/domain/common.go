package domain

// OrderSide represents the side of an order (BUY or SELL). It doubles as the
// direction of a signal or a position.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side that closes a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Label returns the side in the title case used by activity messages ("Buy"/"Sell").
func (s OrderSide) Label() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return string(s)
	}
}

// PositionState is the state of the position state machine.
type PositionState string

const (
	StateFlat       PositionState = "FLAT"
	StateInPosition PositionState = "IN_POSITION"
)
