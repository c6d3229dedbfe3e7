package ports

import (
	"context"
	"time"

	"divergenceBot/internal/domain"
)

// OrderResponse represents the essential details returned after submitting an order.
type OrderResponse struct {
	OrderID       int64  // Exchange's order ID of the entry order
	ClientOrderID string // Client order ID echoed back by the exchange
	Symbol        string
	Side          string
	Status        string // e.g. NEW, FILLED
	AvgPrice      float64
	ExecutedQty   float64
	StopOrderID   int64 // protective stop-loss order
	TargetOrderID int64 // take-profit order
	Timestamp     time.Time
}

// ExchangeClient is the bot's view of the trading venue.
// Every method blocks until the venue answers or ctx is done.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's clock offset with the exchange.
	SetServerTime(ctx context.Context) error

	// GetInstrument returns the trading filters (quantity step, price tick) for symbol.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)

	// GetKlines returns the most recent limit candles, oldest first. The last
	// element is the candle that is still forming.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// GetPosition returns the current position. A flat account yields a
	// position with zero Size, never nil.
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)

	// GetLastClosedTrade returns the most recent trade that realized PnL.
	GetLastClosedTrade(ctx context.Context, symbol string) (*domain.ClosedTrade, error)

	// SubmitOrder places a market order together with its stop-loss and take-profit.
	SubmitOrder(ctx context.Context, order *domain.Order) (*OrderResponse, error)
}
