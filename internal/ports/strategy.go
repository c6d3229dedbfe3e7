package ports

import (
	"context"

	"divergenceBot/internal/domain"
)

// SignalDetector turns a candle series into an analysis with an optional signal.
type SignalDetector interface {
	// RequiredDataPoints returns the minimum number of candles for a usable analysis.
	RequiredDataPoints() int
	// Analyze runs the full pipeline on klines. It never fails: short series
	// produce an insufficient analysis.
	Analyze(ctx context.Context, klines []*domain.Kline) domain.Analysis
}

// OrderSizer turns a signal into a sized order with its protective levels.
type OrderSizer interface {
	BuildOrder(signal *domain.Signal, entryPrice, quantityStep float64) (*domain.Order, error)
}
