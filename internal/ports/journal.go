package ports

import (
	"context"

	"divergenceBot/internal/domain"
)

// TradeJournal is an append-only record of what the bot did. It is written
// for offline inspection and never read back to rebuild bot state.
type TradeJournal interface {
	// RecordOrder stores a submitted order and the exchange's answer.
	RecordOrder(ctx context.Context, order *domain.Order, resp *OrderResponse) error
	// RecordClosedTrade stores a reconciled closed trade.
	RecordClosedTrade(ctx context.Context, trade *domain.ClosedTrade) error
}

// Metrics receives operational measurements from the trading service.
type Metrics interface {
	ObserveCycle(seconds float64)
	CycleFailed(class string)
	SetPositionSize(size float64)
	SetOscillator(value float64)
	SignalDetected(side domain.OrderSide)
	OrderSubmitted(side domain.OrderSide)
	OrderRejected(reason string)
	TradeClosed(trade *domain.ClosedTrade)
}
