package app

import (
	"context"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
)

type nopJournal struct{}

func (nopJournal) RecordOrder(context.Context, *domain.Order, *ports.OrderResponse) error { return nil }
func (nopJournal) RecordClosedTrade(context.Context, *domain.ClosedTrade) error           { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveCycle(float64)            {}
func (nopMetrics) CycleFailed(string)              {}
func (nopMetrics) SetPositionSize(float64)         {}
func (nopMetrics) SetOscillator(float64)           {}
func (nopMetrics) SignalDetected(domain.OrderSide) {}
func (nopMetrics) OrderSubmitted(domain.OrderSide) {}
func (nopMetrics) OrderRejected(string)            {}
func (nopMetrics) TradeClosed(*domain.ClosedTrade) {}
