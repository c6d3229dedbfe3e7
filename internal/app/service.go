package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"divergenceBot/config"
	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
	"divergenceBot/internal/risk"
	"divergenceBot/internal/telemetry"
)

// TradingService runs the position state machine for one instrument: it
// reconciles closed trades, looks for divergences while flat and submits
// the resulting orders.
type TradingService struct {
	cfg      *config.Config
	logger   ports.Logger
	exchange ports.ExchangeClient
	detector ports.SignalDetector
	sizer    ports.OrderSizer
	journal  ports.TradeJournal
	metrics  ports.Metrics

	now           func() time.Time
	clientOrderID func() string

	cycleMu sync.Mutex // serializes RunCycle

	// State fields
	mu               sync.Mutex // Protects access to state fields below
	instrument       *domain.Instrument
	position         domain.Position
	lastPositionSize float64
	lastCandleTime   time.Time
	lastAnalysis     *domain.Analysis
	lastCycleAt      time.Time
	lastCycleErr     error
	startTime        time.Time
	tradeHistory     *telemetry.Ring[domain.ClosedTrade]
	activityLog      *telemetry.Ring[ActivityEntry]
}

// NewTradingService creates a new application service instance.
// journal and metrics are optional.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	detector ports.SignalDetector,
	sizer ports.OrderSizer,
	journal ports.TradeJournal,
	metrics ports.Metrics,
) (*TradingService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || exchange == nil || detector == nil || sizer == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}

	// Validate config values needed by service
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("configuration Symbol must be set")
	}
	if cfg.CandleLimit < detector.RequiredDataPoints() {
		return nil, fmt.Errorf("configuration CandleLimit (%d) is below the detector requirement (%d)",
			cfg.CandleLimit, detector.RequiredDataPoints())
	}
	if cfg.PollInterval <= 0 || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("configuration PollInterval and RequestTimeout must be positive")
	}
	if cfg.TradeHistorySize < 1 || cfg.ActivityLogSize < 1 {
		return nil, fmt.Errorf("configuration TradeHistorySize and ActivityLogSize must be positive")
	}

	if journal == nil {
		journal = nopJournal{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &TradingService{
		cfg:           cfg,
		logger:        logger,
		exchange:      exchange,
		detector:      detector,
		sizer:         sizer,
		journal:       journal,
		metrics:       metrics,
		now:           time.Now,
		clientOrderID: uuid.NewString,
		startTime:     time.Now(),
		tradeHistory:  telemetry.NewRing[domain.ClosedTrade](cfg.TradeHistorySize),
		activityLog:   telemetry.NewRing[ActivityEntry](cfg.ActivityLogSize),
	}, nil
}

// State returns the current state of the position state machine.
func (s *TradingService) State() domain.PositionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *TradingService) stateLocked() domain.PositionState {
	if s.lastPositionSize > 0 {
		return domain.StateInPosition
	}
	return domain.StateFlat
}

// RunCycle performs one poll of the state machine:
//  1. fetch the position and reconcile a trade that closed since the last poll;
//  2. stop if a position is open;
//  3. otherwise fetch candles and analyze them once per new candle;
//  4. size and submit an order for a detected signal.
//
// A failed reconciliation leaves the previous size in place so the next
// cycle retries it.
func (s *TradingService) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	instrument := s.instrument
	prevSize := s.lastPositionSize
	prevSide := s.position.Side
	s.mu.Unlock()

	if instrument == nil {
		return fmt.Errorf("%w: instrument filters not loaded", ports.ErrConfigurationError)
	}

	pos, err := s.fetchPosition(ctx)
	if err != nil {
		s.recordActivity("data fetch error")
		return fmt.Errorf("fetch position: %w", err)
	}
	size := math.Abs(pos.Size)

	if prevSize > 0 && size == 0 {
		if err := s.reconcileClosedTrade(ctx, prevSide); err != nil {
			s.recordActivity("data fetch error")
			return fmt.Errorf("reconcile closed trade: %w", err)
		}
	}

	s.mu.Lock()
	if prevSize == 0 && size > 0 {
		s.logger.Info(ctx, "Position opened", map[string]interface{}{
			"side": pos.Side, "size": size, "entryPrice": pos.EntryPrice,
		})
	}
	s.position = *pos
	s.position.Size = size
	s.lastPositionSize = size
	s.mu.Unlock()
	s.metrics.SetPositionSize(size)

	if size > 0 {
		s.logger.Debug(ctx, "Position open, skipping signal scan", map[string]interface{}{
			"side": pos.Side, "size": size, "unrealizedPnL": pos.UnrealizedPnL,
		})
		return nil
	}

	return s.scanForEntry(ctx, instrument)
}

// reconcileClosedTrade records the trade that took the position back to flat.
func (s *TradingService) reconcileClosedTrade(ctx context.Context, side domain.OrderSide) error {
	callCtx, cancel := s.requestContext(ctx)
	defer cancel()

	trade, err := s.exchange.GetLastClosedTrade(callCtx, s.cfg.Symbol)
	if err != nil {
		return err
	}
	if trade == nil {
		return fmt.Errorf("%w: no closed trade reported for %s", ports.ErrNotFound, s.cfg.Symbol)
	}
	if trade.Side == "" {
		trade.Side = side
	}
	if trade.Symbol == "" {
		trade.Symbol = s.cfg.Symbol
	}

	s.mu.Lock()
	s.tradeHistory.Push(*trade)
	s.mu.Unlock()

	s.recordActivity(fmt.Sprintf("trade %s closed. PnL %.2f$", trade.Side.Label(), trade.RealizedPnL))
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{
		"side":        trade.Side,
		"realizedPnL": trade.RealizedPnL,
		"exitPrice":   trade.ExitPrice,
		"closeTime":   trade.CloseTime,
	})
	s.metrics.TradeClosed(trade)

	if err := s.journal.RecordClosedTrade(ctx, trade); err != nil {
		s.logger.Warn(ctx, "Failed to journal closed trade", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// scanForEntry analyzes the latest candles and submits an order on a signal.
func (s *TradingService) scanForEntry(ctx context.Context, instrument *domain.Instrument) error {
	klines, err := s.fetchKlines(ctx)
	if err != nil {
		s.recordActivity("data fetch error")
		return fmt.Errorf("fetch klines: %w", err)
	}
	if len(klines) == 0 {
		s.recordActivity("data fetch error")
		return fmt.Errorf("fetch klines: %w: empty series", ports.ErrNotFound)
	}

	latest := klines[len(klines)-1]

	s.mu.Lock()
	seen := latest.OpenTime.Equal(s.lastCandleTime)
	if !seen {
		s.lastCandleTime = latest.OpenTime
	}
	s.mu.Unlock()
	if seen {
		s.logger.Debug(ctx, "Candle already analyzed", map[string]interface{}{"openTime": latest.OpenTime})
		return nil
	}

	s.recordActivity("new candle detected")
	analysis := s.detector.Analyze(ctx, klines)

	s.mu.Lock()
	s.lastAnalysis = &analysis
	s.mu.Unlock()

	if analysis.WindowSize > 0 {
		s.metrics.SetOscillator(analysis.LastOscillator)
		s.recordActivity(fmt.Sprintf("PPO %.4f", analysis.LastOscillator))
	}
	s.logger.Info(ctx, "New candle analyzed", map[string]interface{}{
		"openTime":   latest.OpenTime,
		"close":      latest.Close,
		"oscillator": analysis.LastOscillator,
		"sufficient": analysis.Sufficient,
	})

	if analysis.Signal == nil {
		s.recordActivity("no signal")
		return nil
	}

	signal := analysis.Signal
	s.metrics.SignalDetected(signal.Side)
	s.recordActivity(fmt.Sprintf("SIGNAL %s found", signal.Side.Label()))

	return s.enterPosition(ctx, signal, latest.Close, instrument)
}

// enterPosition sizes and submits an order for signal at entryPrice.
func (s *TradingService) enterPosition(ctx context.Context, signal *domain.Signal, entryPrice float64, instrument *domain.Instrument) error {
	op := "enterPosition"

	order, err := s.sizer.BuildOrder(signal, entryPrice, instrument.QuantityStep)
	switch {
	case errors.Is(err, risk.ErrInvalidRisk):
		s.logger.Warn(ctx, op+": invalid risk, order cancelled", map[string]interface{}{
			"side": signal.Side, "entryPrice": entryPrice, "triggerPrice": signal.TriggerPrice,
		})
		s.recordActivity("invalid risk, order cancelled")
		s.metrics.OrderRejected("invalid_risk")
		return nil
	case errors.Is(err, risk.ErrQuantityBelowStep):
		s.logger.Warn(ctx, op+": quantity below step, order cancelled", map[string]interface{}{
			"capital": s.cfg.CapitalPerTrade, "entryPrice": entryPrice, "step": instrument.QuantityStep,
		})
		s.recordActivity("quantity below step, order cancelled")
		s.metrics.OrderRejected("quantity_below_step")
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}

	order.Symbol = s.cfg.Symbol
	order.ClientOrderID = s.clientOrderID()

	fields := map[string]interface{}{
		"clientOrderID": order.ClientOrderID,
		"side":          order.Side,
		"quantity":      order.Quantity,
		"entryPrice":    order.EntryPrice,
		"stopLoss":      order.StopLoss,
		"takeProfit":    order.TakeProfit,
		"risk":          order.Risk(),
	}
	s.logger.Info(ctx, op+": Submitting order", fields)

	callCtx, cancel := s.requestContext(ctx)
	defer cancel()
	resp, err := s.exchange.SubmitOrder(callCtx, order)
	if err != nil {
		s.recordActivity("order failed")
		s.metrics.OrderRejected("exchange")
		return fmt.Errorf("%s: submit order: %w", op, err)
	}

	fields["orderID"] = resp.OrderID
	fields["avgPrice"] = resp.AvgPrice
	s.logger.Info(ctx, op+": Order placed", fields)
	s.recordActivity(fmt.Sprintf("order placed: %s %g @ %.2f", order.Side.Label(), order.Quantity, order.EntryPrice))
	s.metrics.OrderSubmitted(order.Side)

	if err := s.journal.RecordOrder(ctx, order, resp); err != nil {
		s.logger.Warn(ctx, op+": Failed to journal order", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (s *TradingService) fetchPosition(ctx context.Context) (*domain.Position, error) {
	callCtx, cancel := s.requestContext(ctx)
	defer cancel()

	pos, err := s.exchange.GetPosition(callCtx, s.cfg.Symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return &domain.Position{Symbol: s.cfg.Symbol}, nil
	}
	return pos, nil
}

func (s *TradingService) fetchKlines(ctx context.Context) ([]*domain.Kline, error) {
	callCtx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.exchange.GetKlines(callCtx, s.cfg.Symbol, s.cfg.Interval, s.cfg.CandleLimit)
}

// requestContext bounds a single exchange call.
func (s *TradingService) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}
