package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divergenceBot/config"
	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
	"divergenceBot/internal/risk"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string

	infoFields map[string]map[string]interface{} // last fields logged per Info message
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
	if len(fields) > 0 {
		if m.infoFields == nil {
			m.infoFields = make(map[string]map[string]interface{})
		}
		m.infoFields[msg] = fields[0]
	}
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockExchange struct {
	mu sync.Mutex

	serverTimeErr  error
	instrument     *domain.Instrument
	instrumentErrs []error // consumed one per call before instrument is returned

	positions   []float64 // consumed one per GetPosition call; the last value repeats
	positionErr error
	side        domain.OrderSide

	klines    []*domain.Kline
	klinesErr error

	closedTrade     *domain.ClosedTrade
	closedTradeErrs []error // consumed one per call

	submitErr error

	positionCalls    int
	klinesCalls      int
	closedTradeCalls int
	instrumentCalls  int
	submitted        []*domain.Order
}

func (m *mockExchange) SetServerTime(ctx context.Context) error {
	return m.serverTimeErr
}

func (m *mockExchange) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instrumentCalls++
	if len(m.instrumentErrs) > 0 {
		err := m.instrumentErrs[0]
		m.instrumentErrs = m.instrumentErrs[1:]
		return nil, err
	}
	return m.instrument, nil
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klinesCalls++
	return m.klines, m.klinesErr
}

func (m *mockExchange) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionCalls++
	if m.positionErr != nil {
		return nil, m.positionErr
	}
	size := 0.0
	if len(m.positions) > 0 {
		size = m.positions[0]
		if len(m.positions) > 1 {
			m.positions = m.positions[1:]
		}
	}
	return &domain.Position{Symbol: symbol, Side: m.side, Size: size, EntryPrice: 2000}, nil
}

func (m *mockExchange) GetLastClosedTrade(ctx context.Context, symbol string) (*domain.ClosedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closedTradeCalls++
	if len(m.closedTradeErrs) > 0 {
		err := m.closedTradeErrs[0]
		m.closedTradeErrs = m.closedTradeErrs[1:]
		return nil, err
	}
	return m.closedTrade, nil
}

func (m *mockExchange) SubmitOrder(ctx context.Context, order *domain.Order) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = append(m.submitted, order)
	return &ports.OrderResponse{OrderID: 42, ClientOrderID: order.ClientOrderID, Status: "FILLED", AvgPrice: order.EntryPrice}, nil
}

func (m *mockExchange) calls() (position, klines, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionCalls, m.klinesCalls, m.closedTradeCalls
}

type mockDetector struct {
	analysis domain.Analysis
	panicMsg string
	calls    int
}

func (m *mockDetector) RequiredDataPoints() int {
	return 10
}

func (m *mockDetector) Analyze(ctx context.Context, klines []*domain.Kline) domain.Analysis {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.analysis
}

type mockJournal struct {
	orders []*domain.Order
	trades []*domain.ClosedTrade
	err    error
}

func (m *mockJournal) RecordOrder(ctx context.Context, order *domain.Order, resp *ports.OrderResponse) error {
	m.orders = append(m.orders, order)
	return m.err
}

func (m *mockJournal) RecordClosedTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	m.trades = append(m.trades, trade)
	return m.err
}

type mockMetrics struct {
	nopMetrics
	mu       sync.Mutex
	failures []string
	rejected []string
	closed   int
}

func (m *mockMetrics) CycleFailed(class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, class)
}

func (m *mockMetrics) OrderRejected(reason string) {
	m.rejected = append(m.rejected, reason)
}

func (m *mockMetrics) TradeClosed(trade *domain.ClosedTrade) {
	m.closed++
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candles(count int, lastClose float64) []*domain.Kline {
	klines := make([]*domain.Kline, count)
	for i := range klines {
		klines[i] = &domain.Kline{
			OpenTime: testStart.Add(time.Duration(i) * time.Minute),
			Open:     lastClose,
			High:     lastClose + 1,
			Low:      lastClose - 1,
			Close:    lastClose,
		}
	}
	return klines
}

func testConfig() *config.Config {
	return &config.Config{
		Symbol:           "ETHUSDT",
		Interval:         "1m",
		CandleLimit:      50,
		CapitalPerTrade:  100,
		RiskRewardRatio:  3,
		PollInterval:     5 * time.Millisecond,
		RequestTimeout:   time.Second,
		TradeHistorySize: 10,
		ActivityLogSize:  20,
	}
}

type fixture struct {
	svc      *TradingService
	logger   *mockLogger
	exchange *mockExchange
	detector *mockDetector
	journal  *mockJournal
	metrics  *mockMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		logger: &mockLogger{},
		exchange: &mockExchange{
			instrument: &domain.Instrument{Symbol: "ETHUSDT", QuantityStep: 0.01, PriceTick: 0.01},
			side:       domain.Buy,
			klines:     candles(30, 2000),
		},
		detector: &mockDetector{analysis: domain.Analysis{Sufficient: true, WindowSize: 5, LastOscillator: 0.25}},
		journal:  &mockJournal{},
		metrics:  &mockMetrics{},
	}
	sizer, err := risk.NewSizer(risk.SizerConfig{RiskRewardRatio: 3, CapitalPerTrade: 100})
	require.NoError(t, err)

	f.svc, err = NewTradingService(testConfig(), f.logger, f.exchange, f.detector, sizer, f.journal, f.metrics)
	require.NoError(t, err)
	f.svc.clientOrderID = func() string { return "test-order-id" }
	return f
}

// loaded returns a fixture whose instrument filters are already in place.
func loaded(t *testing.T) *fixture {
	f := newFixture(t)
	require.NoError(t, f.svc.loadInstrument(context.Background()))
	return f
}

func activityMessages(svc *TradingService) []string {
	var out []string
	for _, e := range svc.Snapshot().Activity {
		out = append(out, e.Message)
	}
	return out
}

func TestNewTradingService(t *testing.T) {
	sizer, err := risk.NewSizer(risk.SizerConfig{RiskRewardRatio: 3, CapitalPerTrade: 100})
	require.NoError(t, err)

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewTradingService(testConfig(), &mockLogger{}, nil, &mockDetector{}, sizer, nil, nil)
		assert.Error(t, err)
	})

	t.Run("candle limit below detector requirement", func(t *testing.T) {
		cfg := testConfig()
		cfg.CandleLimit = 5
		_, err := NewTradingService(cfg, &mockLogger{}, &mockExchange{}, &mockDetector{}, sizer, nil, nil)
		assert.Error(t, err)
	})

	t.Run("optional journal and metrics", func(t *testing.T) {
		svc, err := NewTradingService(testConfig(), &mockLogger{}, &mockExchange{}, &mockDetector{}, sizer, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StateFlat, svc.State())
	})
}

func TestRunCycle_RequiresInstrument(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	assert.Equal(t, ClassProgrammer, ClassifyFailure(err))
}

func TestRunCycle_PositionRoundTrip(t *testing.T) {
	f := loaded(t)
	f.exchange.positions = []float64{0, 0, 5, 5, 0}
	f.exchange.closedTrade = &domain.ClosedTrade{
		RealizedPnL: 12.5,
		ExitPrice:   2030,
		CloseTime:   testStart.Add(time.Hour),
	}
	ctx := context.Background()

	wantStates := []domain.PositionState{
		domain.StateFlat, domain.StateFlat, domain.StateInPosition, domain.StateInPosition, domain.StateFlat,
	}
	for i, want := range wantStates {
		require.NoError(t, f.svc.RunCycle(ctx), "cycle %d", i)
		assert.Equal(t, want, f.svc.State(), "cycle %d", i)
	}

	_, _, closedCalls := f.exchange.calls()
	assert.Equal(t, 1, closedCalls)
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, domain.Buy, f.journal.trades[0].Side)
	assert.Equal(t, "ETHUSDT", f.journal.trades[0].Symbol)
	assert.Equal(t, 1, f.metrics.closed)

	st := f.svc.Snapshot()
	require.Len(t, st.Trades, 1)
	assert.True(t, st.Trades[0].Win)
	assert.Equal(t, 12.5, st.Trades[0].RealizedPnL)
	assert.Contains(t, activityMessages(f.svc), "trade Buy closed. PnL 12.50$")
}

func TestRunCycle_ReconciliationRetried(t *testing.T) {
	f := loaded(t)
	f.exchange.positions = []float64{5, 0}
	f.exchange.closedTrade = &domain.ClosedTrade{RealizedPnL: -4, ExitPrice: 1990}
	f.exchange.closedTradeErrs = []error{ports.ErrExchangeUnavailable}
	ctx := context.Background()

	require.NoError(t, f.svc.RunCycle(ctx))
	assert.Equal(t, domain.StateInPosition, f.svc.State())

	err := f.svc.RunCycle(ctx)
	assert.ErrorIs(t, err, ports.ErrExchangeUnavailable)
	assert.Equal(t, domain.StateInPosition, f.svc.State(), "previous size kept after a failed reconciliation")
	assert.Empty(t, f.journal.trades)

	require.NoError(t, f.svc.RunCycle(ctx))
	assert.Equal(t, domain.StateFlat, f.svc.State())
	require.Len(t, f.journal.trades, 1)
	assert.False(t, f.journal.trades[0].IsWin())

	_, _, closedCalls := f.exchange.calls()
	assert.Equal(t, 2, closedCalls)
}

func TestRunCycle_SameCandleAnalyzedOnce(t *testing.T) {
	f := loaded(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RunCycle(ctx))
	require.NoError(t, f.svc.RunCycle(ctx))
	assert.Equal(t, 1, f.detector.calls)

	f.exchange.klines = candles(31, 2000)
	require.NoError(t, f.svc.RunCycle(ctx))
	assert.Equal(t, 2, f.detector.calls)

	msgs := activityMessages(f.svc)
	assert.Equal(t, []string{"new candle detected", "PPO 0.2500", "no signal", "new candle detected", "PPO 0.2500", "no signal"}, msgs)
}

func TestRunCycle_InPositionSkipsScan(t *testing.T) {
	f := loaded(t)
	f.exchange.positions = []float64{3}

	require.NoError(t, f.svc.RunCycle(context.Background()))
	_, klinesCalls, _ := f.exchange.calls()
	assert.Equal(t, 0, klinesCalls)
	assert.Equal(t, 0, f.detector.calls)

	st := f.svc.Snapshot()
	require.NotNil(t, st.Position)
	assert.Equal(t, 3.0, st.Position.Size)
}

func TestRunCycle_SignalSubmitsOrder(t *testing.T) {
	f := loaded(t)
	f.detector.analysis.Signal = &domain.Signal{Side: domain.Sell, TriggerPrice: 2010}

	require.NoError(t, f.svc.RunCycle(context.Background()))

	require.Len(t, f.exchange.submitted, 1)
	order := f.exchange.submitted[0]
	assert.Equal(t, "ETHUSDT", order.Symbol)
	assert.Equal(t, "test-order-id", order.ClientOrderID)
	assert.Equal(t, domain.Sell, order.Side)
	assert.InDelta(t, 0.05, order.Quantity, 1e-12)
	assert.Equal(t, 2000.0, order.EntryPrice)
	assert.Equal(t, 2010.0, order.StopLoss)
	assert.InDelta(t, 1970.0, order.TakeProfit, 1e-9)

	require.Len(t, f.journal.orders, 1)
	msgs := activityMessages(f.svc)
	assert.Contains(t, msgs, "SIGNAL Sell found")
	assert.Contains(t, msgs, "order placed: Sell 0.05 @ 2000.00")

	placed := f.logger.infoFields["enterPosition: Order placed"]
	require.NotNil(t, placed)
	assert.InDelta(t, 10.0, placed["risk"], 1e-9)
}

func TestRunCycle_InvalidRiskCancelsOrder(t *testing.T) {
	f := loaded(t)
	f.detector.analysis.Signal = &domain.Signal{Side: domain.Sell, TriggerPrice: 1990}

	require.NoError(t, f.svc.RunCycle(context.Background()))

	assert.Empty(t, f.exchange.submitted)
	assert.Empty(t, f.journal.orders)
	assert.Equal(t, []string{"invalid_risk"}, f.metrics.rejected)
	assert.Contains(t, activityMessages(f.svc), "invalid risk, order cancelled")
	assert.Equal(t, domain.StateFlat, f.svc.State())
}

func TestRunCycle_SubmitFailure(t *testing.T) {
	f := loaded(t)
	f.detector.analysis.Signal = &domain.Signal{Side: domain.Buy, TriggerPrice: 1990}
	f.exchange.submitErr = ports.ErrInsufficientFunds

	err := f.svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
	assert.Equal(t, ClassTransient, ClassifyFailure(err))
	assert.Equal(t, []string{"exchange"}, f.metrics.rejected)
}

func TestRunCycle_FetchError(t *testing.T) {
	f := loaded(t)
	f.exchange.klinesErr = ports.ErrConnectionFailed

	err := f.svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
	assert.Contains(t, activityMessages(f.svc), "data fetch error")

	// The failed poll did not consume the candle.
	f.exchange.klinesErr = nil
	require.NoError(t, f.svc.RunCycle(context.Background()))
	assert.Equal(t, 1, f.detector.calls)
}

func TestSuperviseCycle(t *testing.T) {
	t.Run("transient failure is a warning", func(t *testing.T) {
		f := loaded(t)
		f.exchange.positionErr = ports.ErrTimeout

		f.svc.superviseCycle(context.Background())
		assert.Equal(t, []string{"transient"}, f.metrics.failures)
		assert.Contains(t, f.logger.warnMsgs, "Trading cycle failed, retrying next poll")
		assert.Contains(t, f.svc.Snapshot().LastError, ports.ErrTimeout.Error())
	})

	t.Run("panic is recovered", func(t *testing.T) {
		f := loaded(t)
		f.detector.panicMsg = "index out of range"

		assert.NotPanics(t, func() { f.svc.superviseCycle(context.Background()) })
		assert.Equal(t, []string{"programmer"}, f.metrics.failures)
		assert.Contains(t, f.logger.errorMsgs, "Trading cycle failed")

		// The cycle lock was released by the panicking cycle.
		f.detector.panicMsg = ""
		f.exchange.klines = candles(31, 2000)
		assert.NoError(t, f.svc.RunCycle(context.Background()))
	})
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, ClassTransient, ClassifyFailure(ports.ErrRateLimited))
	assert.Equal(t, ClassTransient, ClassifyFailure(errors.New("connection reset")))
	assert.Equal(t, ClassProgrammer, ClassifyFailure(&PanicError{Value: "boom"}))
	assert.Equal(t, ClassProgrammer, ClassifyFailure(ports.ErrConfigurationError))
}

func TestRun(t *testing.T) {
	t.Run("retries initialization and stops on cancel", func(t *testing.T) {
		f := newFixture(t)
		f.exchange.instrumentErrs = []error{ports.ErrExchangeUnavailable, ports.ErrTimeout}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- f.svc.Run(ctx) }()

		require.Eventually(t, func() bool {
			p, _, _ := f.exchange.calls()
			return p >= 3
		}, 2*time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}
		f.exchange.mu.Lock()
		assert.Equal(t, 3, f.exchange.instrumentCalls)
		f.exchange.mu.Unlock()
	})

	t.Run("cancelled before initialization succeeds", func(t *testing.T) {
		f := newFixture(t)
		f.exchange.serverTimeErr = ports.ErrConnectionFailed

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		err := f.svc.Run(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		p, _, _ := f.exchange.calls()
		assert.Equal(t, 0, p)
	})
}

func TestSnapshot(t *testing.T) {
	f := loaded(t)
	f.exchange.positions = []float64{2, 0, 2, 0}
	ctx := context.Background()

	for i, pnl := range []float64{5, -3} {
		f.exchange.closedTrade = &domain.ClosedTrade{RealizedPnL: pnl, ExitPrice: 2000 + float64(i), CloseTime: testStart}
		require.NoError(t, f.svc.RunCycle(ctx))
		f.exchange.klines = candles(31+i, 2000)
		require.NoError(t, f.svc.RunCycle(ctx))
	}

	st := f.svc.Snapshot()
	assert.Equal(t, "ETHUSDT", st.Symbol)
	assert.Equal(t, domain.StateFlat, st.State)
	assert.Nil(t, st.Position)
	require.Len(t, st.Trades, 2)
	assert.Equal(t, -3.0, st.Trades[0].RealizedPnL, "newest first")
	assert.Equal(t, 5.0, st.Trades[1].RealizedPnL)
	assert.Contains(t, st.Trades[0].Line, "LOSS")
	require.NotNil(t, st.LastOscillator)
	assert.Equal(t, 0.25, *st.LastOscillator)
	require.NotNil(t, st.LastCandle)
	assert.NotNil(t, f.svc.StatusReport())
}
