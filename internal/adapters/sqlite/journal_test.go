package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var _ ports.TradeJournal = (*Journal)(nil)

// setupTestDB creates a journal in a temporary directory
func setupTestDB(t *testing.T) *Journal {
	t.Helper()

	j, err := NewJournal(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "journal.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestNewJournal_RequiresLogger(t *testing.T) {
	_, err := NewJournal(Config{DBPath: filepath.Join(t.TempDir(), "j.db")})
	assert.Error(t, err)
}

func TestJournal_RecordOrder(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()

	order := &domain.Order{
		ClientOrderID: "abc",
		Symbol:        "ETHUSDT",
		Side:          domain.Sell,
		Quantity:      0.05,
		EntryPrice:    2000,
		StopLoss:      2010,
		TakeProfit:    1970,
	}
	resp := &ports.OrderResponse{OrderID: 1, Status: "FILLED", AvgPrice: 1999.5, StopOrderID: 2, TargetOrderID: 3}
	require.NoError(t, j.RecordOrder(ctx, order, resp))
	require.NoError(t, j.RecordOrder(ctx, order, nil))

	var count int
	var side string
	var stop float64
	require.NoError(t, j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Equal(t, 2, count)
	require.NoError(t, j.db.QueryRowContext(ctx, `SELECT side, stop_loss FROM orders WHERE order_id = 1`).Scan(&side, &stop))
	assert.Equal(t, "SELL", side)
	assert.Equal(t, 2010.0, stop)
}

func TestJournal_ClosedTrades(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	trades := []*domain.ClosedTrade{
		{Symbol: "ETHUSDT", Side: domain.Buy, RealizedPnL: 12.5, ExitPrice: 2030, CloseTime: base},
		{Symbol: "ETHUSDT", Side: domain.Sell, RealizedPnL: -4, ExitPrice: 2010, CloseTime: base.Add(time.Hour)},
		{Symbol: "BTCUSDT", Side: domain.Buy, RealizedPnL: 100, ExitPrice: 60000, CloseTime: base.Add(2 * time.Hour)},
		{Symbol: "ETHUSDT", Side: domain.Buy, RealizedPnL: 3, ExitPrice: 2050, CloseTime: base.Add(3 * time.Hour)},
	}
	for _, tr := range trades {
		require.NoError(t, j.RecordClosedTrade(ctx, tr))
	}

	recent, err := j.RecentTrades(ctx, "ETHUSDT", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3.0, recent[0].RealizedPnL, "newest first")
	assert.Equal(t, domain.Sell, recent[1].Side)
	assert.True(t, recent[1].CloseTime.Equal(base.Add(time.Hour)))

	summary, err := j.Summarize(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, Summary{Trades: 3, Wins: 2, TotalPnL: 11.5}, summary)

	empty, err := j.Summarize(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, Summary{}, empty)
}

func TestJournal_ClosedDatabase(t *testing.T) {
	j := setupTestDB(t)
	require.NoError(t, j.Close())

	err := j.RecordClosedTrade(context.Background(), &domain.ClosedTrade{Symbol: "ETHUSDT"})
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
}
