package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divergenceBot/internal/adapters/logger"
)

func setRequired(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "1m", cfg.Interval)
	assert.Equal(t, 200, cfg.CandleLimit)
	assert.Equal(t, 100.0, cfg.CapitalPerTrade)
	assert.Equal(t, 3.0, cfg.RiskRewardRatio)
	assert.Equal(t, 12, cfg.PPOFast)
	assert.Equal(t, 26, cfg.PPOSlow)
	assert.Equal(t, 2, cfg.PPOSmooth)
	assert.Equal(t, 5, cfg.PeakDistance)
	assert.Equal(t, 20*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.TradeHistorySize)
	assert.Equal(t, 5, cfg.ActivityLogSize)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "./data/journal.db", cfg.JournalPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("IS_TESTNET", "false")
	t.Setenv("SYMBOL", "btcusdt")
	t.Setenv("INTERVAL", "5m")
	t.Setenv("CAPITAL_PER_TRADE", "250.5")
	t.Setenv("RR_RATIO", "2")
	t.Setenv("PEAK_DISTANCE", "3")
	t.Setenv("POLL_INTERVAL_SECONDS", "30")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.IsTestnet)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "5m", cfg.Interval)
	assert.Equal(t, 250.5, cfg.CapitalPerTrade)
	assert.Equal(t, 2.0, cfg.RiskRewardRatio)
	assert.Equal(t, 3, cfg.PeakDistance)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, logger.FormatJSON, cfg.LogFormat)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "missing api key", env: map[string]string{"BINANCE_API_KEY": ""}, wantMsg: "APIKey must be set"},
		{name: "unparsable capital", env: map[string]string{"CAPITAL_PER_TRADE": "lots"}, wantMsg: "CAPITAL_PER_TRADE"},
		{name: "zero ratio", env: map[string]string{"RR_RATIO": "0"}, wantMsg: "RiskRewardRatio must be greater than 0"},
		{name: "fast not below slow", env: map[string]string{"PPO_FAST": "26"}, wantMsg: "PPO_FAST must be less than PPO_SLOW"},
		{name: "unknown interval", env: map[string]string{"INTERVAL": "7m"}, wantMsg: "Interval must be one of"},
		{name: "candle limit too small", env: map[string]string{"CANDLE_LIMIT": "20"}, wantMsg: "CANDLE_LIMIT (20)"},
		{name: "poll interval too short", env: map[string]string{"POLL_INTERVAL_SECONDS": "0.5"}, wantMsg: "PollInterval must be at least 1s"},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}, wantMsg: "LogFormat must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := FromEnv()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
