package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"divergenceBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string `validate:"required"`
	SecretKey string `validate:"required"`
	IsTestnet bool   `default:"true"` // Default to testnet for safety

	// Market
	Symbol      string `default:"ETHUSDT" validate:"required,uppercase"`
	Interval    string `default:"1m" validate:"required,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	CandleLimit int    `default:"200" validate:"gte=10,lte=1500"`

	// Order sizing
	CapitalPerTrade float64 `default:"100" validate:"gt=0"` // quote currency per trade
	RiskRewardRatio float64 `default:"3" validate:"gt=0"`

	// Signal parameters
	PPOFast      int `default:"12" validate:"gte=1"`
	PPOSlow      int `default:"26" validate:"gte=2"`
	PPOSmooth    int `default:"2" validate:"gte=1"`
	PeakDistance int `default:"5" validate:"gte=1"`

	// Loop
	PollInterval   time.Duration `default:"20s" validate:"gte=1s"`
	RequestTimeout time.Duration `default:"10s" validate:"gte=1s"`

	// Status report
	TradeHistorySize int    `default:"10" validate:"gte=1"`
	ActivityLogSize  int    `default:"5" validate:"gte=1"`
	MetricsAddr      string `default:":9090"` // empty disables the HTTP server

	// Journal
	JournalPath string `default:"./data/journal.db"` // empty disables the journal

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat logger.Format   `default:"console" validate:"oneof=console json"`
}

var structValidator = validator.New()

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply configuration defaults: %w", err)
	}

	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", cfg.APIKey)
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", cfg.SecretKey)
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", cfg.IsTestnet)

	// Market
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", cfg.Symbol))
	cfg.Interval = getEnv("INTERVAL", cfg.Interval)
	if cfg.CandleLimit, err = getEnvAsIntRequired("CANDLE_LIMIT", cfg.CandleLimit); err != nil {
		errs = append(errs, err.Error())
	}

	// Order sizing
	if cfg.CapitalPerTrade, err = getEnvAsFloatRequired("CAPITAL_PER_TRADE", cfg.CapitalPerTrade); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.RiskRewardRatio, err = getEnvAsFloatRequired("RR_RATIO", cfg.RiskRewardRatio); err != nil {
		errs = append(errs, err.Error())
	}

	// Signal parameters
	if cfg.PPOFast, err = getEnvAsIntRequired("PPO_FAST", cfg.PPOFast); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.PPOSlow, err = getEnvAsIntRequired("PPO_SLOW", cfg.PPOSlow); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.PPOSmooth, err = getEnvAsIntRequired("PPO_SMOOTH", cfg.PPOSmooth); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.PeakDistance, err = getEnvAsIntRequired("PEAK_DISTANCE", cfg.PeakDistance); err != nil {
		errs = append(errs, err.Error())
	}

	// Loop
	if cfg.PollInterval, err = getEnvAsSecondsRequired("POLL_INTERVAL_SECONDS", cfg.PollInterval); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.RequestTimeout, err = getEnvAsSecondsRequired("REQUEST_TIMEOUT_SECONDS", cfg.RequestTimeout); err != nil {
		errs = append(errs, err.Error())
	}

	// Status report
	cfg.TradeHistorySize = getEnvAsInt("TRADE_HISTORY_SIZE", cfg.TradeHistorySize)
	cfg.ActivityLogSize = getEnvAsInt("ACTIVITY_LOG_SIZE", cfg.ActivityLogSize)
	cfg.MetricsAddr = getEnvAllowEmpty("METRICS_ADDR", cfg.MetricsAddr)

	// Journal
	cfg.JournalPath = getEnvAllowEmpty("JOURNAL_PATH", cfg.JournalPath)

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO")) // Use the parser from the logger package
	cfg.LogFormat = logger.Format(strings.ToLower(getEnv("LOG_FORMAT", string(cfg.LogFormat))))

	if len(errs) == 0 {
		errs = append(errs, cfg.validate()...)
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// validate runs the struct tag rules followed by the cross-field checks.
func (c *Config) validate() []string {
	var errs []string

	if err := structValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fieldMessage(fe))
		}
	}

	if c.PPOFast >= c.PPOSlow {
		errs = append(errs, "PPO_FAST must be less than PPO_SLOW")
	}
	if warmUp := (c.PPOSlow - 1) + (c.PPOSmooth - 1); c.CandleLimit < warmUp+2*c.PeakDistance {
		errs = append(errs, fmt.Sprintf("CANDLE_LIMIT (%d) must cover the oscillator warm-up plus two peak distances (%d)",
			c.CandleLimit, warmUp+2*c.PeakDistance))
	}

	return errs
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be set", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAllowEmpty distinguishes an unset variable from one explicitly set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsSecondsRequired(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	seconds, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds value '%s' for key %s: %w", valueStr, key, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
