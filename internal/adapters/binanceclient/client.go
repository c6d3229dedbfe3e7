package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// How many recent fills are scanned for the last realized trade.
	accountTradeLookback = 50
)

// Client implements the ports.ExchangeClient interface using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger

	mu          sync.Mutex
	instruments map[string]*domain.Instrument
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // overrides the testnet/production URL when set
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"testnet": cfg.UseTestnet,
	})

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		instruments:   make(map[string]*domain.Instrument),
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1001, -1007: // Disconnected / backend timeout
			mappedErr = ports.ErrExchangeUnavailable
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrSymbolNotFound
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010, -2021, -2022: // New order rejected / would immediately trigger / reduce-only rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		case -2019, -3005, -4047: // Margin or balance is insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -4003, -4014, -4164: // Quantity, price or notional outside permissible range
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrSymbolNotFound) {
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// SetServerTime synchronizes the client's time with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	_, err := c.futuresClient.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetInstrument retrieves the LOT_SIZE and PRICE_FILTER filters of symbol.
// The result is cached for order formatting.
func (c *Client) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	op := "GetInstrument"
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		instrument, err := translateInstrument(s)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}

		c.mu.Lock()
		c.instruments[symbol] = instrument
		c.mu.Unlock()

		c.logger.Debug(ctx, op+" successful", map[string]interface{}{
			"symbol": symbol, "stepSize": instrument.QuantityStep, "tickSize": instrument.PriceTick,
		})
		return instrument, nil
	}

	return nil, c.handleError(ctx, fmt.Errorf("%w: %s", ports.ErrSymbolNotFound, symbol), op)
}

// GetKlines retrieves the most recent klines for the given symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	binanceKlines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateBinanceKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		domainKlines = append(domainKlines, dk)
	}
	return domainKlines, nil
}

// GetPosition retrieves the current position for symbol. A flat account
// yields a zero-size position.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	op := "GetPosition"
	positions, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	for _, p := range positions {
		pos, err := translatePositionRisk(p)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if pos.IsOpen() {
			return pos, nil
		}
	}

	c.logger.Debug(ctx, op+": No open position for symbol", map[string]interface{}{"symbol": symbol})
	return &domain.Position{Symbol: symbol}, nil
}

// GetLastClosedTrade returns the most recent fill that realized PnL, merged
// with the other fills of the same order.
func (c *Client) GetLastClosedTrade(ctx context.Context, symbol string) (*domain.ClosedTrade, error) {
	op := "GetLastClosedTrade"
	trades, err := c.futuresClient.NewListAccountTradeService().
		Symbol(symbol).
		Limit(accountTradeLookback).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	closed, err := aggregateClosingFills(trades)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	closed.Symbol = symbol

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "side": closed.Side, "realizedPnL": closed.RealizedPnL, "exitPrice": closed.ExitPrice,
	})
	return closed, nil
}

func (c *Client) cachedInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	c.mu.Lock()
	instrument, ok := c.instruments[symbol]
	c.mu.Unlock()
	if ok {
		return instrument, nil
	}
	return c.GetInstrument(ctx, symbol)
}
