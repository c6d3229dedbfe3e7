package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
)

// Business rejections. The signal is dropped and the bot stays flat.
var (
	// ErrInvalidRisk means the trigger price is on the wrong side of the entry.
	ErrInvalidRisk = errors.New("invalid risk: stop is not beyond entry")
	// ErrQuantityBelowStep means the capital per trade buys less than one quantity step.
	ErrQuantityBelowStep = errors.New("quantity rounds down to zero at the instrument step")
)

// SizerConfig holds the sizing parameters
type SizerConfig struct {
	RiskRewardRatio float64
	CapitalPerTrade float64 // quote currency committed per trade
}

// Sizer turns a signal into an order with a stop-loss, a take-profit and a
// step-aligned quantity.
type Sizer struct {
	config SizerConfig
}

// NewSizer creates a new sizer instance
func NewSizer(config SizerConfig) (*Sizer, error) {
	if config.RiskRewardRatio <= 0 {
		return nil, fmt.Errorf("%w: risk/reward ratio must be positive, got %f",
			ports.ErrConfigurationError, config.RiskRewardRatio)
	}
	if config.CapitalPerTrade <= 0 {
		return nil, fmt.Errorf("%w: capital per trade must be positive, got %f",
			ports.ErrConfigurationError, config.CapitalPerTrade)
	}
	return &Sizer{config: config}, nil
}

// BuildOrder sizes an entry at entryPrice for signal. The stop-loss is the
// signal's trigger price and the take-profit sits RiskRewardRatio times the
// risk away on the other side. The returned order has no symbol or client id.
func (s *Sizer) BuildOrder(signal *domain.Signal, entryPrice, quantityStep float64) (*domain.Order, error) {
	if signal == nil {
		return nil, fmt.Errorf("%w: nil signal", ports.ErrConfigurationError)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive, got %f", ports.ErrConfigurationError, entryPrice)
	}
	if quantityStep <= 0 {
		return nil, fmt.Errorf("%w: quantity step must be positive, got %f", ports.ErrConfigurationError, quantityStep)
	}

	entry := decimal.NewFromFloat(entryPrice)
	stop := decimal.NewFromFloat(signal.TriggerPrice)
	ratio := decimal.NewFromFloat(s.config.RiskRewardRatio)

	var risk, takeProfit decimal.Decimal
	switch signal.Side {
	case domain.Buy:
		risk = entry.Sub(stop)
		takeProfit = entry.Add(risk.Mul(ratio))
	case domain.Sell:
		risk = stop.Sub(entry)
		takeProfit = entry.Sub(risk.Mul(ratio))
	default:
		return nil, fmt.Errorf("%w: unknown side %q", ports.ErrConfigurationError, signal.Side)
	}
	if !risk.IsPositive() {
		return nil, fmt.Errorf("%w: %s entry %s, stop %s", ErrInvalidRisk, signal.Side, entry, stop)
	}

	step := decimal.NewFromFloat(quantityStep)
	quantity := decimal.NewFromFloat(s.config.CapitalPerTrade).Div(entry).Div(step).Floor().Mul(step)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: capital %f at entry %s, step %s",
			ErrQuantityBelowStep, s.config.CapitalPerTrade, entry, step)
	}

	return &domain.Order{
		Side:       signal.Side,
		Quantity:   quantity.InexactFloat64(),
		EntryPrice: entryPrice,
		StopLoss:   signal.TriggerPrice,
		TakeProfit: takeProfit.InexactFloat64(),
	}, nil
}
