package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"
)

// --- Translation Helpers ---

func translateInstrument(s *futures.Symbol) (*domain.Instrument, error) {
	lot := s.LotSizeFilter()
	if lot == nil {
		return nil, fmt.Errorf("symbol %s has no LOT_SIZE filter", s.Symbol)
	}
	step, err := strconv.ParseFloat(lot.StepSize, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing step size '%s': %w", lot.StepSize, err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("symbol %s has non-positive step size %s", s.Symbol, lot.StepSize)
	}

	instrument := &domain.Instrument{Symbol: s.Symbol, QuantityStep: step}
	if pf := s.PriceFilter(); pf != nil {
		tick, err := strconv.ParseFloat(pf.TickSize, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing tick size '%s': %w", pf.TickSize, err)
		}
		instrument.PriceTick = tick
	}
	return instrument, nil
}

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	avgPrice, _ := strconv.ParseFloat(order.AvgPrice, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Status:        string(order.Status),
		AvgPrice:      avgPrice,
		ExecutedQty:   execQty,
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translatePositionRisk(pos *futures.PositionRisk) (*domain.Position, error) {
	if pos == nil {
		return nil, errors.New("received nil position")
	}
	amt, err := strconv.ParseFloat(pos.PositionAmt, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing position amount '%s': %w", pos.PositionAmt, err)
	}
	entryPrice, _ := strconv.ParseFloat(pos.EntryPrice, 64)
	unProfit, _ := strconv.ParseFloat(pos.UnRealizedProfit, 64)

	side := domain.Buy
	if amt < 0 {
		side = domain.Sell
		amt = -amt
	}
	return &domain.Position{
		Symbol:        pos.Symbol,
		Side:          side,
		Size:          amt,
		EntryPrice:    entryPrice,
		UnrealizedPnL: unProfit,
	}, nil
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol,   // Use passed symbol as it's not in futures.Kline
		Interval:  interval, // Use passed interval
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}

// aggregateClosingFills finds the latest fill with non-zero realized PnL and
// merges every fill of the same order: PnL is summed and the exit price is
// the quantity-weighted average. The side is that of the position closed.
func aggregateClosingFills(trades []*futures.AccountTrade) (*domain.ClosedTrade, error) {
	var latest *futures.AccountTrade
	for _, t := range trades {
		if t == nil {
			continue
		}
		pnl, err := decimal.NewFromString(t.RealizedPnl)
		if err != nil || pnl.IsZero() {
			continue
		}
		if latest == nil || t.Time > latest.Time || (t.Time == latest.Time && t.ID > latest.ID) {
			latest = t
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no fill with realized PnL", ports.ErrNotFound)
	}

	var pnl, qty, notional decimal.Decimal
	closeTime := latest.Time
	for _, t := range trades {
		if t == nil || t.OrderID != latest.OrderID {
			continue
		}
		p, err := decimal.NewFromString(t.RealizedPnl)
		if err != nil {
			return nil, fmt.Errorf("parsing realized pnl '%s': %w", t.RealizedPnl, err)
		}
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("parsing fill price '%s': %w", t.Price, err)
		}
		q, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, fmt.Errorf("parsing fill quantity '%s': %w", t.Quantity, err)
		}
		pnl = pnl.Add(p)
		qty = qty.Add(q)
		notional = notional.Add(price.Mul(q))
		if t.Time > closeTime {
			closeTime = t.Time
		}
	}

	exit := decimal.Zero
	if qty.IsPositive() {
		exit = notional.Div(qty)
	}
	return &domain.ClosedTrade{
		Symbol:      latest.Symbol,
		Side:        domain.OrderSide(latest.Side).Opposite(),
		RealizedPnL: pnl.InexactFloat64(),
		ExitPrice:   exit.InexactFloat64(),
		CloseTime:   time.UnixMilli(closeTime).UTC(),
	}, nil
}

// formatQuantity floors quantity to the step and renders it with the step's precision.
func formatQuantity(quantity, step float64) string {
	q := decimal.NewFromFloat(quantity)
	if step <= 0 {
		return q.String()
	}
	s := decimal.NewFromFloat(step)
	return q.Div(s).Floor().Mul(s).StringFixed(precision(s))
}

// formatPrice rounds price to the nearest tick and renders it with the tick's precision.
func formatPrice(price, tick float64) string {
	p := decimal.NewFromFloat(price)
	if tick <= 0 {
		return p.String()
	}
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Round(0).Mul(t).StringFixed(precision(t))
}

func precision(step decimal.Decimal) int32 {
	if exp := step.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}
