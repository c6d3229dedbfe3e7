package binanceclient

import (
	"context"
	"fmt"

	"divergenceBot/internal/domain"
	"divergenceBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
)

// SubmitOrder places the market entry, then a STOP_MARKET and a
// TAKE_PROFIT_MARKET that close the whole position. If a protective order
// cannot be placed the entry is flattened with a reduce-only market order.
func (c *Client) SubmitOrder(ctx context.Context, order *domain.Order) (*ports.OrderResponse, error) {
	op := "SubmitOrder"
	if order == nil {
		return nil, fmt.Errorf("%s: %w: nil order", op, ports.ErrInvalidRequest)
	}

	instrument, err := c.cachedInstrument(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}
	quantityStr := formatQuantity(order.Quantity, instrument.QuantityStep)
	stopStr := formatPrice(order.StopLoss, instrument.PriceTick)
	targetStr := formatPrice(order.TakeProfit, instrument.PriceTick)

	c.logger.Info(ctx, op+": Placing entry market order", map[string]interface{}{
		"symbol":        order.Symbol,
		"side":          order.Side,
		"quantity":      quantityStr,
		"stopLoss":      stopStr,
		"takeProfit":    targetStr,
		"clientOrderID": order.ClientOrderID,
	})

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(quantityStr).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if order.ClientOrderID != "" {
		svc = svc.NewClientOrderID(order.ClientOrderID)
	}
	entry, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op+" entry")
	}
	resp := translateOrderResponse(entry)

	closeSide := futures.SideType(order.Side.Opposite())

	stop, err := c.placeProtectiveOrder(ctx, order.Symbol, closeSide, futures.OrderTypeStopMarket, stopStr)
	if err != nil {
		c.logger.Warn(ctx, op+": Attempting emergency close due to SL placement failure...")
		c.emergencyClose(ctx, order.Symbol, closeSide, quantityStr)
		return nil, fmt.Errorf("stop loss order failed after entry: %w (emergency close attempted)", err)
	}
	resp.StopOrderID = stop.OrderID

	target, err := c.placeProtectiveOrder(ctx, order.Symbol, closeSide, futures.OrderTypeTakeProfitMarket, targetStr)
	if err != nil {
		c.logger.Warn(ctx, op+": Attempting emergency close due to TP placement failure...")
		c.cancelOrderWarn(ctx, order.Symbol, stop.OrderID, "SL")
		c.emergencyClose(ctx, order.Symbol, closeSide, quantityStr)
		return nil, fmt.Errorf("take profit order failed after entry: %w (emergency close attempted)", err)
	}
	resp.TargetOrderID = target.OrderID

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"orderID":       resp.OrderID,
		"avgPrice":      resp.AvgPrice,
		"stopOrderID":   resp.StopOrderID,
		"targetOrderID": resp.TargetOrderID,
	})
	return resp, nil
}

func (c *Client) placeProtectiveOrder(ctx context.Context, symbol string, side futures.SideType, orderType futures.OrderType, stopPrice string) (*futures.CreateOrderResponse, error) {
	op := "Place" + string(orderType)
	res, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(orderType).
		StopPrice(stopPrice).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "side": side, "stopPrice": stopPrice, "orderID": res.OrderID})
	return res, nil
}

// emergencyClose flattens the exposure opened by a failed submission.
func (c *Client) emergencyClose(ctx context.Context, symbol string, side futures.SideType, quantity string) {
	op := "emergencyClose"
	c.logger.Warn(ctx, op+": Placing emergency closing order", map[string]interface{}{"side": side, "quantity": quantity})
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(quantity).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		c.logger.Error(ctx, c.handleError(ctx, err, op), op+": EMERGENCY CLOSE FAILED")
		return
	}
	c.logger.Info(ctx, op+": Emergency close order placed successfully")
}

// cancelOrderWarn cancels an order and only logs a failure.
func (c *Client) cancelOrderWarn(ctx context.Context, symbol string, orderID int64, orderType string) {
	op := "cancelOrderWarn"
	_, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		// Already filled or cancelled orders end up here too; handleError logs the code.
		_ = c.handleError(ctx, err, op)
		c.logger.Warn(ctx, op+": Failed to cancel order", map[string]interface{}{"orderID": orderID, "type": orderType})
		return
	}
	c.logger.Info(ctx, op+": Order cancelled successfully", map[string]interface{}{"orderID": orderID, "type": orderType})
}
