package bitmex

import (
	"context"
	"fmt"
	"time"

	"bitmexrest/pkg/core"
)

// Instrument lists instruments, optionally narrowed to symbol (a contract or a
// series such as "XBT:perpetual").
func (c *Client) Instrument(ctx context.Context, symbol string, opts ...QueryOption) ([]core.Instrument, error) {
	req, err := c.protocol.buildInstrumentRequest(symbol, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var instruments []core.Instrument
	if err := c.Do(ctx, req, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// ActiveInstruments lists all instruments that are open for trading.
func (c *Client) ActiveInstruments(ctx context.Context) ([]core.Instrument, error) {
	var instruments []core.Instrument
	if err := c.Do(ctx, c.protocol.buildActiveInstrumentsRequest(), &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// Executions lists the account's raw execution reports. An empty symbol
// returns executions across all contracts.
func (c *Client) Executions(ctx context.Context, symbol string, opts ...QueryOption) ([]core.Execution, error) {
	req, err := c.protocol.buildExecutionsRequest(symbol, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var executions []core.Execution
	if err := c.Do(ctx, req, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

// TradeHistory lists the account's fills and funding events.
func (c *Client) TradeHistory(ctx context.Context, symbol string, opts ...QueryOption) ([]core.Execution, error) {
	req, err := c.protocol.buildTradeHistoryRequest(symbol, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var executions []core.Execution
	if err := c.Do(ctx, req, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

// Funding lists funding-rate settlements.
func (c *Client) Funding(ctx context.Context, symbol string, opts ...QueryOption) ([]core.Funding, error) {
	req, err := c.protocol.buildFundingRequest(symbol, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var funding []core.Funding
	if err := c.Do(ctx, req, &funding); err != nil {
		return nil, err
	}
	return funding, nil
}

// OpenOrders lists resting orders, optionally for a single symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	var orders []core.Order
	if err := c.Do(ctx, c.protocol.buildOpenOrdersRequest(symbol), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PlaceOrder submits a single order. A client order ID is generated unless
// order.ClOrdID is set.
func (c *Client) PlaceOrder(ctx context.Context, order core.OrderRequest, opts ...OrderOption) (*core.Order, error) {
	req, err := c.protocol.buildPlaceOrderRequest(order, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var placed core.Order
	if err := c.Do(ctx, req, &placed); err != nil {
		return nil, err
	}
	return &placed, nil
}

// PlaceOrders submits several orders in one request.
func (c *Client) PlaceOrders(ctx context.Context, orders []core.OrderRequest, opts ...OrderOption) ([]core.Order, error) {
	req, err := c.protocol.buildPlaceOrdersRequest(orders, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var placed []core.Order
	if err := c.Do(ctx, req, &placed); err != nil {
		return nil, err
	}
	return placed, nil
}

// AmendOrders modifies several resting orders in one request.
func (c *Client) AmendOrders(ctx context.Context, amends []core.AmendRequest) ([]core.Order, error) {
	req, err := c.protocol.buildAmendOrdersRequest(amends)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var amended []core.Order
	if err := c.Do(ctx, req, &amended); err != nil {
		return nil, err
	}
	return amended, nil
}

// CancelOrder cancels one order by orderID or clOrdID.
func (c *Client) CancelOrder(ctx context.Context, cancel core.CancelRequest) ([]core.Order, error) {
	req, err := c.protocol.buildCancelOrderRequest(cancel)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var cancelled []core.Order
	if err := c.Do(ctx, req, &cancelled); err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelOrders cancels the given exchange order IDs in one request.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) ([]core.Order, error) {
	req, err := c.protocol.buildCancelOrdersRequest(orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var cancelled []core.Order
	if err := c.Do(ctx, req, &cancelled); err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelAllAfter arms the dead man's switch: all open orders are cancelled if
// it is not re-armed within timeout. A zero timeout disarms it.
func (c *Client) CancelAllAfter(ctx context.Context, timeout time.Duration) (*core.DeadMansSwitch, error) {
	req, err := c.protocol.buildCancelAllAfterRequest(timeout)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var ack core.DeadMansSwitch
	if err := c.Do(ctx, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Position returns the account's position in symbol. When the exchange has no
// record for it, a flat position with Stub set is returned instead.
func (c *Client) Position(ctx context.Context, symbol string) (*core.Position, error) {
	req, err := c.protocol.buildPositionRequest(symbol)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var positions []core.Position
	if err := c.Do(ctx, req, &positions); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return &core.Position{Symbol: symbol, Stub: true}, nil
	}
	return &positions[0], nil
}

// TradeBuckets lists OHLCV buckets of binSize ("1m", "5m", "1h" or "1d").
func (c *Client) TradeBuckets(ctx context.Context, symbol, binSize string, opts ...QueryOption) ([]core.TradeBin, error) {
	req, err := c.protocol.buildTradeBucketsRequest(symbol, binSize, opts...)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var bins []core.TradeBin
	if err := c.Do(ctx, req, &bins); err != nil {
		return nil, err
	}
	return bins, nil
}
