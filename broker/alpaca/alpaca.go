// Package alpaca implements the broker interface against the Alpaca trading
// API. Money values cross the SDK boundary as decimals and are converted to
// floats at the edge.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

// Config carries Alpaca credentials and endpoints. Keys usually come from
// the environment (APCA_API_KEY_ID / APCA_API_SECRET_KEY).
type Config struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
	BaseURL   string `json:"base_url" yaml:"base_url"`
}

// Client implements broker.Broker and broker.BarSource for Alpaca.
type Client struct {
	trade *alpaca.Client
	data  *marketdata.Client
}

var (
	_ broker.Broker    = (*Client)(nil)
	_ broker.BarSource = (*Client)(nil)
)

func New(cfg Config) *Client {
	return &Client{
		trade: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
	}
}

// wrapErr tags rate limits and server-side failures as transient so the
// order manager retries them.
func wrapErr(op string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%s: %s: %w", op, apiErr.Message, broker.ErrTransient)
		}
		return fmt.Errorf("%s: %s", op, apiErr.Message)
	}
	// Anything that never reached the API (network, DNS) is retryable.
	return fmt.Errorf("%s: %v: %w", op, err, broker.ErrTransient)
}

// roundPrice applies the broker's sub-penny rule: two decimals at a dollar
// and above, four below.
func roundPrice(p float64) decimal.Decimal {
	d := decimal.NewFromFloat(p)
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.Round(2)
	}
	return d.Round(4)
}

func (c *Client) ListPositions(ctx context.Context) ([]broker.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	positions, err := c.trade.GetPositions()
	if err != nil {
		return nil, wrapErr("list positions", err)
	}

	out := make([]broker.Position, 0, len(positions))
	for _, p := range positions {
		current := decimal.Zero
		if p.CurrentPrice != nil {
			current = *p.CurrentPrice
		}
		pnl := decimal.Zero
		if p.UnrealizedPL != nil {
			pnl = *p.UnrealizedPL
		}

		side := market.SideLong
		if p.Side == "short" {
			side = market.SideShort
		}

		out = append(out, broker.Position{
			Ticker:        p.Symbol,
			Side:          side,
			Quantity:      int(p.Qty.Abs().IntPart()),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
			CurrentPrice:  current.InexactFloat64(),
			UnrealizedPnL: pnl.InexactFloat64(),
		})
	}
	return out, nil
}

func (c *Client) SubmitBracket(ctx context.Context, req broker.BracketOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	side := alpaca.Buy
	if req.Side == market.Short || req.Side == market.Sell {
		side = alpaca.Sell
	}

	qty := decimal.NewFromInt(int64(req.Quantity))
	limit := roundPrice(req.EntryPrice)
	stop := roundPrice(req.StopLoss)
	target := roundPrice(req.Target)

	order, err := c.trade.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Ticker,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Limit,
		LimitPrice:    &limit,
		TimeInForce:   alpaca.Day,
		OrderClass:    alpaca.Bracket,
		ClientOrderID: req.ClientID,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &target},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stop},
	})
	if err != nil {
		return "", wrapErr("submit bracket "+req.Ticker, err)
	}
	return order.ID, nil
}

func (c *Client) ClosePosition(ctx context.Context, ticker string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	order, err := c.trade.ClosePosition(ticker, alpaca.ClosePositionRequest{})
	if err != nil {
		return "", wrapErr("close "+ticker, err)
	}
	return order.ID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.trade.CancelOrder(orderID); err != nil {
		return wrapErr("cancel "+orderID, err)
	}
	return nil
}

func (c *Client) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders, err := c.trade.GetOrders(alpaca.GetOrdersRequest{
		Status:  "open",
		Symbols: []string{ticker},
		Limit:   100,
	})
	if err != nil {
		return nil, wrapErr("open orders "+ticker, err)
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (c *Client) PollOrderUpdates(ctx context.Context, since time.Time) ([]broker.OrderEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders, err := c.trade.GetOrders(alpaca.GetOrdersRequest{
		Status: "closed",
		After:  since,
		Limit:  100,
	})
	if err != nil {
		return nil, wrapErr("poll orders", err)
	}

	var out []broker.OrderEvent
	for _, o := range orders {
		ev := broker.OrderEvent{
			OrderID: o.ID,
			Ticker:  o.Symbol,
			At:      o.UpdatedAt,
		}
		switch o.Status {
		case "filled":
			ev.Kind = broker.OrderEventFilled
			if o.FilledAvgPrice != nil {
				ev.FillPrice = o.FilledAvgPrice.InexactFloat64()
			}
			ev.FillQty = int(o.FilledQty.IntPart())
		case "rejected":
			ev.Kind = broker.OrderEventRejected
			ev.Reason = "rejected by broker"
		case "canceled":
			ev.Kind = broker.OrderEventCanceled
		default:
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	if err := ctx.Err(); err != nil {
		return broker.Account{}, err
	}
	a, err := c.trade.GetAccount()
	if err != nil {
		return broker.Account{}, wrapErr("account", err)
	}
	return broker.Account{
		Equity:                a.Equity.InexactFloat64(),
		BuyingPower:           a.BuyingPower.InexactFloat64(),
		DayTradingBuyingPower: a.DaytradingBuyingPower.InexactFloat64(),
		MarginRequirement:     a.MaintenanceMargin.InexactFloat64(),
	}, nil
}

func (c *Client) MarketClock(ctx context.Context) (broker.Clock, error) {
	if err := ctx.Err(); err != nil {
		return broker.Clock{}, err
	}
	clock, err := c.trade.GetClock()
	if err != nil {
		return broker.Clock{}, wrapErr("market clock", err)
	}

	status := market.StatusClosed
	if clock.IsOpen {
		status = market.StatusOpen
	}
	return broker.Clock{
		Status:    status,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

func (c *Client) Asset(ctx context.Context, ticker string) (broker.Asset, error) {
	if err := ctx.Err(); err != nil {
		return broker.Asset{}, err
	}
	a, err := c.trade.GetAsset(ticker)
	if err != nil {
		return broker.Asset{}, wrapErr("asset "+ticker, err)
	}
	return broker.Asset{
		Ticker:    a.Symbol,
		Tradable:  a.Tradable,
		Shortable: a.Shortable,
	}, nil
}

func (c *Client) Bars(ctx context.Context, ticker string, limit int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Ask for roughly twice the window in calendar days to cover weekends
	// and holidays.
	start := time.Now().AddDate(0, 0, -limit*2)
	bars, err := c.data.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
	})
	if err != nil {
		return nil, wrapErr("bars "+ticker, err)
	}

	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]market.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, market.Bar{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return out, nil
}
