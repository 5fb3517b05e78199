// Package broker defines the execution engine's view of a brokerage: the
// capability interface it consumes and the typed records that cross it.
// Live trading uses the alpaca implementation; tests and analyze runs use
// the sim implementation.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

var (
	// ErrTransient marks failures worth retrying (network, rate limit, 5xx).
	ErrTransient = errors.New("transient broker error")

	// ErrNotTradable is returned when an asset cannot be traded.
	ErrNotTradable = errors.New("asset not tradable")

	ErrPositionNotFound  = errors.New("position not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Position is the broker's authoritative record of an open position.
type Position struct {
	Ticker        string
	Side          market.Side
	Quantity      int
	AvgEntryPrice float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// BracketOrder is a three-leg order: entry plus linked stop-loss and
// take-profit children.
type BracketOrder struct {
	ClientID   string
	Ticker     string
	Side       market.Action
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	Target     float64
}

// OrderEventKind classifies order updates returned by polling.
type OrderEventKind string

const (
	OrderEventFilled   OrderEventKind = "filled"
	OrderEventRejected OrderEventKind = "rejected"
	OrderEventCanceled OrderEventKind = "canceled"
)

// OrderEvent is a fill, rejection or cancellation observed since the last
// poll.
type OrderEvent struct {
	OrderID   string
	Ticker    string
	Kind      OrderEventKind
	FillPrice float64
	FillQty   int
	Reason    string
	At        time.Time
}

// Account is a snapshot of account buying power.
type Account struct {
	Equity                float64
	BuyingPower           float64
	DayTradingBuyingPower float64
	MarginRequirement     float64
}

// Clock is the market session clock.
type Clock struct {
	Status    market.Status
	NextOpen  time.Time
	NextClose time.Time
}

// Asset describes tradability of a symbol.
type Asset struct {
	Ticker    string
	Tradable  bool
	Shortable bool
}

// Broker is the capability set the engine needs from a brokerage.
// Implementations must be safe for concurrent use.
type Broker interface {
	ListPositions(ctx context.Context) ([]Position, error)
	SubmitBracket(ctx context.Context, order BracketOrder) (orderID string, err error)
	ClosePosition(ctx context.Context, ticker string) (orderID string, err error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context, ticker string) ([]string, error)
	PollOrderUpdates(ctx context.Context, since time.Time) ([]OrderEvent, error)
	Account(ctx context.Context) (Account, error)
	MarketClock(ctx context.Context) (Clock, error)
	Asset(ctx context.Context, ticker string) (Asset, error)
}

// BarSource serves recent daily bars for technical analysis.
type BarSource interface {
	Bars(ctx context.Context, ticker string, limit int) ([]market.Bar, error)
}
