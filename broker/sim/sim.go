// Package sim is an in-memory broker used by tests and analyze runs. Orders
// fill immediately at the requested price; prices move only when the test
// moves them.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/id"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

// Sim implements broker.Broker and broker.BarSource against in-memory state.
type Sim struct {
	mu sync.Mutex

	positions map[string]*broker.Position
	orders    map[string]*order
	pending   []broker.OrderEvent
	bars      map[string][]market.Bar
	assets    map[string]broker.Asset

	account broker.Account
	clock   broker.Clock

	// SyncErr, when set, makes ListPositions fail until cleared.
	syncErr error

	// rejectNext holds per-ticker reasons for rejecting the next submit.
	rejectNext map[string]string
}

type order struct {
	id     string
	ticker string
	open   bool
}

func New() *Sim {
	return &Sim{
		positions:  make(map[string]*broker.Position),
		orders:     make(map[string]*order),
		bars:       make(map[string][]market.Bar),
		assets:     make(map[string]broker.Asset),
		rejectNext: make(map[string]string),
		account:    broker.Account{Equity: 100_000, BuyingPower: 50_000},
		clock:      broker.Clock{Status: market.StatusOpen},
	}
}

// --- test controls ---

func (s *Sim) SetAccount(a broker.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = a
}

func (s *Sim) SetClock(c broker.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

func (s *Sim) SetBars(ticker string, bars []market.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[ticker] = bars
}

func (s *Sim) SetAsset(a broker.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.Ticker] = a
}

// SetSyncError makes ListPositions fail with err until called with nil.
func (s *Sim) SetSyncError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncErr = err
}

// RejectNext makes the next SubmitBracket for ticker fail with the reason.
func (s *Sim) RejectNext(ticker, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext[ticker] = reason
}

// SetPrice moves the market for an open position.
func (s *Sim) SetPrice(ticker string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[ticker]; ok {
		p.CurrentPrice = price
		diff := price - p.AvgEntryPrice
		if p.Side == market.SideShort {
			diff = p.AvgEntryPrice - price
		}
		p.UnrealizedPnL = diff * float64(p.Quantity)
	}
}

// PushEvent queues an order event for the next poll, as if the broker had
// reported it asynchronously.
func (s *Sim) PushEvent(ev broker.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.pending = append(s.pending, ev)
}

// Seed installs a position directly, bypassing order flow.
func (s *Sim) Seed(p broker.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.positions[p.Ticker] = &cp
}

// --- broker.Broker ---

func (s *Sim) ListPositions(ctx context.Context) ([]broker.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	out := make([]broker.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (s *Sim) SubmitBracket(ctx context.Context, req broker.BracketOrder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reason, ok := s.rejectNext[req.Ticker]; ok {
		delete(s.rejectNext, req.Ticker)
		return "", fmt.Errorf("submit %s: %s", req.Ticker, reason)
	}

	if a, ok := s.assets[req.Ticker]; ok {
		if !a.Tradable {
			return "", broker.ErrNotTradable
		}
		if req.Side == market.Short && !a.Shortable {
			return "", fmt.Errorf("short %s: %w", req.Ticker, broker.ErrNotTradable)
		}
	}

	oid := id.New()
	s.orders[oid] = &order{id: oid, ticker: req.Ticker, open: true}

	side := req.Side.Side()
	s.positions[req.Ticker] = &broker.Position{
		Ticker:        req.Ticker,
		Side:          side,
		Quantity:      req.Quantity,
		AvgEntryPrice: req.EntryPrice,
		CurrentPrice:  req.EntryPrice,
	}
	s.pending = append(s.pending, broker.OrderEvent{
		OrderID:   oid,
		Ticker:    req.Ticker,
		Kind:      broker.OrderEventFilled,
		FillPrice: req.EntryPrice,
		FillQty:   req.Quantity,
		At:        time.Now().UTC(),
	})
	return oid, nil
}

func (s *Sim) ClosePosition(ctx context.Context, ticker string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[ticker]
	if !ok {
		return "", fmt.Errorf("close %s: %w", ticker, broker.ErrPositionNotFound)
	}
	delete(s.positions, ticker)

	oid := id.New()
	s.pending = append(s.pending, broker.OrderEvent{
		OrderID:   oid,
		Ticker:    ticker,
		Kind:      broker.OrderEventFilled,
		FillPrice: p.CurrentPrice,
		FillQty:   p.Quantity,
		At:        time.Now().UTC(),
	})
	return oid, nil
}

func (s *Sim) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", orderID, broker.ErrOrderNotFound)
	}
	o.open = false
	s.pending = append(s.pending, broker.OrderEvent{
		OrderID: orderID,
		Ticker:  o.ticker,
		Kind:    broker.OrderEventCanceled,
		At:      time.Now().UTC(),
	})
	return nil
}

func (s *Sim) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, o := range s.orders {
		if o.open && o.ticker == ticker {
			ids = append(ids, o.id)
		}
	}
	return ids, nil
}

func (s *Sim) PollOrderUpdates(ctx context.Context, since time.Time) ([]broker.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *Sim) Account(ctx context.Context) (broker.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

func (s *Sim) MarketClock(ctx context.Context) (broker.Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock, nil
}

func (s *Sim) Asset(ctx context.Context, ticker string) (broker.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[ticker]; ok {
		return a, nil
	}
	return broker.Asset{Ticker: ticker, Tradable: true, Shortable: true}, nil
}

// --- broker.BarSource ---

func (s *Sim) Bars(ctx context.Context, ticker string, limit int) ([]market.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars, ok := s.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("no bars for %s", ticker)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]market.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

var (
	_ broker.Broker    = (*Sim)(nil)
	_ broker.BarSource = (*Sim)(nil)
)
