package engine

import (
	"sort"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

// ClosedHistoryCap bounds the closed-positions history.
const ClosedHistoryCap = 100

// SyncResult summarizes one reconciliation pass against the broker.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []market.Position
}

// PositionTracker mirrors the broker's open positions and enriches them
// with local metadata. The broker is authoritative for quantity and entry
// price; strategy name, stops, targets and order ids are local. Only the
// engine loop touches it.
type PositionTracker struct {
	positions map[string]*market.Position
	closed    []market.Position
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{positions: make(map[string]*market.Position)}
}

// Sync reconciles tracked positions with the broker's list. New tickers are
// admitted with unknown metadata; known ones get fresh quantity, entry and
// price; tickers the broker no longer reports move to the closed history.
func (t *PositionTracker) Sync(brokerPositions []broker.Position, now time.Time) SyncResult {
	var res SyncResult
	seen := make(map[string]bool, len(brokerPositions))

	for _, bp := range brokerPositions {
		seen[bp.Ticker] = true

		if pos, ok := t.positions[bp.Ticker]; ok {
			pos.Quantity = bp.Quantity
			pos.AvgEntryPrice = bp.AvgEntryPrice
			pos.Side = bp.Side
			pos.UpdatePrice(bp.CurrentPrice)
			res.Updated = append(res.Updated, bp.Ticker)
			continue
		}

		pos := &market.Position{
			Ticker:        bp.Ticker,
			Side:          bp.Side,
			Quantity:      bp.Quantity,
			AvgEntryPrice: bp.AvgEntryPrice,
			StrategyName:  "unknown",
			OpenedAt:      now,
		}
		pos.UpdatePrice(bp.CurrentPrice)
		t.positions[bp.Ticker] = pos
		res.Added = append(res.Added, bp.Ticker)
	}

	for ticker, pos := range t.positions {
		if !seen[ticker] {
			res.Removed = append(res.Removed, *pos)
			t.recordClosed(*pos)
			delete(t.positions, ticker)
		}
	}

	sort.Strings(res.Added)
	sort.Strings(res.Updated)
	sort.Slice(res.Removed, func(i, j int) bool { return res.Removed[i].Ticker < res.Removed[j].Ticker })
	return res
}

// AddPosition records a position opened by this engine.
func (t *PositionTracker) AddPosition(pos market.Position) {
	pos.UpdatePrice(pos.CurrentPrice)
	t.positions[pos.Ticker] = &pos
}

func (t *PositionTracker) Get(ticker string) (*market.Position, bool) {
	pos, ok := t.positions[ticker]
	return pos, ok
}

func (t *PositionTracker) Has(ticker string) bool {
	_, ok := t.positions[ticker]
	return ok
}

// All returns the open positions sorted by ticker.
func (t *PositionTracker) All() []*market.Position {
	out := make([]*market.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (t *PositionTracker) Count() int { return len(t.positions) }

// Tickers returns the open tickers as a set.
func (t *PositionTracker) Tickers() map[string]bool {
	out := make(map[string]bool, len(t.positions))
	for ticker := range t.positions {
		out[ticker] = true
	}
	return out
}

func (t *PositionTracker) TotalValue() float64 {
	var sum float64
	for _, pos := range t.positions {
		sum += pos.MarketValue
	}
	return sum
}

func (t *PositionTracker) TotalPnL() float64 {
	var sum float64
	for _, pos := range t.positions {
		sum += pos.UnrealizedPnL
	}
	return sum
}

// UpdatePrice refreshes one position's price and derived P&L.
func (t *PositionTracker) UpdatePrice(ticker string, price float64) bool {
	pos, ok := t.positions[ticker]
	if !ok {
		return false
	}
	pos.UpdatePrice(price)
	return true
}

// Remove drops a position without recording it as closed.
func (t *PositionTracker) Remove(ticker string) bool {
	if _, ok := t.positions[ticker]; !ok {
		return false
	}
	delete(t.positions, ticker)
	return true
}

// ClosedHistory returns the recent closed positions, newest last.
func (t *PositionTracker) ClosedHistory() []market.Position {
	out := make([]market.Position, len(t.closed))
	copy(out, t.closed)
	return out
}

func (t *PositionTracker) recordClosed(pos market.Position) {
	t.closed = append(t.closed, pos)
	if len(t.closed) > ClosedHistoryCap {
		t.closed = t.closed[len(t.closed)-ClosedHistoryCap:]
	}
}

// Snapshot returns open positions by value for persistence.
func (t *PositionTracker) Snapshot() []market.Position {
	all := t.All()
	out := make([]market.Position, 0, len(all))
	for _, pos := range all {
		out = append(out, *pos)
	}
	return out
}

// Restore replaces tracker contents from persisted state.
func (t *PositionTracker) Restore(open, closed []market.Position) {
	t.positions = make(map[string]*market.Position, len(open))
	for _, pos := range open {
		p := pos
		t.positions[p.Ticker] = &p
	}
	t.closed = append([]market.Position(nil), closed...)
	if len(t.closed) > ClosedHistoryCap {
		t.closed = t.closed[len(t.closed)-ClosedHistoryCap:]
	}
}
