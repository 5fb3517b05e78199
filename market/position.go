package market

import "time"

// Position is a tracked open position. Quantity and average entry price are
// reconciled from the broker every cycle; strategy metadata, bracket flag and
// order identifiers are local and survive reconciliation.
type Position struct {
	Ticker           string    `json:"ticker"`
	Side             Side      `json:"side"`
	Quantity         int       `json:"quantity"`
	AvgEntryPrice    float64   `json:"avg_entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	MarketValue      float64   `json:"market_value"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	StrategyName     string    `json:"strategy_name"`
	OpenedAt         time.Time `json:"opened_at"`
	EntryOrderID     string    `json:"entry_order_id,omitempty"`
	StopLoss         float64   `json:"stop_loss,omitempty"`
	Target           float64   `json:"target,omitempty"`
	HasBracketOrder  bool      `json:"has_bracket_order"`
	ExitAttempts     int       `json:"exit_attempts"`
	LastExitAttempt  time.Time `json:"last_exit_attempt,omitempty"`
	Notes            []string  `json:"notes,omitempty"`
}

// UpdatePrice recomputes market value and unrealized P&L from a fresh price.
// Long positions profit when price rises, shorts when it falls.
func (p *Position) UpdatePrice(price float64) {
	p.CurrentPrice = price
	p.MarketValue = price * float64(p.Quantity)

	diff := price - p.AvgEntryPrice
	if p.Side == SideShort {
		diff = p.AvgEntryPrice - price
	}
	p.UnrealizedPnL = diff * float64(p.Quantity)

	basis := p.AvgEntryPrice * float64(p.Quantity)
	if basis != 0 {
		p.UnrealizedPnLPct = p.UnrealizedPnL / basis
	}
}

// HoldDuration returns how long the position has been open.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
