// Package market holds the shared value types of the execution core:
// trade proposals, tracked positions, bars and market status. Every other
// package depends on these; this package depends on nothing.
package market

import "time"

// Action is the direction requested by a trade proposal.
type Action string

const (
	Buy   Action = "buy"
	Sell  Action = "sell"
	Short Action = "short"
	Cover Action = "cover"
)

// Opens reports whether the action opens a new position.
func (a Action) Opens() bool {
	return a == Buy || a == Short
}

// Side returns the position side an opening action results in.
func (a Action) Side() Side {
	if a == Short {
		return SideShort
	}
	return SideLong
}

// Side of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Status of the market session.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPreMarket  Status = "pre-market"
	StatusAfterHours Status = "after-hours"
	StatusClosed     Status = "closed"
)

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// NeutralVIX is substituted when the VIX feed is unavailable.
const NeutralVIX = 20.0
