// Package strategies holds the entry/exit decision logic. A strategy either
// validates an analyst-supplied setup (momentum) or detects its own setup
// from technicals (breakout, mean reversion). Strategies are called only
// from the engine loop and need no internal locking.
package strategies

import (
	"fmt"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

// Urgency of a dynamic exit.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyImmediate Urgency = "immediate"
)

// EntryDecision is the result of evaluating a proposal.
type EntryDecision struct {
	ShouldEnter   bool
	Reason        string
	SuggestedSize int
	EntryPrice    float64
	StopLoss      float64
	Target        float64
	Side          market.Side
}

// Check enforces the safety invariant on accepting decisions: no entry
// without a stop loss and a positive size.
func (d EntryDecision) Check() error {
	if !d.ShouldEnter {
		return nil
	}
	if d.StopLoss <= 0 {
		return fmt.Errorf("entry decision without stop loss: %s", d.Reason)
	}
	if d.SuggestedSize <= 0 {
		return fmt.Errorf("entry decision without size: %s", d.Reason)
	}
	return nil
}

// ExitDecision is the result of evaluating a dynamic exit. It only applies
// to positions with no protecting bracket order; bracket exits are handled
// by the broker.
type ExitDecision struct {
	ShouldExit bool
	Reason     string
	Urgency    Urgency
}

// Hold is the default no-exit decision.
func Hold(reason string) ExitDecision {
	return ExitDecision{ShouldExit: false, Reason: reason, Urgency: UrgencyNormal}
}

// MarketContext is the account and market snapshot decisions are made
// against.
type MarketContext struct {
	VIX               float64
	MarketStatus      market.Status
	AccountEquity     float64
	BuyingPower       float64
	ExistingPositions map[string]bool
	CooldownTickers   map[string]bool
}

// Strategy is the capability contract the engine drives.
type Strategy interface {
	Name() string

	// EvaluateEntry decides whether a queued proposal becomes an order.
	EvaluateEntry(prop *market.PendingSignal, sig *signals.TechnicalSignals, ctx MarketContext) EntryDecision

	// EvaluateExit decides whether an unprotected position should be
	// closed now.
	EvaluateExit(pos *market.Position, sig *signals.TechnicalSignals, ctx MarketContext) ExitDecision

	// CalculatePositionSize returns a share count for the setup, capped at
	// maxAmount dollars.
	CalculatePositionSize(sig *signals.TechnicalSignals, ctx MarketContext, maxAmount float64) int

	// State and Restore round-trip strategy-local state through the
	// engine's persistence.
	State() map[string]any
	Restore(map[string]any)
}

// Base provides the shared filters and sizing used by all strategies.
type Base struct {
	cfg *Config
}

// CheckBasicFilters applies the entry gates common to every strategy:
// market open, no existing position, no active cooldown.
func (b *Base) CheckBasicFilters(ticker string, ctx MarketContext) (bool, string) {
	if ctx.MarketStatus != market.StatusOpen {
		return false, fmt.Sprintf("market is %s", ctx.MarketStatus)
	}
	if ctx.CooldownTickers[ticker] {
		return false, fmt.Sprintf("%s is in cooldown", ticker)
	}
	if ctx.ExistingPositions[ticker] {
		return false, fmt.Sprintf("already holding %s", ticker)
	}
	return true, ""
}

// CalculatePositionSize sizes a position from ATR risk with a VIX haircut.
//
// Risk budget starts at BaseRiskPct of equity; a VIX above baseline shrinks
// it (VIX 40 halves it). Risk per share is twice the ATR. The resulting
// value is capped at maxAmount. Without a usable ATR the sizing degrades to
// maxAmount / price.
func (b *Base) CalculatePositionSize(sig *signals.TechnicalSignals, ctx MarketContext, maxAmount float64) int {
	price := sig.Price
	if price <= 0 {
		return 0
	}

	if sig.ATR <= 0 {
		return int(maxAmount / price)
	}

	risk := ctx.AccountEquity * b.cfg.BaseRiskPct
	if ctx.VIX > market.NeutralVIX {
		factor := (ctx.VIX - market.NeutralVIX) / market.NeutralVIX
		risk /= 1 + factor
	}

	riskPerShare := 2 * sig.ATR
	var shares int
	if risk < riskPerShare {
		if maxAmount >= price {
			shares = 1
		}
	} else {
		shares = int(risk / riskPerShare)
	}

	if float64(shares)*price > maxAmount {
		shares = int(maxAmount / price)
	}
	if shares < 0 {
		shares = 0
	}
	return shares
}

// maxAllocation is the per-trade dollar cap: a fraction of equity, bounded
// by available buying power.
func (b *Base) maxAllocation(ctx MarketContext) float64 {
	amount := b.cfg.MaxPositionPct * ctx.AccountEquity
	if ctx.BuyingPower > 0 && amount > ctx.BuyingPower {
		amount = ctx.BuyingPower
	}
	return amount
}
