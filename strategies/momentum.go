package strategies

import (
	"fmt"
	"strings"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

// Momentum is a validate-mode strategy: the analyst's recommendation carries
// the full setup and this strategy only checks technical alignment. On
// accept, the recommendation's entry, stop, target and quantity are used
// verbatim.
type Momentum struct {
	Base
	cfg *Config
}

func NewMomentum(cfg *Config) *Momentum {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Momentum{Base: Base{cfg: cfg}, cfg: cfg}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) EvaluateEntry(prop *market.PendingSignal, sig *signals.TechnicalSignals, ctx MarketContext) EntryDecision {
	if ok, reason := m.CheckBasicFilters(sig.Symbol, ctx); !ok {
		return EntryDecision{Reason: reason}
	}

	rec := prop.Recommendation
	if rec == nil {
		return EntryDecision{Reason: "no agent recommendation for trade setup"}
	}

	// The proposal direction and the recommended setup must agree.
	if prop.Action.Side() != rec.TradeType {
		return EntryDecision{Reason: fmt.Sprintf(
			"recommendation is %s but proposal action is %s", rec.TradeType, prop.Action)}
	}

	mc := m.cfg.Momentum
	momentum := sig.Momentum
	if rec.TradeType == market.SideShort {
		momentum = -momentum
	}
	if momentum < mc.MinMomentum {
		return EntryDecision{Reason: fmt.Sprintf("momentum %.1f below minimum %.1f", momentum, mc.MinMomentum)}
	}

	// Without a confirmed breakout pattern the score bar is higher.
	required := mc.MinTAScore
	if !sig.Has(signals.TagBreakout) {
		required += mc.NoPatternScoreBump
	}
	if sig.Score < required {
		return EntryDecision{Reason: fmt.Sprintf("score %.2f below required %.2f", sig.Score, required)}
	}

	if sig.Has(signals.TagWeak) {
		return EntryDecision{Reason: "weak technicals"}
	}

	return EntryDecision{
		ShouldEnter:   true,
		Reason:        fmt.Sprintf("technicals aligned (momentum %.1f, score %.2f)", sig.Momentum, sig.Score),
		SuggestedSize: rec.Quantity,
		EntryPrice:    rec.EntryPrice,
		StopLoss:      rec.StopLoss,
		Target:        rec.Target,
		Side:          rec.TradeType,
	}
}

// EvaluateExit is a safeguard against extreme conditions; routine exits are
// handled by the position's bracket order.
func (m *Momentum) EvaluateExit(pos *market.Position, sig *signals.TechnicalSignals, ctx MarketContext) ExitDecision {
	mc := m.cfg.Momentum
	isLong := pos.Side == market.SideLong
	profitable := pos.UnrealizedPnLPct > 0
	weak := sig.Has(signals.TagWeak)

	// Normalize so a negative value is always adverse for the position.
	momentum := sig.Momentum
	if !isLong {
		momentum = -momentum
	}

	var reasons []string
	urgency := UrgencyNormal

	if momentum < mc.CatastrophicMomentum {
		reasons = append(reasons, fmt.Sprintf("catastrophic momentum %.1f%%", sig.Momentum))
		urgency = UrgencyImmediate
	} else if profitable {
		// Let winners run; only a major reversal forces the exit.
		if momentum < mc.ExitMomentumThreshold {
			reasons = append(reasons, fmt.Sprintf("major momentum reversal %.1f%%", sig.Momentum))
			urgency = UrgencyUrgent
		}
		if scoreCollapsed(isLong, sig.Score, mc.ExitScoreThreshold) {
			reasons = append(reasons, fmt.Sprintf("technical score collapse %.2f", sig.Score))
		}
	} else {
		// Cut losses only on confirmed weakness.
		if momentum < mc.ExitMomentumThreshold && weak {
			reasons = append(reasons, fmt.Sprintf("momentum %.1f%% with weak technicals", sig.Momentum))
			urgency = UrgencyUrgent
		} else if scoreCollapsed(isLong, sig.Score, mc.ExitScoreThreshold) && weak {
			reasons = append(reasons, fmt.Sprintf("score %.2f with weak technicals", sig.Score))
		}
	}

	if len(reasons) == 0 {
		return Hold("exit conditions not met")
	}
	return ExitDecision{ShouldExit: true, Reason: strings.Join(reasons, ", "), Urgency: urgency}
}

// scoreCollapsed interprets the composite score for the position's side: a
// low score is bad for longs, a high score is bad for shorts.
func scoreCollapsed(isLong bool, score, threshold float64) bool {
	if isLong {
		return score < threshold
	}
	return score > 1-threshold
}

func (m *Momentum) State() map[string]any  { return map[string]any{} }
func (m *Momentum) Restore(map[string]any) {}
