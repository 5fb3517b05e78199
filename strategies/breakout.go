package strategies

import (
	"fmt"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

// breakoutPosition is the setup recorded at entry, used by exit evaluation
// and persisted across restarts.
type breakoutPosition struct {
	EntryPrice float64     `json:"entry_price"`
	StopLoss   float64     `json:"stop_loss"`
	Target     float64     `json:"target"`
	Side       market.Side `json:"side"`
}

// Breakout detects consolidation ranges and enters when price escapes them
// on volume. It runs autonomously: entry, stop and target come from the
// pattern, not from an analyst recommendation. A recommendation, when
// present, must at least agree on direction.
type Breakout struct {
	Base
	cfg *Config

	falseBreakouts map[string]int
	positions      map[string]breakoutPosition
}

func NewBreakout(cfg *Config) *Breakout {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Breakout{
		Base:           Base{cfg: cfg},
		cfg:            cfg,
		falseBreakouts: make(map[string]int),
		positions:      make(map[string]breakoutPosition),
	}
}

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) EvaluateEntry(prop *market.PendingSignal, sig *signals.TechnicalSignals, ctx MarketContext) EntryDecision {
	if ok, reason := b.CheckBasicFilters(sig.Symbol, ctx); !ok {
		return EntryDecision{Reason: reason}
	}

	bc := b.cfg.Breakout
	price := sig.Price
	if price <= 0 {
		return EntryDecision{Reason: "invalid price"}
	}
	if len(sig.Bars) < bc.ConsolidationPeriods+1 {
		return EntryDecision{Reason: "insufficient price history"}
	}

	// The consolidation window excludes the current bar so the breakout bar
	// itself does not widen the range.
	n := len(sig.Bars)
	window := sig.Bars[n-1-bc.ConsolidationPeriods : n-1]
	latest := sig.Bars[n-1]

	resistance, support := window[0].High, window[0].Low
	for _, bar := range window {
		if bar.High > resistance {
			resistance = bar.High
		}
		if bar.Low < support {
			support = bar.Low
		}
	}
	if support <= 0 {
		return EntryDecision{Reason: "invalid support level"}
	}

	rangePct := (resistance - support) / support
	if rangePct > bc.ConsolidationRangePct {
		return EntryDecision{Reason: fmt.Sprintf(
			"not consolidating (range %.1f%% above %.1f%%)", rangePct*100, bc.ConsolidationRangePct*100)}
	}
	if sig.VolumeRatio < bc.MinVolumeRatio {
		return EntryDecision{Reason: fmt.Sprintf(
			"volume %.1fx below required %.1fx", sig.VolumeRatio, bc.MinVolumeRatio)}
	}
	if sig.ATR < bc.MinATR {
		return EntryDecision{Reason: fmt.Sprintf("ATR %.2f below minimum %.2f", sig.ATR, bc.MinATR)}
	}
	if b.falseBreakouts[sig.Symbol] >= bc.MaxFalseBreakouts {
		return EntryDecision{Reason: fmt.Sprintf(
			"too many false breakouts (%d)", b.falseBreakouts[sig.Symbol])}
	}

	buffer := price * bc.BreakoutBufferPct

	switch {
	case latest.High > resistance+buffer:
		if prop.Recommendation != nil && prop.Recommendation.TradeType != market.SideLong {
			return EntryDecision{Reason: "recommendation direction conflicts with bullish breakout"}
		}
		height := price - support
		dec := EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("bullish breakout above %.2f on %.1fx volume", resistance, sig.VolumeRatio),
			SuggestedSize: b.CalculatePositionSize(sig, ctx, b.maxAllocation(ctx)),
			EntryPrice:    price,
			StopLoss:      support - sig.ATR,
			Target:        price + height*bc.TargetMultiple,
			Side:          market.SideLong,
		}
		b.positions[sig.Symbol] = breakoutPosition{dec.EntryPrice, dec.StopLoss, dec.Target, dec.Side}
		return dec

	case latest.Low < support-buffer:
		if prop.Recommendation != nil && prop.Recommendation.TradeType != market.SideShort {
			return EntryDecision{Reason: "recommendation direction conflicts with bearish breakout"}
		}
		height := resistance - price
		dec := EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("bearish breakout below %.2f on %.1fx volume", support, sig.VolumeRatio),
			SuggestedSize: b.CalculatePositionSize(sig, ctx, b.maxAllocation(ctx)),
			EntryPrice:    price,
			StopLoss:      resistance + sig.ATR,
			Target:        price - height*bc.TargetMultiple,
			Side:          market.SideShort,
		}
		b.positions[sig.Symbol] = breakoutPosition{dec.EntryPrice, dec.StopLoss, dec.Target, dec.Side}
		return dec
	}

	return EntryDecision{Reason: "no breakout detected"}
}

func (b *Breakout) EvaluateExit(pos *market.Position, sig *signals.TechnicalSignals, ctx MarketContext) ExitDecision {
	price := sig.Price
	if price <= 0 {
		return Hold("invalid price")
	}

	data, ok := b.positions[pos.Ticker]
	if !ok {
		return Hold("no recorded setup for position")
	}
	isLong := data.Side == market.SideLong

	// Stop hit: the breakout failed.
	if data.StopLoss > 0 {
		if (isLong && price <= data.StopLoss) || (!isLong && price >= data.StopLoss) {
			b.falseBreakouts[pos.Ticker]++
			delete(b.positions, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "stop_loss", Urgency: UrgencyImmediate}
		}
	}

	// Target reached: a clean win resets the false-breakout count.
	if data.Target > 0 {
		if (isLong && price >= data.Target) || (!isLong && price <= data.Target) {
			delete(b.falseBreakouts, pos.Ticker)
			delete(b.positions, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "target_reached", Urgency: UrgencyNormal}
		}
	}

	// Price back inside the consolidation range means the breakout stalled.
	bc := b.cfg.Breakout
	if len(sig.Bars) >= bc.ConsolidationPeriods+1 {
		n := len(sig.Bars)
		window := sig.Bars[n-1-bc.ConsolidationPeriods : n-1]
		resistance, support := window[0].High, window[0].Low
		for _, bar := range window {
			if bar.High > resistance {
				resistance = bar.High
			}
			if bar.Low < support {
				support = bar.Low
			}
		}
		if isLong && price < resistance {
			delete(b.positions, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "breakout_failed", Urgency: UrgencyUrgent}
		}
		if !isLong && price > support {
			delete(b.positions, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "breakout_failed", Urgency: UrgencyUrgent}
		}
	}

	return Hold("exit conditions not met")
}

func (b *Breakout) State() map[string]any {
	positions := make(map[string]any, len(b.positions))
	for ticker, data := range b.positions {
		positions[ticker] = map[string]any{
			"entry_price": data.EntryPrice,
			"stop_loss":   data.StopLoss,
			"target":      data.Target,
			"side":        string(data.Side),
		}
	}
	counts := make(map[string]any, len(b.falseBreakouts))
	for ticker, c := range b.falseBreakouts {
		counts[ticker] = c
	}
	return map[string]any{
		"position_data":        positions,
		"false_breakout_count": counts,
	}
}

func (b *Breakout) Restore(data map[string]any) {
	b.positions = make(map[string]breakoutPosition)
	b.falseBreakouts = make(map[string]int)
	if data == nil {
		return
	}

	if positions, ok := data["position_data"].(map[string]any); ok {
		for ticker, raw := range positions {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			b.positions[ticker] = breakoutPosition{
				EntryPrice: toFloat(m["entry_price"]),
				StopLoss:   toFloat(m["stop_loss"]),
				Target:     toFloat(m["target"]),
				Side:       market.Side(toString(m["side"])),
			}
		}
	}
	if counts, ok := data["false_breakout_count"].(map[string]any); ok {
		for ticker, raw := range counts {
			b.falseBreakouts[ticker] = int(toFloat(raw))
		}
	}
}

// JSON round-trips turn numbers into float64 and ints stay ints in memory;
// these helpers accept both.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
