package strategies

import (
	"fmt"
	"math"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

// MeanReversion fades statistical extremes: long when oversold below the
// lower Bollinger band, short when overbought above the upper band. It runs
// autonomously and sizes its own entries. Positions revert to the band
// middle or are cut on a time stop.
type MeanReversion struct {
	Base
	cfg *Config

	// entryTimes backs the max-hold exit and survives restarts.
	entryTimes map[string]time.Time

	now func() time.Time
}

func NewMeanReversion(cfg *Config) *MeanReversion {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MeanReversion{
		Base:       Base{cfg: cfg},
		cfg:        cfg,
		entryTimes: make(map[string]time.Time),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MeanReversion) Name() string { return "mean_reversion" }

func (m *MeanReversion) EvaluateEntry(prop *market.PendingSignal, sig *signals.TechnicalSignals, ctx MarketContext) EntryDecision {
	if ok, reason := m.CheckBasicFilters(sig.Symbol, ctx); !ok {
		return EntryDecision{Reason: reason}
	}

	mc := m.cfg.MeanReversion
	price := sig.Price
	if price <= 0 || sig.StdDev <= 0 || sig.BollMiddle <= 0 {
		return EntryDecision{Reason: "insufficient statistics"}
	}

	if sig.VolumeRatio < mc.MinVolumeRatio {
		return EntryDecision{Reason: fmt.Sprintf(
			"volume %.1fx below required %.1fx", sig.VolumeRatio, mc.MinVolumeRatio)}
	}

	// Only fade moves in broadly sideways tape; a price far from its long
	// SMA is trending, not reverting.
	if sig.TrendSMA > 0 {
		drift := math.Abs(price-sig.TrendSMA) / sig.TrendSMA
		if drift > mc.TrendFilterPct {
			return EntryDecision{Reason: fmt.Sprintf("trending market (%.1f%% from trend SMA)", drift*100)}
		}
	}

	z := (price - sig.BollMiddle) / sig.StdDev

	switch {
	case sig.RSI <= mc.RSIOversold && price < sig.BollLower && z <= -mc.DeviationThreshold:
		dec := EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("oversold reversion (RSI %.0f, z %.1f)", sig.RSI, z),
			SuggestedSize: m.CalculatePositionSize(sig, ctx, m.maxAllocation(ctx)),
			EntryPrice:    price,
			StopLoss:      sig.BollMiddle - mc.StopLossStd*sig.StdDev,
			Target:        sig.BollMiddle,
			Side:          market.SideLong,
		}
		m.entryTimes[sig.Symbol] = m.now()
		return dec

	case sig.RSI >= mc.RSIOverbought && price > sig.BollUpper && z >= mc.DeviationThreshold:
		dec := EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("overbought reversion (RSI %.0f, z %.1f)", sig.RSI, z),
			SuggestedSize: m.CalculatePositionSize(sig, ctx, m.maxAllocation(ctx)),
			EntryPrice:    price,
			StopLoss:      sig.BollMiddle + mc.StopLossStd*sig.StdDev,
			Target:        sig.BollMiddle,
			Side:          market.SideShort,
		}
		m.entryTimes[sig.Symbol] = m.now()
		return dec
	}

	return EntryDecision{Reason: "no reversion setup"}
}

func (m *MeanReversion) EvaluateExit(pos *market.Position, sig *signals.TechnicalSignals, ctx MarketContext) ExitDecision {
	mc := m.cfg.MeanReversion

	entered, ok := m.entryTimes[pos.Ticker]
	if !ok {
		entered = pos.OpenedAt
	}
	if !entered.IsZero() && m.now().Sub(entered) > time.Duration(mc.MaxHoldHours)*time.Hour {
		delete(m.entryTimes, pos.Ticker)
		return ExitDecision{ShouldExit: true, Reason: "max hold duration reached", Urgency: UrgencyNormal}
	}

	price := sig.Price
	if price <= 0 || sig.BollMiddle <= 0 {
		return Hold("insufficient statistics")
	}

	if pos.Side == market.SideLong {
		if sig.RSI >= mc.RSIExit || price >= sig.BollMiddle {
			delete(m.entryTimes, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "reverted to mean", Urgency: UrgencyNormal}
		}
	} else {
		if sig.RSI <= mc.RSIExit || price <= sig.BollMiddle {
			delete(m.entryTimes, pos.Ticker)
			return ExitDecision{ShouldExit: true, Reason: "reverted to mean", Urgency: UrgencyNormal}
		}
	}

	return Hold("exit conditions not met")
}

func (m *MeanReversion) State() map[string]any {
	times := make(map[string]any, len(m.entryTimes))
	for ticker, at := range m.entryTimes {
		times[ticker] = at.Format(time.RFC3339Nano)
	}
	return map[string]any{"entry_times": times}
}

func (m *MeanReversion) Restore(data map[string]any) {
	m.entryTimes = make(map[string]time.Time)
	if data == nil {
		return
	}
	times, ok := data["entry_times"].(map[string]any)
	if !ok {
		return
	}
	for ticker, raw := range times {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if at, err := time.Parse(time.RFC3339Nano, s); err == nil {
			m.entryTimes[ticker] = at
		}
	}
}
