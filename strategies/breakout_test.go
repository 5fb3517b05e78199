package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

// consolidationBars builds a tight 100-104 range with a final bar that
// breaks per close/high/low.
func consolidationBars(n int, lastClose, lastHigh, lastLow float64) []market.Bar {
	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   101,
			High:   104,
			Low:    100,
			Close:  102,
			Volume: 1_000_000,
		}
	}
	bars[n-1] = market.Bar{
		Time:   start.AddDate(0, 0, n-1),
		Open:   102,
		High:   lastHigh,
		Low:    lastLow,
		Close:  lastClose,
		Volume: 2_000_000,
	}
	return bars
}

func breakoutSignal(ticker string, bars []market.Bar) *signals.TechnicalSignals {
	last := bars[len(bars)-1]
	return &signals.TechnicalSignals{
		Symbol:      ticker,
		Price:       last.Close,
		ATR:         1.5,
		VolumeRatio: 2.0,
		Bars:        bars,
	}
}

func plainProposal(ticker string, action market.Action) *market.PendingSignal {
	return &market.PendingSignal{
		Ticker:    ticker,
		Action:    action,
		Priority:  50,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBreakoutBullishEntry(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	bars := consolidationBars(30, 106, 106.5, 103)
	sig := breakoutSignal("NVDA", bars)

	dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), sig, openContext())

	require.True(t, dec.ShouldEnter, dec.Reason)
	assert.Equal(t, market.SideLong, dec.Side)
	assert.InDelta(t, 106.0, dec.EntryPrice, 1e-9)
	// Stop is support minus ATR.
	assert.InDelta(t, 100-1.5, dec.StopLoss, 1e-9)
	// Target is entry plus twice the pattern height (106 - 100).
	assert.InDelta(t, 106+2*(106-100), dec.Target, 1e-9)
	assert.Greater(t, dec.SuggestedSize, 0)
	assert.NoError(t, dec.Check())
}

func TestBreakoutBearishEntry(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	bars := consolidationBars(30, 98, 101, 97.5)
	sig := breakoutSignal("NVDA", bars)

	dec := b.EvaluateEntry(plainProposal("NVDA", market.Short), sig, openContext())

	require.True(t, dec.ShouldEnter, dec.Reason)
	assert.Equal(t, market.SideShort, dec.Side)
	// Stop is resistance plus ATR.
	assert.InDelta(t, 104+1.5, dec.StopLoss, 1e-9)
	assert.Less(t, dec.Target, dec.EntryPrice)
}

func TestBreakoutRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*signals.TechnicalSignals)
		reason string
	}{
		{
			name:   "no breakout inside range",
			mutate: func(s *signals.TechnicalSignals) { s.Price = 102; s.Bars[len(s.Bars)-1] = s.Bars[0] },
			reason: "no breakout",
		},
		{
			name:   "volume too low",
			mutate: func(s *signals.TechnicalSignals) { s.VolumeRatio = 1.1 },
			reason: "volume",
		},
		{
			name:   "atr too low",
			mutate: func(s *signals.TechnicalSignals) { s.ATR = 0.2 },
			reason: "ATR",
		},
		{
			name:   "insufficient history",
			mutate: func(s *signals.TechnicalSignals) { s.Bars = s.Bars[:10] },
			reason: "history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBreakout(nil)
			sig := breakoutSignal("NVDA", consolidationBars(30, 106, 106.5, 103))
			tt.mutate(sig)
			dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), sig, openContext())
			assert.False(t, dec.ShouldEnter)
			assert.Contains(t, dec.Reason, tt.reason)
		})
	}
}

func TestBreakoutWideRangeRejected(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	bars := consolidationBars(30, 120, 121, 110)
	// Widen the window itself: 90-110 is a 22% range.
	for i := 0; i < len(bars)-1; i++ {
		bars[i].Low = 90
		bars[i].High = 110
	}
	sig := breakoutSignal("NVDA", bars)

	dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), sig, openContext())
	assert.False(t, dec.ShouldEnter)
	assert.Contains(t, dec.Reason, "consolidating")
}

func TestBreakoutDirectionConflict(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	sig := breakoutSignal("NVDA", consolidationBars(30, 106, 106.5, 103))

	prop := plainProposal("NVDA", market.Buy)
	prop.Recommendation = &market.AgentRecommendation{
		EntryPrice: 100, StopLoss: 105, Target: 90, Quantity: 10, TradeType: market.SideShort,
	}

	dec := b.EvaluateEntry(prop, sig, openContext())
	assert.False(t, dec.ShouldEnter)
	assert.Contains(t, dec.Reason, "direction")
}

func TestBreakoutFalseBreakoutTracking(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	entrySig := breakoutSignal("NVDA", consolidationBars(30, 106, 106.5, 103))

	dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), entrySig, openContext())
	require.True(t, dec.ShouldEnter, dec.Reason)

	pos := &market.Position{Ticker: "NVDA", Side: market.SideLong, Quantity: 10, AvgEntryPrice: 106}

	// Price collapses through the stop: immediate exit, failure recorded.
	exitSig := breakoutSignal("NVDA", consolidationBars(30, 98, 99, 97))
	exitSig.Price = 98
	exit := b.EvaluateExit(pos, exitSig, openContext())
	require.True(t, exit.ShouldExit)
	assert.Equal(t, UrgencyImmediate, exit.Urgency)
	assert.Equal(t, "stop_loss", exit.Reason)

	// Second failure hits the cap and blocks further entries.
	dec = b.EvaluateEntry(plainProposal("NVDA", market.Buy), entrySig, openContext())
	require.True(t, dec.ShouldEnter)
	exit = b.EvaluateExit(pos, exitSig, openContext())
	require.True(t, exit.ShouldExit)

	dec = b.EvaluateEntry(plainProposal("NVDA", market.Buy), entrySig, openContext())
	assert.False(t, dec.ShouldEnter)
	assert.Contains(t, dec.Reason, "false breakouts")
}

func TestBreakoutTargetResetsFailures(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	b.falseBreakouts["NVDA"] = 1

	entrySig := breakoutSignal("NVDA", consolidationBars(30, 106, 106.5, 103))
	dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), entrySig, openContext())
	require.True(t, dec.ShouldEnter, dec.Reason)

	pos := &market.Position{Ticker: "NVDA", Side: market.SideLong, Quantity: 10, AvgEntryPrice: 106}
	targetSig := breakoutSignal("NVDA", consolidationBars(30, 119, 120, 117))
	targetSig.Price = 119

	exit := b.EvaluateExit(pos, targetSig, openContext())
	require.True(t, exit.ShouldExit)
	assert.Equal(t, "target_reached", exit.Reason)
	assert.Equal(t, 0, b.falseBreakouts["NVDA"])
}

func TestBreakoutStateRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBreakout(nil)
	entrySig := breakoutSignal("NVDA", consolidationBars(30, 106, 106.5, 103))
	dec := b.EvaluateEntry(plainProposal("NVDA", market.Buy), entrySig, openContext())
	require.True(t, dec.ShouldEnter)
	b.falseBreakouts["TSLA"] = 2

	restored := NewBreakout(nil)
	restored.Restore(b.State())

	assert.Equal(t, b.positions, restored.positions)
	assert.Equal(t, b.falseBreakouts, restored.falseBreakouts)
}
