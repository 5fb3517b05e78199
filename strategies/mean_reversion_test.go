package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
)

func oversoldSignal(ticker string) *signals.TechnicalSignals {
	return &signals.TechnicalSignals{
		Symbol:      ticker,
		Price:       94,
		ATR:         1.2,
		RSI:         25,
		VolumeRatio: 1.5,
		TrendSMA:    100,
		BollUpper:   106,
		BollMiddle:  100,
		BollLower:   95,
		StdDev:      2.5,
	}
}

func TestMeanReversionLongEntry(t *testing.T) {
	t.Parallel()

	m := NewMeanReversion(nil)
	sig := oversoldSignal("XYZ")

	dec := m.EvaluateEntry(plainProposal("XYZ", market.Buy), sig, openContext())

	require.True(t, dec.ShouldEnter, dec.Reason)
	assert.Equal(t, market.SideLong, dec.Side)
	assert.InDelta(t, 94.0, dec.EntryPrice, 1e-9)
	// Stop sits StopLossStd deviations below the mean.
	assert.InDelta(t, 100-3*2.5, dec.StopLoss, 1e-9)
	// Target is the band middle.
	assert.InDelta(t, 100.0, dec.Target, 1e-9)
	assert.NoError(t, dec.Check())
}

func TestMeanReversionShortEntry(t *testing.T) {
	t.Parallel()

	m := NewMeanReversion(nil)
	sig := &signals.TechnicalSignals{
		Symbol:      "XYZ",
		Price:       106,
		ATR:         1.2,
		RSI:         75,
		VolumeRatio: 1.5,
		TrendSMA:    100,
		BollUpper:   105,
		BollMiddle:  100,
		BollLower:   95,
		StdDev:      2.5,
	}

	dec := m.EvaluateEntry(plainProposal("XYZ", market.Short), sig, openContext())

	require.True(t, dec.ShouldEnter, dec.Reason)
	assert.Equal(t, market.SideShort, dec.Side)
	assert.InDelta(t, 100+3*2.5, dec.StopLoss, 1e-9)
	assert.InDelta(t, 100.0, dec.Target, 1e-9)
}

func TestMeanReversionRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*signals.TechnicalSignals)
	}{
		{"rsi not oversold", func(s *signals.TechnicalSignals) { s.RSI = 45 }},
		{"price above lower band", func(s *signals.TechnicalSignals) { s.Price = 96 }},
		{"volume too thin", func(s *signals.TechnicalSignals) { s.VolumeRatio = 1.0 }},
		{"deviation too small", func(s *signals.TechnicalSignals) { s.StdDev = 8 }},
		{"trending market", func(s *signals.TechnicalSignals) { s.TrendSMA = 120 }},
		{"no statistics", func(s *signals.TechnicalSignals) { s.StdDev = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMeanReversion(nil)
			sig := oversoldSignal("XYZ")
			tt.mutate(sig)
			dec := m.EvaluateEntry(plainProposal("XYZ", market.Buy), sig, openContext())
			assert.False(t, dec.ShouldEnter, dec.Reason)
		})
	}
}

func TestMeanReversionExitOnReversion(t *testing.T) {
	t.Parallel()

	m := NewMeanReversion(nil)
	pos := &market.Position{
		Ticker: "XYZ", Side: market.SideLong, Quantity: 50,
		AvgEntryPrice: 94, OpenedAt: time.Now().UTC(),
	}

	// Still stretched: hold.
	sig := oversoldSignal("XYZ")
	sig.Price = 96
	sig.RSI = 40
	dec := m.EvaluateExit(pos, sig, openContext())
	assert.False(t, dec.ShouldExit)

	// RSI recovery triggers the exit.
	sig.RSI = 55
	dec = m.EvaluateExit(pos, sig, openContext())
	require.True(t, dec.ShouldExit)
	assert.Equal(t, UrgencyNormal, dec.Urgency)

	// Price at the mean does too.
	sig.RSI = 40
	sig.Price = 101
	dec = m.EvaluateExit(pos, sig, openContext())
	assert.True(t, dec.ShouldExit)
}

func TestMeanReversionMaxHold(t *testing.T) {
	t.Parallel()

	m := NewMeanReversion(nil)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	sig := oversoldSignal("XYZ")
	dec := m.EvaluateEntry(plainProposal("XYZ", market.Buy), sig, openContext())
	require.True(t, dec.ShouldEnter, dec.Reason)

	pos := &market.Position{Ticker: "XYZ", Side: market.SideLong, Quantity: 50, AvgEntryPrice: 94, OpenedAt: now}

	// Still inside the hold window, still stretched: hold.
	now = now.Add(47 * time.Hour)
	hold := oversoldSignal("XYZ")
	hold.Price = 94.5
	hold.RSI = 35
	assert.False(t, m.EvaluateExit(pos, hold, openContext()).ShouldExit)

	// Past the window: time stop fires regardless of price.
	now = now.Add(2 * time.Hour)
	exit := m.EvaluateExit(pos, hold, openContext())
	require.True(t, exit.ShouldExit)
	assert.Contains(t, exit.Reason, "max hold")
}

func TestMeanReversionStateRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMeanReversion(nil)
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	m.entryTimes["XYZ"] = at

	restored := NewMeanReversion(nil)
	restored.Restore(m.State())

	require.Contains(t, restored.entryTimes, "XYZ")
	assert.True(t, restored.entryTimes["XYZ"].Equal(at))
}
