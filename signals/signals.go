// Package signals produces and caches per-ticker technical signals. The
// analyzer derives them from daily bars; the cache bounds recomputation to
// once per ticker per cycle.
package signals

import (
	"context"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

// TechnicalSignals is the technical snapshot strategies evaluate against.
type TechnicalSignals struct {
	Symbol      string
	Price       float64
	ATR         float64
	Momentum    float64
	Score       float64
	RSI         float64
	VolumeRatio float64
	TrendSMA    float64
	BollUpper   float64
	BollMiddle  float64
	BollLower   float64
	StdDev      float64
	Signals     []string
	Bars        []market.Bar
}

// Has reports whether a named signal tag is present.
func (t *TechnicalSignals) Has(tag string) bool {
	for _, s := range t.Signals {
		if s == tag {
			return true
		}
	}
	return false
}

// Signal tags produced by the analyzer.
const (
	TagOverbought = "overbought"
	TagOversold   = "oversold"
	TagBreakout   = "breakout"
	TagWeak       = "weak_technicals"
	TagHighVolume = "high_volume"
)

// Provider serves technical signals for a ticker.
type Provider interface {
	FetchSignals(ctx context.Context, ticker string) (*TechnicalSignals, error)
}

// VIXSource serves a recent VIX reading.
type VIXSource interface {
	VIX(ctx context.Context) (float64, error)
}

// ResolveVIX returns a usable VIX value, substituting the neutral sentinel
// when the source is missing or failing.
func ResolveVIX(ctx context.Context, src VIXSource) float64 {
	if src == nil {
		return market.NeutralVIX
	}
	v, err := src.VIX(ctx)
	if err != nil || v <= 0 {
		return market.NeutralVIX
	}
	return v
}

// StaticVIX is a fixed-value source, useful in tests and analyze runs.
type StaticVIX float64

func (s StaticVIX) VIX(context.Context) (float64, error) { return float64(s), nil }
