package signals

import (
	"context"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
)

const (
	rsiPeriod      = 14
	atrPeriod      = 14
	momentumPeriod = 10
	bollPeriod     = 20
	bollStd        = 2.0
	trendPeriod    = 50
	volumePeriod   = 20
	barWindow      = 60

	// minBars is the shortest history the indicator set can work with.
	minBars = bollPeriod + 1
)

// Analyzer computes TechnicalSignals from daily bars.
type Analyzer struct {
	bars broker.BarSource
	log  *zap.Logger
}

func NewAnalyzer(bars broker.BarSource, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{bars: bars, log: log}
}

var _ Provider = (*Analyzer)(nil)

func (a *Analyzer) FetchSignals(ctx context.Context, ticker string) (*TechnicalSignals, error) {
	bars, err := a.bars.Bars(ctx, ticker, barWindow)
	if err != nil {
		return nil, fmt.Errorf("bars %s: %w", ticker, err)
	}
	if len(bars) < minBars {
		return nil, fmt.Errorf("bars %s: need %d, have %d", ticker, minBars, len(bars))
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = float64(b.Volume)
	}

	price := closes[n-1]

	rsi := last(talib.Rsi(closes, rsiPeriod))
	atr := last(talib.Atr(highs, lows, closes, atrPeriod))
	momentum := last(talib.Roc(closes, momentumPeriod))

	upper, middle, lower := talib.BBands(closes, bollPeriod, bollStd, bollStd, talib.SMA)
	bollUpper, bollMiddle, bollLower := last(upper), last(middle), last(lower)
	stdDev := last(talib.StdDev(closes, bollPeriod, 1.0))

	trendSMA := 0.0
	if n > trendPeriod {
		trendSMA = last(talib.Sma(closes, trendPeriod))
	}

	volumeRatio := 0.0
	if avgVol := last(talib.Sma(volumes, volumePeriod)); avgVol > 0 {
		volumeRatio = volumes[n-1] / avgVol
	}

	sig := &TechnicalSignals{
		Symbol:      ticker,
		Price:       price,
		ATR:         atr,
		Momentum:    momentum,
		RSI:         rsi,
		VolumeRatio: volumeRatio,
		TrendSMA:    trendSMA,
		BollUpper:   bollUpper,
		BollMiddle:  bollMiddle,
		BollLower:   bollLower,
		StdDev:      stdDev,
		Bars:        bars,
	}
	sig.Score = score(sig)
	sig.Signals = tag(sig, highs)

	a.log.Debug("signals computed",
		zap.String("ticker", ticker),
		zap.Float64("price", price),
		zap.Float64("score", sig.Score),
		zap.Float64("momentum", momentum),
		zap.Float64("rsi", rsi))

	return sig, nil
}

// score collapses the indicator set into a 0..1 quality score. Each
// component contributes a fixed weight.
func score(s *TechnicalSignals) float64 {
	v := 0.0

	if s.TrendSMA > 0 && s.Price > s.TrendSMA {
		v += 0.25
	}
	if s.RSI >= 40 && s.RSI <= 65 {
		v += 0.20
	} else if s.RSI > 30 && s.RSI < 70 {
		v += 0.10
	}
	if s.Momentum > 0 {
		v += 0.25
	} else if s.Momentum > -3 {
		v += 0.10
	}
	if s.VolumeRatio >= 1.0 {
		v += 0.15
	}
	if width := s.BollUpper - s.BollLower; width > 0 {
		pos := (s.Price - s.BollLower) / width
		if pos >= 0.4 && pos <= 0.9 {
			v += 0.15
		}
	}

	return math.Min(v, 1.0)
}

func tag(s *TechnicalSignals, highs []float64) []string {
	var tags []string

	if s.RSI >= 70 {
		tags = append(tags, TagOverbought)
	}
	if s.RSI <= 30 {
		tags = append(tags, TagOversold)
	}
	if s.VolumeRatio >= 1.5 {
		tags = append(tags, TagHighVolume)
	}

	// Closing above the prior 20-bar high counts as a breakout.
	if n := len(highs); n > bollPeriod {
		priorHigh := 0.0
		for _, h := range highs[n-1-bollPeriod : n-1] {
			if h > priorHigh {
				priorHigh = h
			}
		}
		if s.Price > priorHigh {
			tags = append(tags, TagBreakout)
		}
	}

	if s.Score < 0.4 && s.Momentum < 0 {
		tags = append(tags, TagWeak)
	}

	return tags
}

func last(xs []float64) float64 {
	for i := len(xs) - 1; i >= 0; i-- {
		if !math.IsNaN(xs[i]) {
			return xs[i]
		}
	}
	return 0
}
