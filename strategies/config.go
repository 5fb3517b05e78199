package strategies

// Config carries tunables for all strategies. The zero value is unusable;
// start from DefaultConfig.
type Config struct {
	// MaxPositionPct is the per-trade allocation cap as a fraction of
	// account equity.
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`

	// BaseRiskPct is the fraction of equity risked per trade before the
	// VIX haircut.
	BaseRiskPct float64 `json:"base_risk_pct" yaml:"base_risk_pct"`

	Momentum      MomentumConfig      `json:"momentum" yaml:"momentum"`
	Breakout      BreakoutConfig      `json:"breakout" yaml:"breakout"`
	MeanReversion MeanReversionConfig `json:"mean_reversion" yaml:"mean_reversion"`
}

// MomentumConfig tunes the validate-mode momentum strategy.
type MomentumConfig struct {
	MinMomentum           float64 `json:"min_momentum" yaml:"min_momentum"`
	MinTAScore            float64 `json:"min_ta_score" yaml:"min_ta_score"`
	NoPatternScoreBump    float64 `json:"no_pattern_score_bump" yaml:"no_pattern_score_bump"`
	ExitMomentumThreshold float64 `json:"exit_momentum_threshold" yaml:"exit_momentum_threshold"`
	ExitScoreThreshold    float64 `json:"exit_score_threshold" yaml:"exit_score_threshold"`
	CatastrophicMomentum  float64 `json:"catastrophic_momentum" yaml:"catastrophic_momentum"`
}

// BreakoutConfig tunes consolidation detection and breakout confirmation.
type BreakoutConfig struct {
	ConsolidationPeriods  int     `json:"consolidation_periods" yaml:"consolidation_periods"`
	ConsolidationRangePct float64 `json:"consolidation_range_pct" yaml:"consolidation_range_pct"`
	MinVolumeRatio        float64 `json:"min_volume_ratio" yaml:"min_volume_ratio"`
	BreakoutBufferPct     float64 `json:"breakout_buffer_pct" yaml:"breakout_buffer_pct"`
	TargetMultiple        float64 `json:"target_multiple" yaml:"target_multiple"`
	MinATR                float64 `json:"min_atr" yaml:"min_atr"`
	MaxFalseBreakouts     int     `json:"max_false_breakouts" yaml:"max_false_breakouts"`
}

// MeanReversionConfig tunes the RSI/Bollinger reversion strategy.
type MeanReversionConfig struct {
	RSIOversold        float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought      float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIExit            float64 `json:"rsi_exit" yaml:"rsi_exit"`
	DeviationThreshold float64 `json:"deviation_threshold" yaml:"deviation_threshold"`
	StopLossStd        float64 `json:"stop_loss_std" yaml:"stop_loss_std"`
	MinVolumeRatio     float64 `json:"min_volume_ratio" yaml:"min_volume_ratio"`
	MaxHoldHours       int     `json:"max_hold_hours" yaml:"max_hold_hours"`
	TrendFilterPct     float64 `json:"trend_filter_pct" yaml:"trend_filter_pct"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPositionPct: 0.10,
		BaseRiskPct:    0.02,
		Momentum: MomentumConfig{
			MinMomentum:           -3.0,
			MinTAScore:            0.6,
			NoPatternScoreBump:    0.1,
			ExitMomentumThreshold: -15.0,
			ExitScoreThreshold:    0.3,
			CatastrophicMomentum:  -25.0,
		},
		Breakout: BreakoutConfig{
			ConsolidationPeriods:  20,
			ConsolidationRangePct: 0.05,
			MinVolumeRatio:        1.5,
			BreakoutBufferPct:     0.002,
			TargetMultiple:        2.0,
			MinATR:                0.5,
			MaxFalseBreakouts:     2,
		},
		MeanReversion: MeanReversionConfig{
			RSIOversold:        30,
			RSIOverbought:      70,
			RSIExit:            50,
			DeviationThreshold: 2.0,
			StopLossStd:        3.0,
			MinVolumeRatio:     1.2,
			MaxHoldHours:       48,
			TrendFilterPct:     0.10,
		},
	}
}
