// Package config loads the trader configuration from YAML or JSON files and
// broker credentials from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

// Config is the complete trader configuration.
type Config struct {
	Engine   EngineConfig       `json:"engine" yaml:"engine"`
	Strategy *strategies.Config `json:"strategy" yaml:"strategy"`
	Alpaca   AlpacaConfig       `json:"alpaca" yaml:"alpaca"`
	Journal  JournalConfig      `json:"journal" yaml:"journal"`
	Log      LogConfig          `json:"log" yaml:"log"`
}

// EngineConfig holds the execution-cycle tunables.
type EngineConfig struct {
	CheckInterval Duration `json:"check_interval" yaml:"check_interval"`
	MaxPositions  int      `json:"max_positions" yaml:"max_positions"`
	MaxSignals    int      `json:"max_signals" yaml:"max_signals"`
	MaxRejects    int      `json:"max_rejects" yaml:"max_rejects"`
	Cooldown      Duration `json:"cooldown" yaml:"cooldown"`
	SignalTTL     Duration `json:"signal_ttl" yaml:"signal_ttl"`
	CacheTTL      Duration `json:"cache_ttl" yaml:"cache_ttl"`
	StatePath     string   `json:"state_path" yaml:"state_path"`
	Analyze       bool     `json:"analyze" yaml:"analyze"`

	// VIX fixes the volatility reading used for sizing haircuts. Zero means
	// no source is configured and sizing assumes the neutral value.
	VIX float64 `json:"vix,omitempty" yaml:"vix,omitempty"`

	// Strategies are the active strategy names in evaluation order.
	Strategies []string `json:"strategies" yaml:"strategies"`
}

// Duration parses "120s"-style strings in YAML and JSON config files. Bare
// numbers are read as nanoseconds, matching time.Duration.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	default:
		return fmt.Errorf("cannot parse duration from %T", raw)
	}
	return nil
}

// AlpacaConfig selects the broker endpoint. Credentials come from the
// environment, never the config file.
type AlpacaConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Paper   bool   `json:"paper" yaml:"paper"`
}

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Credentials are the Alpaca API keys, loaded from the environment.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadFromFile loads configuration from a YAML or JSON file. YAML is tried
// first regardless of extension.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or indented JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Engine.CheckInterval < 0 {
		return fmt.Errorf("engine.check_interval must not be negative")
	}
	if c.Engine.MaxPositions < 0 {
		return fmt.Errorf("engine.max_positions must not be negative")
	}
	if c.Engine.VIX < 0 {
		return fmt.Errorf("engine.vix must not be negative")
	}
	if len(c.Engine.Strategies) == 0 {
		return fmt.Errorf("engine.strategies must name at least one strategy")
	}
	if c.Strategy != nil {
		if c.Strategy.MaxPositionPct <= 0 || c.Strategy.MaxPositionPct > 1 {
			return fmt.Errorf("strategy.max_position_pct must be in (0, 1]")
		}
		if c.Strategy.BaseRiskPct <= 0 || c.Strategy.BaseRiskPct > 1 {
			return fmt.Errorf("strategy.base_risk_pct must be in (0, 1]")
		}
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EventsFile == "" {
			return fmt.Errorf("journal trades_file and events_file required for csv journal")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	return nil
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			CheckInterval: Duration(120 * time.Second),
			MaxPositions:  10,
			MaxSignals:    100,
			MaxRejects:    3,
			Cooldown:      Duration(3 * time.Hour),
			SignalTTL:     Duration(4 * time.Hour),
			CacheTTL:      Duration(5 * time.Minute),
			StatePath:     "./engine-state.json",
			Strategies:    []string{"momentum", "breakout", "mean_reversion"},
		},
		Strategy: strategies.DefaultConfig(),
		Alpaca: AlpacaConfig{
			BaseURL: "https://paper-api.alpaca.markets",
			Paper:   true,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./trader-journal.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadCredentials reads the Alpaca keys from the environment, consulting a
// .env file first when one exists.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load()

	creds := Credentials{
		APIKey:    os.Getenv("APCA_API_KEY_ID"),
		APISecret: os.Getenv("APCA_API_SECRET_KEY"),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return Credentials{}, fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set")
	}
	return creds, nil
}
