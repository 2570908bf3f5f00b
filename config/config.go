// Package config loads and validates the engine configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"goldengine/market"
)

// Config is the complete engine configuration.
type Config struct {
	Account  AccountConfig                    `json:"account" yaml:"account"`
	Strategy StrategyConfig                   `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig                       `json:"risk" yaml:"risk"`
	Feeds    []FeedConfig                     `json:"feeds" yaml:"feeds"`
	Journal  JournalConfig                    `json:"journal" yaml:"journal"`
	Gateway  GatewayConfig                    `json:"gateway" yaml:"gateway"`
	State    StateConfig                      `json:"state" yaml:"state"`
	Metrics  MetricsConfig                    `json:"metrics" yaml:"metrics"`
	Log      LogConfig                        `json:"log" yaml:"log"`
	Override map[string]market.InstrumentMeta `json:"instruments,omitempty" yaml:"instruments,omitempty"`
}

// AccountConfig seeds the account on first start.
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// StrategyConfig selects and tunes the intent source.
type StrategyConfig struct {
	Name       string  `json:"name" yaml:"name"` // "noop" or "ema-cross"
	FastPeriod int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	ATRPeriod  int     `json:"atr_period,omitempty" yaml:"atr_period,omitempty"`
	StopATR    float64 `json:"stop_atr,omitempty" yaml:"stop_atr,omitempty"`
	RewardRisk float64 `json:"reward_risk,omitempty" yaml:"reward_risk,omitempty"`
	AllowShort bool    `json:"allow_short,omitempty" yaml:"allow_short,omitempty"`
}

// RiskConfig holds the sizing and circuit-breaker parameters.
type RiskConfig struct {
	RiskPercent      float64 `json:"risk_percent" yaml:"risk_percent"`
	DailyLossLimit   float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	MaxDrawdownLimit float64 `json:"max_drawdown_limit" yaml:"max_drawdown_limit"`
	MinRewardRisk    float64 `json:"min_reward_risk" yaml:"min_reward_risk"`
}

// FeedConfig wires one symbol's market-data file.
type FeedConfig struct {
	Symbol       string `json:"symbol" yaml:"symbol"`
	Path         string `json:"path" yaml:"path"`
	PollInterval string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	ErrorBackoff string `json:"error_backoff,omitempty" yaml:"error_backoff,omitempty"`
	MaxLatency   string `json:"max_latency" yaml:"max_latency"`
}

// Durations parses the feed's interval strings; empty strings return zero and
// the caller's defaults apply.
func (f FeedConfig) Durations() (poll, backoff, maxLatency time.Duration, err error) {
	parse := func(s string) (time.Duration, error) {
		if s == "" {
			return 0, nil
		}
		return time.ParseDuration(s)
	}
	if poll, err = parse(f.PollInterval); err != nil {
		return
	}
	if backoff, err = parse(f.ErrorBackoff); err != nil {
		return
	}
	maxLatency, err = parse(f.MaxLatency)
	return
}

// JournalConfig selects the audit backend.
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv", "sqlite", or "none"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile    string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DecisionsFile string `json:"decisions_file,omitempty" yaml:"decisions_file,omitempty"`
}

// GatewayConfig tunes the pre-trade checks.
type GatewayConfig struct {
	CalendarBlackout string  `json:"calendar_blackout,omitempty" yaml:"calendar_blackout,omitempty"`
	MaxCurrencyMove  float64 `json:"max_currency_move,omitempty" yaml:"max_currency_move,omitempty"`
}

// StateConfig locates the durable state store.
type StateConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// MetricsConfig exposes the Prometheus endpoint; empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
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

// SaveToFile writes the configuration, YAML for .yaml/.yml and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Instruments merges the built-in instrument table with any overrides.
func (c *Config) Instruments() map[string]market.InstrumentMeta {
	out := make(map[string]market.InstrumentMeta, len(market.Instruments))
	for sym, meta := range market.Instruments {
		out[sym] = meta
	}
	for sym, meta := range c.Override {
		out[sym] = meta
	}
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	switch c.Strategy.Name {
	case "", "noop", "none", "ema-cross", "emacross":
	default:
		return fmt.Errorf("unknown strategy: %s", c.Strategy.Name)
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 1 {
		return fmt.Errorf("risk.risk_percent must be between 0 and 1")
	}
	if c.Risk.DailyLossLimit <= 0 || c.Risk.DailyLossLimit >= 1 {
		return fmt.Errorf("risk.daily_loss_limit must be between 0 and 1")
	}
	if c.Risk.MaxDrawdownLimit <= 0 || c.Risk.MaxDrawdownLimit >= 1 {
		return fmt.Errorf("risk.max_drawdown_limit must be between 0 and 1")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}

	instruments := c.Instruments()
	for i, f := range c.Feeds {
		if f.Symbol == "" {
			return fmt.Errorf("feeds[%d].symbol is required", i)
		}
		if _, ok := instruments[f.Symbol]; !ok {
			return fmt.Errorf("unknown instrument: %s", f.Symbol)
		}
		if f.Path == "" {
			return fmt.Errorf("feeds[%d].path is required", i)
		}
		if f.MaxLatency == "" {
			return fmt.Errorf("feeds[%d].max_latency is required", i)
		}
		if _, _, _, err := f.Durations(); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" || c.Journal.DecisionsFile == "" {
			return fmt.Errorf("journal trades_file, equity_file, and decisions_file required for csv type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', or 'none'")
	}

	if c.Gateway.CalendarBlackout != "" {
		if _, err := time.ParseDuration(c.Gateway.CalendarBlackout); err != nil {
			return fmt.Errorf("gateway.calendar_blackout: %w", err)
		}
	}
	if c.State.DBPath == "" {
		return fmt.Errorf("state.db_path is required")
	}
	return nil
}

// Default returns a runnable configuration for a single gold feed.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency: "USD",
			Balance:  100000,
		},
		Strategy: StrategyConfig{
			Name:       "ema-cross",
			FastPeriod: 9,
			SlowPeriod: 21,
			ATRPeriod:  14,
			StopATR:    1.5,
			RewardRisk: 2.0,
		},
		Risk: RiskConfig{
			RiskPercent:      0.01,
			DailyLossLimit:   0.02,
			MaxDrawdownLimit: 0.05,
			MinRewardRisk:    1.5,
		},
		Feeds: []FeedConfig{{
			Symbol:       "XAUUSD",
			Path:         "./data/xauusd.csv",
			PollInterval: "100ms",
			ErrorBackoff: "1s",
			MaxLatency:   "5m",
		}},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./journal.db",
		},
		Gateway: GatewayConfig{
			CalendarBlackout: "30m",
			MaxCurrencyMove:  0.5,
		},
		State: StateConfig{
			DBPath: "./state.db",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
