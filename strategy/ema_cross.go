package strategy

import (
	"goldengine/broker"
	"goldengine/feed"
	"goldengine/gateway"
	"goldengine/indicators"
	"goldengine/market"
	"goldengine/store"
)

// EMACrossConfig tunes the crossover strategy.
type EMACrossConfig struct {
	FastPeriod int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod int     `json:"slow_period" yaml:"slow_period"`
	ATRPeriod  int     `json:"atr_period" yaml:"atr_period"`
	StopATR    float64 `json:"stop_atr" yaml:"stop_atr"`       // stop distance in ATR multiples
	RewardRisk float64 `json:"reward_risk" yaml:"reward_risk"` // target as a multiple of stop distance
	AllowShort bool    `json:"allow_short" yaml:"allow_short"`
}

func EMACrossDefaults() EMACrossConfig {
	return EMACrossConfig{
		FastPeriod: 9,
		SlowPeriod: 21,
		ATRPeriod:  14,
		StopATR:    1.5,
		RewardRisk: 2.0,
		AllowShort: false,
	}
}

// EMACross enters on a fast/slow EMA crossover and exits on the opposite
// cross; stops and targets ride as bracket levels on the position. The
// indicator state it computed goes out with the intent so the gateway's
// confluence check votes on the same numbers the entry was based on.
type EMACross struct {
	cfg EMACrossConfig

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(cfg EMACrossConfig) *EMACross {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= cfg.FastPeriod {
		cfg.FastPeriod = 9
		cfg.SlowPeriod = 21
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.StopATR <= 0 {
		cfg.StopATR = 1.5
	}
	if cfg.RewardRisk <= 0 {
		cfg.RewardRisk = 2.0
	}
	return &EMACross{cfg: cfg}
}

func (e *EMACross) Decide(snap feed.Snapshot, pos *store.Position) Intent {
	candles := snap.Rows
	if len(candles) < e.cfg.SlowPeriod+1 {
		return Hold
	}

	fast, err := indicators.EMA(candles, e.cfg.FastPeriod)
	if err != nil {
		return Hold
	}
	slow, err := indicators.EMA(candles, e.cfg.SlowPeriod)
	if err != nil {
		return Hold
	}

	diff := fast - slow
	crossedUp := e.haveLastDiff && e.lastDiff <= 0 && diff > 0
	crossedDown := e.haveLastDiff && e.lastDiff >= 0 && diff < 0
	e.lastDiff = diff
	e.haveLastDiff = true

	if !crossedUp && !crossedDown {
		return Hold
	}

	atr, err := indicators.ATR(candles, e.cfg.ATRPeriod)
	if err != nil || atr <= 0 {
		return Hold
	}

	ind := e.indicatorState(candles, fast, slow)
	price := candles[len(candles)-1].Close

	if crossedDown {
		if pos != nil {
			// Opposite cross flattens whatever is open.
			return Intent{Action: broker.Sell, ATR: atr, Indicators: ind}
		}
		if !e.cfg.AllowShort {
			return Hold
		}
		stop := price + e.cfg.StopATR*atr
		return Intent{
			Action:     broker.Sell,
			Stop:       stop,
			Target:     price - e.cfg.RewardRisk*(stop-price),
			ATR:        atr,
			Indicators: ind,
		}
	}

	if pos != nil {
		if pos.Direction == market.Short {
			return Intent{Action: broker.Buy, ATR: atr, Indicators: ind}
		}
		return Hold
	}
	stop := price - e.cfg.StopATR*atr
	return Intent{
		Action:     broker.Buy,
		Stop:       stop,
		Target:     price + e.cfg.RewardRisk*(price-stop),
		ATR:        atr,
		Indicators: ind,
	}
}

func (e *EMACross) indicatorState(candles []market.Candle, fast, slow float64) gateway.Indicators {
	ind := gateway.Indicators{EMAFast: fast, EMASlow: slow}
	if rsi, err := indicators.RSI(candles, 14); err == nil {
		ind.RSI = rsi
	}
	if line, signal, err := indicators.MACD(candles, 12, 26, 9); err == nil {
		ind.MACD = line
		ind.MACDSignal = signal
	}
	return ind
}
