package paper

import "goldengine/market"

// Slippage model: a volatility component scaled off ATR when the caller
// supplies one, otherwise a bounded random jitter, plus a small non-negative
// latency drift. Both components move the fill against the trader.
const (
	atrSlippageFactor    = 0.1
	maxJitterTicks       = 5.0
	maxLatencyDriftTicks = 2.0
)

func (e *Engine) slippage(meta market.InstrumentMeta, atr float64) float64 {
	var vol float64
	if atr > 0 {
		vol = atr * atrSlippageFactor
	} else {
		vol = e.rng.Float64() * maxJitterTicks * meta.TickSize
	}
	drift := e.rng.Float64() * maxLatencyDriftTicks * meta.TickSize
	return vol + drift
}

// entryFill worsens the reference price by spread plus slippage in the
// direction of the entry: a LONG pays up, a SHORT sells down.
func (e *Engine) entryFill(ref float64, dir market.Direction, meta market.InstrumentMeta, atr float64) float64 {
	adj := meta.Spread + e.slippage(meta, atr)
	if dir == market.Short {
		return ref - adj
	}
	return ref + adj
}

// exitFill worsens the reference price against the side being closed: closing
// a LONG sells down, closing a SHORT buys up.
func (e *Engine) exitFill(ref float64, dir market.Direction, meta market.InstrumentMeta, atr float64) float64 {
	adj := meta.Spread + e.slippage(meta, atr)
	if dir == market.Short {
		return ref + adj
	}
	return ref - adj
}
