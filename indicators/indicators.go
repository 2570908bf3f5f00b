// Package indicators computes the technical values the strategies and the
// gateway's confluence check vote on. All functions operate on sanitized
// candles; they return an error rather than a guess when the window is short.
package indicators

import (
	"fmt"
	"math"

	"goldengine/market"
)

// SMA is the simple moving average of the last period closes.
func SMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA is the exponential moving average over all candles, seeded with the SMA
// of the first period closes.
func EMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period, len(candles))
	}

	multiplier := 2.0 / float64(period+1)

	ema := 0.0
	for i := 0; i < period; i++ {
		ema += candles[i].Close
	}
	ema /= float64(period)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI is Wilder's relative strength index of the last period changes.
func RSI(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		g, l := 0.0, 0.0
		if delta > 0 {
			g = delta
		} else {
			l = -delta
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// MACD returns the MACD line (fast EMA − slow EMA) and its signal line.
func MACD(candles []market.Candle, fast, slow, signal int) (line, signalLine float64, err error) {
	if fast >= slow {
		return 0, 0, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	if len(candles) < slow+signal {
		return 0, 0, fmt.Errorf("not enough candles: need %d, got %d", slow+signal, len(candles))
	}

	// Build the MACD series over the tail so the signal EMA has history.
	var series []float64
	for i := slow; i <= len(candles); i++ {
		f, err := EMA(candles[:i], fast)
		if err != nil {
			return 0, 0, err
		}
		s, err := EMA(candles[:i], slow)
		if err != nil {
			return 0, 0, err
		}
		series = append(series, f-s)
	}

	line = series[len(series)-1]

	multiplier := 2.0 / float64(signal+1)
	sig := 0.0
	for i := 0; i < signal; i++ {
		sig += series[i]
	}
	sig /= float64(signal)
	for i := signal; i < len(series); i++ {
		sig = (series[i]-sig)*multiplier + sig
	}
	return line, sig, nil
}

// ATR is Wilder's average true range for the given period.
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1]))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr, nil
}

func trueRange(c, prev market.Candle) float64 {
	a := c.High - c.Low
	b := math.Abs(c.High - prev.Close)
	d := math.Abs(c.Low - prev.Close)
	return math.Max(a, math.Max(b, d))
}
