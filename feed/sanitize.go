package feed

import (
	"math"
	"strconv"
	"time"

	"goldengine/market"
)

// Sanitize turns raw rows into clean candles:
//
//  1. coerce OHLC to numeric; anything unparseable becomes missing
//  2. a zero price is missing (zero volume is fine)
//  3. forward-fill missing prices from the prior row
//  4. drop rows whose OHLC is still missing after the fill
//
// The decision loop must never see a NaN or a zero price.
func Sanitize(rows []RawRow) []market.Candle {
	out := make([]market.Candle, 0, len(rows))
	prev := [4]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}

	for _, row := range rows {
		prices := [4]float64{
			coercePrice(row.Open),
			coercePrice(row.High),
			coercePrice(row.Low),
			coercePrice(row.Close),
		}

		complete := true
		for i := range prices {
			if math.IsNaN(prices[i]) {
				prices[i] = prev[i]
			}
			if math.IsNaN(prices[i]) {
				complete = false
			}
		}
		if !complete {
			continue
		}
		prev = prices

		out = append(out, market.Candle{
			Time:   parseTime(row.Time),
			Open:   prices[0],
			High:   prices[1],
			Low:    prices[2],
			Close:  prices[3],
			Volume: coerceVolume(row.Volume),
		})
	}
	return out
}

func coercePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return math.NaN()
	}
	return v
}

func coerceVolume(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
