// market/candle.go
package market

import "time"

// Candle is one sanitized OHLCV row. Volume may legitimately be zero;
// prices may not (the feed's sanitizer enforces that).
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Direction of a position or order.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Opposite returns the closing direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}
