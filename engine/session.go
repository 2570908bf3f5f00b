package engine

import "goldengine/market"

// prevSessionBar aggregates the most recent completed calendar day into one
// bar for the pivot calculation. Rows without timestamps fall back to the
// last candle before the current one.
func prevSessionBar(rows []market.Candle) market.Candle {
	if len(rows) < 2 {
		return market.Candle{}
	}

	last := rows[len(rows)-1]
	if last.Time.IsZero() {
		return rows[len(rows)-2]
	}

	curY, curM, curD := last.Time.Date()
	var (
		bar   market.Candle
		found bool
	)
	for i := len(rows) - 2; i >= 0; i-- {
		c := rows[i]
		y, m, d := c.Time.Date()
		if y == curY && m == curM && d == curD {
			continue
		}
		if !found {
			// First row of the prior day seen (walking backwards): its close
			// is the session close.
			bar = c
			found = true
			continue
		}
		py, pm, pd := bar.Time.Date()
		if y != py || m != pm || d != pd {
			break
		}
		if c.High > bar.High {
			bar.High = c.High
		}
		if c.Low < bar.Low {
			bar.Low = c.Low
		}
		bar.Open = c.Open
		bar.Volume += c.Volume
	}
	if !found {
		return rows[len(rows)-2]
	}
	return bar
}
