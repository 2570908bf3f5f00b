package gateway

// PivotLevels are the classic floor-trader levels plus the 38.2% Fibonacci
// retracement band, computed from the prior session bar.
type PivotLevels struct {
	Pivot float64
	R1    float64
	R2    float64
	S1    float64
	S2    float64
	RFib  float64
	SFib  float64
}

func ComputePivots(high, low, close float64) PivotLevels {
	pivot := (high + low + close) / 3
	rangeHL := high - low
	return PivotLevels{
		Pivot: pivot,
		R1:    2*pivot - low,
		R2:    pivot + rangeHL,
		S1:    2*pivot - high,
		S2:    pivot - rangeHL,
		RFib:  close + 0.382*rangeHL,
		SFib:  close - 0.382*rangeHL,
	}
}
