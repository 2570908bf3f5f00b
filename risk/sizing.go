// Package risk sizes positions from equity and stop distance, validates trade
// setups, and tracks account health through the circuit breaker.
package risk

import (
	"math"

	"goldengine/market"
)

// Binding constraints reported for audit.
const (
	ConstraintRisk   = "RISK"
	ConstraintMargin = "MARGIN"
)

// SizeInputs feeds one lot-size calculation.
type SizeInputs struct {
	Equity     float64
	EntryPrice float64
	StopPrice  float64
	RiskPct    float64
	Meta       market.InstrumentMeta
}

// SizeResult is the computed size plus the constraint that bound it.
type SizeResult struct {
	Lots       float64
	RiskAmount float64
	Constraint string
}

// CalculateLotSize returns the largest size that keeps the loss at the stop
// within RiskPct of equity and the margin requirement within the usable
// fraction of equity. Deterministic, and non-increasing in stop distance.
// A stop closer to entry than one tick returns zero lots.
func CalculateLotSize(in SizeInputs) SizeResult {
	meta := in.Meta

	dist := math.Abs(in.EntryPrice - in.StopPrice)
	if dist < meta.TickSize {
		return SizeResult{}
	}

	riskAmount := in.Equity * in.RiskPct
	lossPerLot := dist * meta.ContractSize
	if lossPerLot <= 0 {
		return SizeResult{}
	}
	riskLots := riskAmount / lossPerLot

	marginPerLot := in.EntryPrice * meta.ContractSize / meta.Leverage
	if marginPerLot <= 0 {
		return SizeResult{}
	}
	usable := in.Equity * (1 - meta.MarginBuffer)
	marginLots := usable / marginPerLot

	lots := riskLots
	constraint := ConstraintRisk
	if marginLots < riskLots {
		lots = marginLots
		constraint = ConstraintMargin
	}

	if meta.SizeStep > 0 {
		// The epsilon keeps an exact multiple from flooring down a step.
		lots = math.Floor(lots/meta.SizeStep+1e-9) * meta.SizeStep
	}
	// The final size always lands inside the venue's [MinSize, MaxSize]
	// bounds: a sub-minimum computation trades at the minimum rather than
	// not at all.
	if lots < meta.MinSize {
		lots = meta.MinSize
	}
	if lots > meta.MaxSize {
		lots = meta.MaxSize
	}

	return SizeResult{Lots: lots, RiskAmount: riskAmount, Constraint: constraint}
}

// ValidateSetup checks the reward:risk of a proposed entry/stop/target.
func ValidateSetup(entry, stop, target, minRR float64) (bool, float64) {
	riskDist := math.Abs(entry - stop)
	if riskDist == 0 {
		return false, 0
	}
	rr := math.Abs(target-entry) / riskDist
	return rr >= minRR, rr
}
