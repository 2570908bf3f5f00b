package risk

import (
	"fmt"
	"sync"
)

// CircuitBreaker is the session kill switch: it trips when the day's loss from
// starting equity or the drawdown from the trailing high-water mark breaches
// its limit. The session is the process lifetime; halt state is not persisted
// across restarts (see DESIGN.md).
type CircuitBreaker struct {
	mu               sync.Mutex
	startingEquity   float64
	highWaterMark    float64
	dailyLossLimit   float64
	maxDrawdownLimit float64
}

func NewCircuitBreaker(initialEquity, dailyLossLimit, maxDrawdownLimit float64) *CircuitBreaker {
	return &CircuitBreaker{
		startingEquity:   initialEquity,
		highWaterMark:    initialEquity,
		dailyLossLimit:   dailyLossLimit,
		maxDrawdownLimit: maxDrawdownLimit,
	}
}

// CheckHealth re-evaluates account health at currentEquity. The high-water
// mark only ever rises, so once drawdown trips, health stays false until
// equity recovers relative to the frozen mark.
func (cb *CircuitBreaker) CheckHealth(currentEquity float64) (bool, string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if currentEquity > cb.highWaterMark {
		cb.highWaterMark = currentEquity
	}

	lossPct := (cb.startingEquity - currentEquity) / cb.startingEquity
	if lossPct >= cb.dailyLossLimit {
		return false, fmt.Sprintf("daily loss limit hit (-%.2f%%)", lossPct*100)
	}

	drawdownPct := (cb.highWaterMark - currentEquity) / cb.highWaterMark
	if drawdownPct >= cb.maxDrawdownLimit {
		return false, fmt.Sprintf("max drawdown limit hit (-%.2f%%)", drawdownPct*100)
	}

	return true, "healthy"
}

// HighWaterMark returns the trailing equity peak.
func (cb *CircuitBreaker) HighWaterMark() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.highWaterMark
}
