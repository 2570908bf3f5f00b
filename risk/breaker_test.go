package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerHealthyWithinLimits(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(100000, 0.02, 0.05)

	healthy, reason := cb.CheckHealth(99500)
	assert.True(t, healthy, reason)
}

func TestBreakerDailyLossLimit(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(100000, 0.02, 0.10)

	healthy, _ := cb.CheckHealth(98001)
	assert.True(t, healthy)

	healthy, reason := cb.CheckHealth(98000)
	assert.False(t, healthy)
	assert.Contains(t, reason, "daily loss")
}

func TestBreakerHighWaterMarkNeverDecreases(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(100000, 0.50, 0.50)

	for _, equity := range []float64{101000, 105000, 99000, 104000, 90000} {
		cb.CheckHealth(equity)
	}
	assert.InDelta(t, 105000, cb.HighWaterMark(), 1e-9)
}

func TestBreakerDrawdownLatchesUntilRecovery(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(100000, 0.90, 0.05) // daily limit out of the way

	cb.CheckHealth(110000) // high-water mark 110k

	// 5% below the mark trips.
	healthy, reason := cb.CheckHealth(104500)
	assert.False(t, healthy)
	assert.Contains(t, reason, "drawdown")

	// Still below the frozen mark: remains unhealthy.
	healthy, _ = cb.CheckHealth(104400)
	assert.False(t, healthy)

	// Equity recovers relative to the mark: healthy again.
	healthy, _ = cb.CheckHealth(109000)
	assert.True(t, healthy)
	assert.InDelta(t, 110000, cb.HighWaterMark(), 1e-9)
}
