package feed

import (
	"fmt"
	"time"
)

// StaleError reports a feed whose source stopped updating. The decision loop
// must suspend evaluation while a feed is stale rather than trade blind.
type StaleError struct {
	Symbol  string
	Latency time.Duration
	Max     time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale feed %s: lag %s exceeds %s", e.Symbol, e.Latency.Round(time.Millisecond), e.Max)
}

// Heartbeat checks one feed's liveness. MaxLatency is tunable per feed type
// (a daily file tolerates minutes, a live tick stream seconds).
type Heartbeat struct {
	Symbol     string
	Source     Source
	MaxLatency time.Duration
	Now        func() time.Time // nil means time.Now
}

// Check returns nil while the source is fresh, a *StaleError when it lags, and
// a plain error when the source is missing entirely.
func (h Heartbeat) Check() error {
	modified, err := h.Source.LastModified()
	if err != nil {
		return fmt.Errorf("heartbeat %s: source unavailable: %w", h.Symbol, err)
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	latency := now().Sub(modified)
	if latency > h.MaxLatency {
		return &StaleError{Symbol: h.Symbol, Latency: latency, Max: h.MaxLatency}
	}
	return nil
}
