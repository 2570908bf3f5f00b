package broker

import (
	"errors"
	"fmt"
)

// ErrTradingHalted rejects new entries while the circuit breaker is tripped.
// Closing fills are never gated by it.
var ErrTradingHalted = errors.New("trading halted by circuit breaker")

// ValidationError is a malformed or risk-violating intent. Nothing was
// mutated; the caller may re-decide next tick.
type ValidationError struct {
	Symbol string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order %s: %s", e.Symbol, e.Reason)
}

// MarginError rejects an order the account cannot carry.
type MarginError struct {
	Symbol   string
	Required float64
	Equity   float64
}

func (e *MarginError) Error() string {
	return fmt.Sprintf("insufficient margin %s: required %.2f, equity %.2f", e.Symbol, e.Required, e.Equity)
}
