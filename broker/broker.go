// Package broker defines the execution contract shared by interchangeable
// broker implementations. A strategy wired against this interface cannot tell
// a paper engine from a live bridge.
package broker

import (
	"context"

	"goldengine/market"
	"goldengine/store"
)

// Action is the decision source's intent.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// OrderKind selects immediate execution or a resting limit order.
type OrderKind string

const (
	Market OrderKind = "MARKET"
	Limit  OrderKind = "LIMIT"
)

// OrderRequest is a trading intent presented for execution. Price is the
// reference price the decision was made at; the fill will differ by spread
// and slippage. ATR, when supplied, drives the volatility component of
// simulated slippage.
type OrderRequest struct {
	Action Action
	Symbol string
	Price  float64
	Qty    float64
	Stop   float64 // 0 means unset
	Target float64 // 0 means unset
	Kind   OrderKind
	ATR    float64
}

// OrderResult reports the execution outcome.
type OrderResult struct {
	Accepted   bool
	Ticket     string
	FillPrice  float64
	RealizedPL float64 // set when the order closed a position
	Reason     string  // rejection reason, or closing reason on a close fill
}

// AccountState is the read-only query surface: equity, balance, the open
// position (nil when flat), and resting orders for one symbol.
type AccountState struct {
	Equity   float64
	Balance  float64
	Position *store.Position
	Orders   []store.PendingOrder
}

// Broker is the four-operation execution contract.
type Broker interface {
	Connect(ctx context.Context) error
	GetTick(ctx context.Context, symbol string) (market.Tick, error)
	GetPositions(ctx context.Context, symbol string) (AccountState, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// LimitChecker is implemented by brokers that simulate exchange-side brackets:
// the decision loop calls it every tick so stops, targets, and resting limit
// orders fire without a live venue.
type LimitChecker interface {
	CheckLimits(ctx context.Context, symbol string, price float64) error
}
