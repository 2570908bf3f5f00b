// journal/journal.go
package journal

import (
	"time"

	"goldengine/market"
)

// TradeRecord is the audit entry appended for every closed trade.
type TradeRecord struct {
	Ticket     string
	Symbol     string
	Direction  market.Direction
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
	Reason     string
}

// EquitySnapshot is appended on every equity change.
type EquitySnapshot struct {
	Time    time.Time
	Equity  float64
	Balance float64
}

// DecisionRecord preserves one gateway run: the aggregate verdict, the failed
// check names, and the full per-check diagnostics as JSON.
type DecisionRecord struct {
	Time    time.Time
	Symbol  string
	Verdict string
	Failed  []string
	Details string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordDecision(DecisionRecord) error
	Close() error
}

// Nop discards all records; handy for tests and dry runs.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error       { return nil }
func (Nop) RecordEquity(EquitySnapshot) error   { return nil }
func (Nop) RecordDecision(DecisionRecord) error { return nil }
func (Nop) Close() error                        { return nil }
