// Package strategy turns market snapshots into trading intents. The engine
// treats a Source as a pure decision function; execution, sizing, and
// authorization all live elsewhere.
package strategy

import (
	"fmt"
	"strings"

	"goldengine/broker"
	"goldengine/feed"
	"goldengine/gateway"
	"goldengine/store"
)

// Intent is one decision for the current tick. A HOLD action carries no other
// meaning; BUY/SELL against an open opposite position closes it.
type Intent struct {
	Action     broker.Action
	Stop       float64
	Target     float64
	ATR        float64
	Indicators gateway.Indicators
}

// Hold is the no-op intent.
var Hold = Intent{Action: broker.Hold}

// Source decides once per tick from the latest snapshot and current position.
type Source interface {
	Decide(snap feed.Snapshot, pos *store.Position) Intent
}

// ByName builds a named strategy.
func ByName(name string, cfg EMACrossConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none", "":
		return Noop{}, nil
	case "ema-cross", "emacross":
		return NewEMACross(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Noop never trades. Useful for running the engine as a pure
// bracket-and-journal machine over positions opened elsewhere.
type Noop struct{}

func (Noop) Decide(feed.Snapshot, *store.Position) Intent { return Hold }
