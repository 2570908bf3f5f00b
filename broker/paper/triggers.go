package paper

import (
	"context"

	"goldengine/broker"
	"goldengine/market"
	"goldengine/store"
)

// CheckLimits replays exchange-side bracket behavior against the current
// price: it fires the open position's stop or target, then sweeps resting
// limit orders whose trigger price has been reached. The decision loop calls
// it once per tick before evaluating fresh intents.
func (e *Engine) CheckLimits(ctx context.Context, symbol string, price float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sweepPosition(ctx, symbol, price); err != nil {
		return err
	}
	return e.sweepPendingOrders(ctx, symbol, price)
}

func (e *Engine) sweepPosition(ctx context.Context, symbol string, price float64) error {
	pos, open, err := e.store.GetOpenPosition(symbol)
	if err != nil {
		return err
	}
	if !open {
		return nil
	}

	trigger, reason := hitBracket(pos, price)
	if reason == "" {
		return nil
	}

	// Fill at the bracket level, not the observed price: the simulated venue
	// honors the resting stop/target exactly.
	_, err = e.closeLocked(ctx, pos, trigger, 0, reason)
	return err
}

func hitBracket(pos store.Position, price float64) (level float64, reason string) {
	switch pos.Direction {
	case market.Long:
		if price <= pos.StopPrice {
			return pos.StopPrice, ReasonStopLoss
		}
		if pos.TargetPrice > 0 && price >= pos.TargetPrice {
			return pos.TargetPrice, ReasonTakeProfit
		}
	case market.Short:
		if price >= pos.StopPrice {
			return pos.StopPrice, ReasonStopLoss
		}
		if pos.TargetPrice > 0 && price <= pos.TargetPrice {
			return pos.TargetPrice, ReasonTakeProfit
		}
	}
	return 0, ""
}

func (e *Engine) sweepPendingOrders(ctx context.Context, symbol string, price float64) error {
	orders, err := e.store.ListPendingOrders(symbol)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if !limitReached(o, price) {
			continue
		}
		if err := e.store.RemovePendingOrder(o.ID); err != nil {
			return err
		}

		action := broker.Buy
		if o.Direction == market.Short {
			action = broker.Sell
		}
		_, err := e.placeLocked(ctx, broker.OrderRequest{
			Action: action,
			Symbol: o.Symbol,
			Price:  o.LimitPrice,
			Qty:    o.Size,
			Stop:   o.Stop,
			Target: o.Target,
			Kind:   broker.Market,
		}, ReasonSignalExit)
		if err != nil {
			// The order is already consumed; the rejection is logged by the
			// execution path and the sweep carries on.
			e.log.Warn().Err(err).Int64("order_id", o.ID).Str("symbol", o.Symbol).
				Msg("triggered limit order rejected")
		}
		// One fill per sweep per symbol: an open position blocks further fills.
		break
	}
	return nil
}

func limitReached(o store.PendingOrder, price float64) bool {
	if o.Direction == market.Long {
		return price <= o.LimitPrice
	}
	return price >= o.LimitPrice
}
