// Package engine owns the per-symbol decision loops: it keeps the feed
// pollers running, enforces heartbeat gating, sweeps brackets every tick, and
// routes strategy intents through the gateway and risk sizing into the broker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"goldengine/broker"
	"goldengine/feed"
	"goldengine/gateway"
	"goldengine/market"
	"goldengine/risk"
	"goldengine/store"
	"goldengine/strategy"
)

const defaultDecideInterval = time.Second

// SnapshotSource yields the latest published snapshot; *feed.Buffer satisfies it.
type SnapshotSource interface {
	Latest() (feed.Snapshot, bool)
}

// HeartbeatChecker reports feed liveness; feed.Heartbeat satisfies it.
type HeartbeatChecker interface {
	Check() error
}

// Runner is a background task the engine supervises; *feed.Buffer satisfies it.
type Runner interface {
	Run(ctx context.Context) error
}

// SymbolFeed bundles one symbol's market-data plumbing.
type SymbolFeed struct {
	Snapshots SnapshotSource
	Heartbeat HeartbeatChecker
	Poller    Runner // nil when the source needs no background task
}

// Config wires an Engine.
type Config struct {
	Instruments    map[string]market.InstrumentMeta
	Broker         broker.Broker
	Limits         broker.LimitChecker
	Gateway        *gateway.Gateway
	Feeds          map[string]SymbolFeed
	Strategies     map[string]strategy.Source
	RiskPct        float64
	DecideInterval time.Duration
	Log            zerolog.Logger
}

type Engine struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	stale   map[string]bool // symbols currently suspended by heartbeat
}

func New(cfg Config) (*Engine, error) {
	if cfg.Broker == nil {
		return nil, errors.New("engine: broker is required")
	}
	if len(cfg.Feeds) == 0 {
		return nil, errors.New("engine: at least one feed is required")
	}
	for sym := range cfg.Feeds {
		if _, ok := cfg.Instruments[sym]; !ok {
			return nil, fmt.Errorf("engine: no instrument metadata for %s", sym)
		}
	}
	if cfg.DecideInterval <= 0 {
		cfg.DecideInterval = defaultDecideInterval
	}
	if cfg.RiskPct <= 0 {
		cfg.RiskPct = 0.01
	}
	return &Engine{
		cfg:   cfg,
		log:   cfg.Log.With().Str("component", "engine").Logger(),
		stale: make(map[string]bool),
	}, nil
}

// Run reconciles persisted state, starts the feed pollers and one decision
// loop per symbol, and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.cfg.Broker.Connect(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.reconcile(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for sym, f := range e.cfg.Feeds {
		if f.Poller == nil {
			continue
		}
		wg.Add(1)
		go func(sym string, r Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.log.Error().Err(err).Str("symbol", sym).Msg("feed poller exited")
			}
		}(sym, f.Poller)
	}

	for sym := range e.cfg.Feeds {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			e.loop(ctx, sym)
		}(sym)
	}

	wg.Wait()
	return ctx.Err()
}

// reconcile adopts whatever the store already holds: an open position from a
// prior run stays managed rather than being assumed away.
func (e *Engine) reconcile(ctx context.Context) error {
	for sym := range e.cfg.Feeds {
		state, err := e.cfg.Broker.GetPositions(ctx, sym)
		if err != nil {
			return fmt.Errorf("engine: reconcile %s: %w", sym, err)
		}
		if state.Position != nil {
			e.log.Info().
				Str("symbol", sym).Str("ticket", state.Position.Ticket).
				Str("direction", string(state.Position.Direction)).
				Float64("size", state.Position.Size).
				Msg("adopted open position from store")
		}
		if n := len(state.Orders); n > 0 {
			e.log.Info().Str("symbol", sym).Int("orders", n).Msg("adopted pending orders from store")
		}
	}
	return nil
}

func (e *Engine) loop(ctx context.Context, symbol string) {
	ticker := time.NewTicker(e.cfg.DecideInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.step(ctx, symbol); err != nil {
				e.log.Warn().Err(err).Str("symbol", symbol).Msg("decision step failed")
			}
		}
	}
}

// step is one decision-loop iteration for one symbol.
func (e *Engine) step(ctx context.Context, symbol string) error {
	f := e.cfg.Feeds[symbol]
	meta := e.cfg.Instruments[symbol]

	if err := f.Heartbeat.Check(); err != nil {
		e.markStale(symbol, err)
		return nil
	}
	e.markFresh(symbol)

	snap, ok := f.Snapshots.Latest()
	if !ok {
		return nil
	}
	tick, ok := snap.Tick(meta)
	if !ok {
		return nil
	}

	// Brackets and resting orders fire before any new decision.
	if e.cfg.Limits != nil {
		if err := e.cfg.Limits.CheckLimits(ctx, symbol, tick.Mid()); err != nil {
			return fmt.Errorf("trigger sweep: %w", err)
		}
	}

	strat, ok := e.cfg.Strategies[symbol]
	if !ok {
		return nil
	}

	state, err := e.cfg.Broker.GetPositions(ctx, symbol)
	if err != nil {
		return err
	}

	intent := strat.Decide(snap, state.Position)
	if intent.Action == broker.Hold {
		return nil
	}

	if closes(state.Position, intent.Action) {
		return e.close(ctx, symbol, state.Position, tick, intent)
	}
	return e.open(ctx, symbol, meta, state, snap, tick, intent)
}

func closes(pos *store.Position, action broker.Action) bool {
	if pos == nil {
		return false
	}
	if pos.Direction == market.Long {
		return action == broker.Sell
	}
	return action == broker.Buy
}

func (e *Engine) close(ctx context.Context, symbol string, pos *store.Position, tick market.Tick, intent strategy.Intent) error {
	res, err := e.cfg.Broker.PlaceOrder(ctx, broker.OrderRequest{
		Action: intent.Action,
		Symbol: symbol,
		Price:  tick.Mid(),
		Qty:    pos.Size,
		Kind:   broker.Market,
		ATR:    intent.ATR,
	})
	if err != nil {
		return fmt.Errorf("close %s: %w", symbol, err)
	}
	e.log.Info().Str("symbol", symbol).Float64("pnl", res.RealizedPL).Msg("position flattened on signal")
	return nil
}

func (e *Engine) open(ctx context.Context, symbol string, meta market.InstrumentMeta, state broker.AccountState, snap feed.Snapshot, tick market.Tick, intent strategy.Intent) error {
	ref := tick.Mid()

	decision := gateway.Decision{Verdict: gateway.VerdictGo}
	if e.cfg.Gateway != nil {
		decision = e.cfg.Gateway.Evaluate(ctx, gateway.Input{
			Symbol:     symbol,
			Equity:     state.Equity,
			Entry:      ref,
			Stop:       intent.Stop,
			Target:     intent.Target,
			RiskPct:    e.cfg.RiskPct,
			Meta:       meta,
			PrevDay:    prevSessionBar(snap.Rows),
			Indicators: intent.Indicators,
		})
	}
	if !decision.Authorized() {
		e.log.Info().Str("symbol", symbol).Str("verdict", decision.Verdict).
			Strs("failed", decision.Failed).Msg("entry blocked by gateway")
		return nil
	}

	size := risk.CalculateLotSize(risk.SizeInputs{
		Equity:     state.Equity,
		EntryPrice: ref,
		StopPrice:  intent.Stop,
		RiskPct:    e.cfg.RiskPct,
		Meta:       meta,
	})
	if size.Lots <= 0 {
		e.log.Info().Str("symbol", symbol).Msg("sized to zero, skipping entry")
		return nil
	}

	res, err := e.cfg.Broker.PlaceOrder(ctx, broker.OrderRequest{
		Action: intent.Action,
		Symbol: symbol,
		Price:  ref,
		Qty:    size.Lots,
		Stop:   intent.Stop,
		Target: intent.Target,
		Kind:   broker.Market,
		ATR:    intent.ATR,
	})
	if err != nil {
		if errors.Is(err, broker.ErrTradingHalted) {
			e.log.Warn().Str("symbol", symbol).Msg("entry refused, trading halted")
			return nil
		}
		var verr *broker.ValidationError
		var merr *broker.MarginError
		if errors.As(err, &verr) || errors.As(err, &merr) {
			// Already logged with full context by the broker; re-decide next tick.
			return nil
		}
		return fmt.Errorf("open %s: %w", symbol, err)
	}

	e.log.Info().Str("symbol", symbol).Str("ticket", res.Ticket).
		Float64("fill", res.FillPrice).Float64("lots", size.Lots).
		Str("constraint", size.Constraint).Msg("entry filled")
	return nil
}

func (e *Engine) markStale(symbol string, err error) {
	e.mu.Lock()
	already := e.stale[symbol]
	e.stale[symbol] = true
	e.mu.Unlock()
	if !already {
		var serr *feed.StaleError
		if errors.As(err, &serr) {
			e.log.Warn().Str("symbol", symbol).Dur("latency", serr.Latency).
				Msg("feed stale, suspending evaluation")
			return
		}
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("feed unavailable, suspending evaluation")
	}
}

func (e *Engine) markFresh(symbol string) {
	e.mu.Lock()
	was := e.stale[symbol]
	e.stale[symbol] = false
	e.mu.Unlock()
	if was {
		e.log.Info().Str("symbol", symbol).Msg("feed recovered, resuming evaluation")
	}
}
